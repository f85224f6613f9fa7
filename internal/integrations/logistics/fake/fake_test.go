package fake

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/BearBump/TourSync/internal/integrations/logistics"
	"github.com/stretchr/testify/require"
)

func TestFakeClient_FetchTasks_PagesAndDeterminism(t *testing.T) {
	c := New()
	day := time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)
	q := logistics.Query{From: day, To: day.Add(24 * time.Hour), Page: 1, PageSize: 100}

	p1, err := c.FetchTasks(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, p1.Tasks, 100)
	require.True(t, p1.HasMore)

	again, err := c.FetchTasks(context.Background(), q)
	require.NoError(t, err)
	require.Equal(t, p1.Tasks, again.Tasks)

	q.Page = 2
	p2, err := c.FetchTasks(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, p2.Tasks, 20)
	require.False(t, p2.HasMore)

	var task map[string]any
	require.NoError(t, json.Unmarshal(p1.Tasks[0], &task))
	require.Equal(t, "T20261017-0000", task["taskId"])
}
