package logistics

import (
	"context"
	"encoding/json"
	"time"
)

// Query selects one page of delivery tasks scheduled in [From, To).
type Query struct {
	From     time.Time
	To       time.Time
	Page     int
	PageSize int
}

type Page struct {
	Tasks   []json.RawMessage
	HasMore bool
}

type Client interface {
	FetchTasks(ctx context.Context, q Query) (Page, error)
}
