package poller

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPoller_Run_StopsOnContextCancel(t *testing.T) {
	fc := &fakeClient{}
	p := New(fc, &fakeProducer{}, nil, "t").WithSettings(5*time.Millisecond, 1, 1, 1)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	err := p.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.GreaterOrEqual(t, p.Stats().TotalCycles, int64(1))
}

func TestPoller_Run_TriggerBackfill(t *testing.T) {
	fc := &fakeClient{}
	p := New(fc, &fakeProducer{}, nil, "t").WithSettings(time.Hour, 1, 1, 1)
	p.TriggerBackfill()
	// повторный вызов не блокирует
	p.TriggerBackfill()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool {
		fc.mu.Lock()
		defer fc.mu.Unlock()
		return len(fc.calls) >= 3
	}, time.Second, 5*time.Millisecond)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	require.NotNil(t, p.Stats().LastTriggerAt)
}
