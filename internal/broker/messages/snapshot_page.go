package messages

import (
	"encoding/json"
	"fmt"
	"time"
)

// SnapshotPage is one fetched page of raw delivery tasks, published by the worker.
type SnapshotPage struct {
	RunID     string    `json:"run_id"`
	FetchedAt time.Time `json:"fetched_at"`

	From time.Time `json:"from"`
	To   time.Time `json:"to"`
	Page int       `json:"page"`

	// ArchiveKey is set when the raw page was archived.
	ArchiveKey string `json:"archive_key,omitempty"`

	Tasks []json.RawMessage `json:"tasks"`
}

// Key is the Kafka message key: the window day and page number, so
// re-fetches of the same page land in the same partition.
func (p SnapshotPage) Key() []byte {
	return []byte(fmt.Sprintf("%s:%d", p.From.Format("2006-01-02"), p.Page))
}
