package statusresolver

import (
	"sort"
	"strings"
	"time"

	"github.com/BearBump/TourSync/internal/models"
	"github.com/BearBump/TourSync/internal/services/extractor"
)

const (
	cancelledChecklist = "cancelled"
	cancellationReason = "Cancellation-reason"

	SourceStatusUpdate = "status_update"
	SourceChecklist    = "checklist"
)

type Resolution struct {
	EffectiveStatus    string
	CancellationReason *string
	StatusUpdates      []models.StatusUpdate
}

type event struct {
	status string
	at     *time.Time
	source string
	// terminal events may override the base status
	terminal bool
	// reason is only set for the cancellation checklist
	reason *string
	seq    int
}

func IsTerminal(status string) bool {
	switch status {
	case models.OrderStatusCompleted, models.OrderStatusCancelled, models.OrderStatusFailed:
		return true
	}
	return false
}

// rank places events without a time on the timeline: untimed status updates
// go first, an untimed cancellation checklist goes last.
func (e event) rank() int {
	switch {
	case e.at != nil:
		return 1
	case e.terminal && strings.HasPrefix(e.source, SourceChecklist):
		return 2
	default:
		return 0
	}
}

// Resolve computes the effective status from the base status and the embedded
// status events. The latest terminal event overrides the base status.
// A cancellation checklist without updatedOn counts as the latest event.
func Resolve(src extractor.StatusSource) Resolution {
	events := collect(src)

	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if ra, rb := a.rank(), b.rank(); ra != rb {
			return ra < rb
		}
		if a.at == nil || b.at == nil {
			return a.seq < b.seq
		}
		return a.at.Before(*b.at)
	})

	res := Resolution{EffectiveStatus: src.BaseStatus}
	var terminal *event
	for i := range events {
		e := events[i]
		res.StatusUpdates = append(res.StatusUpdates, models.StatusUpdate{
			Status: e.status,
			At:     e.at,
			Source: e.source,
		})
		if e.terminal {
			terminal = &events[i]
		}
	}
	if terminal != nil {
		res.EffectiveStatus = terminal.status
		if terminal.status == models.OrderStatusCancelled {
			res.CancellationReason = terminal.reason
		}
	}
	return res
}

// Apply resolves the status of o in place.
func Apply(o *models.Order, src extractor.StatusSource) {
	r := Resolve(src)
	o.EffectiveStatus = r.EffectiveStatus
	o.CancellationReason = r.CancellationReason
	o.StatusUpdates = r.StatusUpdates
}

func collect(src extractor.StatusSource) []event {
	var out []event
	seq := 0
	for _, raw := range src.StatusUpdates {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		st := upper(m["status"])
		if st == "" {
			continue
		}
		out = append(out, event{
			status:   st,
			at:       firstTime(m, "triggerTime", "timestamp", "at"),
			source:   SourceStatusUpdate,
			terminal: IsTerminal(st),
			seq:      seq,
		})
		seq++
	}

	// Map iteration order is random; keep checklists deterministic.
	names := make([]string, 0, len(src.Checklists))
	for name := range src.Checklists {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		m, ok := src.Checklists[name].(map[string]any)
		if !ok {
			continue
		}
		st := upper(m["status"])
		if st == "" {
			continue
		}
		e := event{status: st, at: firstTime(m, "updatedOn", "completedOn", "triggerTime"), source: SourceChecklist + ":" + name, seq: seq}
		seq++
		// Only the cancellation checklist in CANCELLED state overrides the order;
		// other checklists report their own completion and are only logged.
		if name == cancelledChecklist {
			if st != models.OrderStatusCancelled {
				continue
			}
			e.terminal = true
			e.reason = findReason(m["items"])
		}
		out = append(out, e)
	}
	return out
}

func findReason(items any) *string {
	list, ok := items.([]any)
	if !ok {
		return nil
	}
	for _, raw := range list {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		key, _ := m["id"].(string)
		if key == "" {
			key, _ = m["key"].(string)
		}
		if key != cancellationReason {
			continue
		}
		for _, k := range []string{"selectedValue", "value", "answer"} {
			if s := valueString(m[k]); s != "" {
				return &s
			}
		}
		return nil
	}
	return nil
}

func valueString(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case []any:
		parts := make([]string, 0, len(x))
		for _, p := range x {
			if s := valueString(p); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	}
	return ""
}

func upper(v any) string {
	s, _ := v.(string)
	return strings.ToUpper(strings.TrimSpace(s))
}

func firstTime(m map[string]any, keys ...string) *time.Time {
	for _, k := range keys {
		if t, err := models.AsTime(m[k]); err == nil && t != nil {
			return t
		}
	}
	return nil
}
