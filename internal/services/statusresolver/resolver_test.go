package statusresolver

import (
	"testing"

	"github.com/BearBump/TourSync/internal/models"
	"github.com/BearBump/TourSync/internal/services/extractor"
	"github.com/stretchr/testify/require"
)

func cancelled(items ...any) map[string]any {
	return map[string]any{
		"cancelled": map[string]any{
			"status":    "CANCELLED",
			"updatedOn": "2026-10-17T10:00:00Z",
			"items":     items,
		},
	}
}

func TestResolve_CancellationOverridesScheduled(t *testing.T) {
	r := Resolve(extractor.StatusSource{
		BaseStatus: models.OrderStatusScheduled,
		Checklists: cancelled(
			map[string]any{"id": "Other", "selectedValue": "x"},
			map[string]any{"id": "Cancellation-reason", "selectedValue": "Customer unavailable"},
		),
	})
	require.Equal(t, models.OrderStatusCancelled, r.EffectiveStatus)
	require.NotNil(t, r.CancellationReason)
	require.Equal(t, "Customer unavailable", *r.CancellationReason)
	require.Len(t, r.StatusUpdates, 1)
	require.Equal(t, "checklist:cancelled", r.StatusUpdates[0].Source)
}

func TestResolve_CancellationWithoutReasonItem(t *testing.T) {
	r := Resolve(extractor.StatusSource{
		BaseStatus: models.OrderStatusScheduled,
		Checklists: cancelled(map[string]any{"id": "Photo", "value": "p.jpg"}),
	})
	require.Equal(t, models.OrderStatusCancelled, r.EffectiveStatus)
	require.Nil(t, r.CancellationReason)
}

func TestResolve_NoOverride(t *testing.T) {
	r := Resolve(extractor.StatusSource{
		BaseStatus: models.OrderStatusOngoing,
		StatusUpdates: []any{
			map[string]any{"status": "started", "triggerTime": "2026-10-17T08:00:00Z"},
		},
		Checklists: map[string]any{
			"cancelled": map[string]any{"status": "PENDING"},
			"delivery":  map[string]any{"status": "COMPLETED", "completedOn": "2026-10-17T09:00:00Z"},
		},
	})
	require.Equal(t, models.OrderStatusOngoing, r.EffectiveStatus)
	require.Nil(t, r.CancellationReason)
	require.Len(t, r.StatusUpdates, 2)
	require.Equal(t, models.OrderStatusStarted, r.StatusUpdates[0].Status)
}

func TestResolve_LatestTerminalWins(t *testing.T) {
	r := Resolve(extractor.StatusSource{
		BaseStatus: models.OrderStatusScheduled,
		StatusUpdates: []any{
			map[string]any{"status": "COMPLETED", "triggerTime": "2026-10-17T11:00:00Z"},
			map[string]any{"status": "STARTED", "triggerTime": "2026-10-17T08:00:00Z"},
		},
		Checklists: cancelled(map[string]any{"id": "Cancellation-reason", "selectedValue": "Too late"}),
	})
	// cancellation at 10:00, completion at 11:00
	require.Equal(t, models.OrderStatusCompleted, r.EffectiveStatus)
	require.Nil(t, r.CancellationReason)
	require.Equal(t, []string{"STARTED", "CANCELLED", "COMPLETED"}, statuses(r.StatusUpdates))
}

func TestResolve_UntimedEventsOrdering(t *testing.T) {
	r := Resolve(extractor.StatusSource{
		BaseStatus: models.OrderStatusScheduled,
		StatusUpdates: []any{
			map[string]any{"status": "COMPLETED", "triggerTime": "2026-10-17T11:00:00Z"},
			map[string]any{"status": "STARTED"},
		},
		Checklists: map[string]any{
			"cancelled": map[string]any{
				"status": "CANCELLED",
				"items":  []any{map[string]any{"id": "Cancellation-reason", "selectedValue": "Shop closed"}},
			},
		},
	})
	// чек-лист отмены без времени не проигрывает датированному COMPLETED
	require.Equal(t, models.OrderStatusCancelled, r.EffectiveStatus)
	require.Equal(t, "Shop closed", *r.CancellationReason)
	require.Equal(t, []string{"STARTED", "COMPLETED", "CANCELLED"}, statuses(r.StatusUpdates))
}

func TestResolve_UntimedStatusUpdateDoesNotOverrideTimed(t *testing.T) {
	r := Resolve(extractor.StatusSource{
		BaseStatus: models.OrderStatusScheduled,
		StatusUpdates: []any{
			map[string]any{"status": "FAILED"},
			map[string]any{"status": "COMPLETED", "triggerTime": "2026-10-17T11:00:00Z"},
		},
	})
	require.Equal(t, models.OrderStatusCompleted, r.EffectiveStatus)
}

func TestResolve_ReasonListValueJoined(t *testing.T) {
	r := Resolve(extractor.StatusSource{
		Checklists: cancelled(map[string]any{"key": "Cancellation-reason", "selectedValue": []any{"Closed", "No cash"}}),
	})
	require.Equal(t, "Closed, No cash", *r.CancellationReason)
}

func TestApply(t *testing.T) {
	o := &models.Order{OrderID: "O1", Status: models.OrderStatusScheduled, EffectiveStatus: models.OrderStatusScheduled}
	Apply(o, extractor.StatusSource{
		BaseStatus: o.Status,
		Checklists: cancelled(map[string]any{"id": "Cancellation-reason", "selectedValue": "Customer unavailable"}),
	})
	require.Equal(t, models.OrderStatusScheduled, o.Status)
	require.Equal(t, models.OrderStatusCancelled, o.EffectiveStatus)
	require.Equal(t, "Customer unavailable", *o.CancellationReason)
}

func statuses(us []models.StatusUpdate) []string {
	out := make([]string, 0, len(us))
	for _, u := range us {
		out = append(out, u.Status)
	}
	return out
}
