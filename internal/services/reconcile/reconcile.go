package reconcile

import (
	"github.com/BearBump/TourSync/internal/models"
)

// MergeOrder merges a snapshot-derived order into the persisted one.
// Protected fields keep the persisted value; everything else follows upstream,
// including nulls and the derived status fields. order_id never changes and
// tour_id is only established when the persisted order has none.
// Neither argument is modified.
func MergeOrder(persisted, incoming *models.Order) *models.Order {
	if persisted == nil {
		return incoming.Clone()
	}
	out := persisted.Clone()
	for _, f := range models.OrderSchema.Fields() {
		if persisted.IsProtected(f.Name) {
			continue
		}
		f.Copy(out, incoming)
	}
	if out.TourID == nil && incoming.TourID != nil {
		id := *incoming.TourID
		out.TourID = &id
	}
	return out
}

// MergeTour merges a tour fragment and recomputes counters and status from the
// effective statuses of the currently linked orders. incoming may be nil when
// only a recount is needed.
func MergeTour(persisted, incoming *models.Tour, linkedStatuses []string) *models.Tour {
	var out *models.Tour
	switch {
	case persisted == nil && incoming == nil:
		return nil
	case persisted == nil:
		out = incoming.Clone()
	default:
		out = persisted.Clone()
		if incoming != nil {
			for _, f := range models.TourSchema.Fields() {
				if persisted.IsProtected(f.Name) {
					continue
				}
				f.Copy(out, incoming)
			}
		}
	}
	out.TourCounters = Count(linkedStatuses)
	out.TourStatus = TourStatus(out.TourCounters)
	return out
}

// Count classifies linked orders by effective status.
func Count(statuses []string) models.TourCounters {
	var c models.TourCounters
	for _, s := range statuses {
		c.TotalOrders++
		switch {
		case IsCompleted(s):
			c.CompletedOrders++
		case IsCancelled(s):
			c.CancelledOrders++
		default:
			c.PendingOrders++
			if IsWaiting(s) {
				c.WaitingOrders++
			}
		}
	}
	return c
}

// TourStatus applies the fixed precedence; the all-cancelled case must be
// checked before the completed one.
func TourStatus(c models.TourCounters) string {
	switch {
	case c.TotalOrders == 0:
		return models.TourStatusWaiting
	case c.CancelledOrders == c.TotalOrders:
		return models.TourStatusCancelled
	case c.CompletedOrders+c.CancelledOrders == c.TotalOrders:
		return models.TourStatusCompleted
	case c.WaitingOrders == c.TotalOrders:
		return models.TourStatusWaiting
	default:
		return models.TourStatusOngoing
	}
}

func IsCompleted(s string) bool { return s == models.OrderStatusCompleted }

func IsCancelled(s string) bool {
	return s == models.OrderStatusCancelled || s == models.OrderStatusFailed
}

func IsWaiting(s string) bool {
	switch s {
	case "", models.OrderStatusUnassigned, models.OrderStatusCreated, models.OrderStatusScheduled,
		models.OrderStatusAssigned, models.OrderStatusWaiting:
		return true
	}
	return false
}
