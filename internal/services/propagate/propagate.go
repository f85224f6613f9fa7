package propagate

import (
	"context"
	"log/slog"

	"github.com/BearBump/TourSync/internal/models"
	"github.com/BearBump/TourSync/internal/services/tracker"
	"github.com/pkg/errors"
)

// Store is the transactional surface the propagator needs. Update* calls run fn
// inside a transaction with the row locked; returning an error from fn rolls back.
type Store interface {
	UpdateTour(ctx context.Context, tourID string, fn func(t *models.Tour) error) (*models.Tour, error)
	ListOrderIDsByTour(ctx context.Context, tourID string) ([]string, error)
	UpdateOrder(ctx context.Context, orderID string, fn func(o *models.Order) error) (*models.Order, error)
}

// ErrNothingApplied is returned when none of the tour-level changes could be applied.
var ErrNothingApplied = errors.New("no field changes applied")

// errNoop aborts an order transaction that has nothing to write.
var errNoop = errors.New("noop")

type Result struct {
	Tour             *models.Tour
	Applied          tracker.Applied
	PropagatedOrders int
	// Failed holds per-order errors; other orders are still propagated.
	Failed map[string]error
}

type Propagator struct {
	store   Store
	tracker *tracker.Tracker
}

func New(store Store, t *tracker.Tracker) *Propagator {
	return &Propagator{store: store, tracker: t}
}

// Propagate applies a tour-level edit to the tour and to every linked order.
// Order-level protection takes precedence: a field already in an order's
// modified set is never overwritten by propagation.
func (p *Propagator) Propagate(ctx context.Context, tourID string, changes map[string]any, actor string) (Result, error) {
	var res Result

	tour, err := p.store.UpdateTour(ctx, tourID, func(t *models.Tour) error {
		res.Applied = p.tracker.ProposeTour(t, changes, actor)
		if !res.Applied.Changed() {
			return ErrNothingApplied
		}
		return nil
	})
	if err != nil {
		return res, err
	}
	res.Tour = tour

	ids, err := p.store.ListOrderIDsByTour(ctx, tourID)
	if err != nil {
		return res, errors.Wrap(err, "list tour orders")
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		changed, err := p.propagateOne(ctx, id, res.Applied.Updated, changes, actor)
		if errors.Is(err, models.ErrPersistenceConflict) {
			// one retry with a fresh read
			changed, err = p.propagateOne(ctx, id, res.Applied.Updated, changes, actor)
		}
		if err != nil {
			if res.Failed == nil {
				res.Failed = make(map[string]error)
			}
			res.Failed[id] = err
			slog.Error("propagate to order", "tour_id", tourID, "order_id", id, "error", err.Error())
			continue
		}
		if changed {
			res.PropagatedOrders++
		}
	}
	return res, nil
}

func (p *Propagator) propagateOne(ctx context.Context, orderID string, fields []string, changes map[string]any, actor string) (bool, error) {
	changed := false
	_, err := p.store.UpdateOrder(ctx, orderID, func(o *models.Order) error {
		sub := make(map[string]any, len(fields))
		for _, f := range fields {
			if !models.OrderSchema.Editable(f) || o.IsProtected(f) {
				continue
			}
			sub[f] = changes[f]
		}
		if len(sub) == 0 {
			return errNoop
		}
		applied := p.tracker.ProposeOrder(o, sub, actor)
		if len(applied.Rejected) > 0 {
			// all-or-nothing per order
			return applied.Rejected[0]
		}
		changed = applied.Changed()
		return nil
	})
	if errors.Is(err, errNoop) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return changed, nil
}
