package orders

import (
	"context"
	"log/slog"
	"strings"

	"github.com/BearBump/TourSync/internal/models"
	"github.com/BearBump/TourSync/internal/services/propagate"
	"github.com/BearBump/TourSync/internal/services/reconcile"
	"github.com/BearBump/TourSync/internal/services/tracker"
	"github.com/pkg/errors"
)

type EditRequest struct {
	Actor        string
	FieldChanges map[string]any
	// Propagate применяется только к турам.
	Propagate bool
}

type Rejection struct {
	Field   string `json:"field"`
	Message string `json:"error"`
}

type EditSummary struct {
	UpdatedFields []string    `json:"updated_fields"`
	Rejected      []Rejection `json:"rejected,omitempty"`
	IsModified    bool        `json:"is_modified"`
}

type TourEditResult struct {
	EditSummary
	Tour *models.Tour `json:"updated_tour,omitempty"`
	// Propagation fields are set only when Propagate was requested.
	Propagated       bool              `json:"-"`
	PropagatedOrders int               `json:"propagated_orders"`
	Failed           map[string]string `json:"failed,omitempty"`
}

var errNothingApplied = errors.New("nothing applied")

func (r EditRequest) validate() error {
	if strings.TrimSpace(r.Actor) == "" {
		return errors.Wrap(models.ErrInvalidValue, "actor is required")
	}
	if len(r.FieldChanges) == 0 {
		return errors.Wrap(models.ErrInvalidValue, "field_changes is empty")
	}
	return nil
}

func summarize(a tracker.Applied, isModified bool) EditSummary {
	sum := EditSummary{UpdatedFields: a.Updated, IsModified: isModified}
	if sum.UpdatedFields == nil {
		sum.UpdatedFields = []string{}
	}
	for _, r := range a.Rejected {
		sum.Rejected = append(sum.Rejected, Rejection{Field: r.Field, Message: r.Err.Error()})
	}
	return sum
}

// EditOrder applies an operator edit to one order under its row lock.
// Unknown or invalid fields are reported per field; the rest still apply.
// A status change recounts the linked tour.
func (s *Service) EditOrder(ctx context.Context, orderID string, req EditRequest) (EditSummary, error) {
	if err := req.validate(); err != nil {
		return EditSummary{}, err
	}

	var applied tracker.Applied
	var isModified bool
	var updated *models.Order
	err := withConflictRetry("edit order", func() error {
		var err error
		updated, err = s.repo.UpdateOrder(ctx, orderID, func(o *models.Order) error {
			applied = s.tracker.ProposeOrder(o, req.FieldChanges, req.Actor)
			isModified = o.IsModified
			if !applied.Changed() {
				return errNothingApplied
			}
			return nil
		})
		return err
	})
	if errors.Is(err, errNothingApplied) {
		return summarize(applied, isModified), nil
	}
	if err != nil {
		return EditSummary{}, err
	}
	s.invalidate(ctx, orderID)

	if statusTouched(applied.Updated) && updated.TourID != nil {
		s.recountTour(ctx, *updated.TourID)
	}

	slog.Info("order edited", "order_id", orderID, "actor", req.Actor, "fields", applied.Updated)
	return summarize(applied, updated.IsModified), nil
}

// EditTour applies an operator edit to a tour, and with Propagate set, to
// every linked order that has not protected the field itself.
func (s *Service) EditTour(ctx context.Context, tourID string, req EditRequest) (TourEditResult, error) {
	if err := req.validate(); err != nil {
		return TourEditResult{}, err
	}
	if req.Propagate {
		return s.propagate(ctx, tourID, req)
	}

	var applied tracker.Applied
	var isModified bool
	var updated *models.Tour
	err := withConflictRetry("edit tour", func() error {
		var err error
		updated, err = s.repo.UpdateTour(ctx, tourID, func(t *models.Tour) error {
			applied = s.tracker.ProposeTour(t, req.FieldChanges, req.Actor)
			isModified = t.IsModified
			if !applied.Changed() {
				return errNothingApplied
			}
			return nil
		})
		return err
	})
	if errors.Is(err, errNothingApplied) {
		return TourEditResult{EditSummary: summarize(applied, isModified)}, nil
	}
	if err != nil {
		return TourEditResult{}, err
	}

	slog.Info("tour edited", "tour_id", tourID, "actor", req.Actor, "fields", applied.Updated)
	return TourEditResult{EditSummary: summarize(applied, updated.IsModified), Tour: updated}, nil
}

func (s *Service) propagate(ctx context.Context, tourID string, req EditRequest) (TourEditResult, error) {
	var res propagate.Result
	err := withConflictRetry("propagate tour", func() error {
		var err error
		res, err = s.propagator.Propagate(ctx, tourID, req.FieldChanges, req.Actor)
		return err
	})
	if errors.Is(err, propagate.ErrNothingApplied) {
		return TourEditResult{EditSummary: summarize(res.Applied, false), Propagated: true}, nil
	}
	if err != nil {
		return TourEditResult{}, err
	}

	out := TourEditResult{
		EditSummary:      summarize(res.Applied, res.Tour.IsModified),
		Tour:             res.Tour,
		Propagated:       true,
		PropagatedOrders: res.PropagatedOrders,
	}
	for id, ferr := range res.Failed {
		if out.Failed == nil {
			out.Failed = make(map[string]string, len(res.Failed))
		}
		out.Failed[id] = ferr.Error()
	}

	if ids, err := s.repo.ListOrderIDsByTour(ctx, tourID); err == nil {
		s.invalidate(ctx, ids...)
	}

	slog.Info("tour edit propagated", "tour_id", tourID, "actor", req.Actor,
		"fields", res.Applied.Updated, "orders", res.PropagatedOrders, "failed", len(res.Failed))
	return out, nil
}

// recountTour пересчитывает счётчики тура; правка уже закоммичена, поэтому ошибка только логируется.
func (s *Service) recountTour(ctx context.Context, tourID string) {
	err := withConflictRetry("recount tour", func() error {
		_, err := s.repo.ReconcileTour(ctx, tourID, nil, reconcile.MergeTour)
		return err
	})
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		slog.Error("recount tour", "tour_id", tourID, "error", err.Error())
	}
}

func statusTouched(fields []string) bool {
	for _, f := range fields {
		if f == "status" || f == "effective_status" {
			return true
		}
	}
	return false
}
