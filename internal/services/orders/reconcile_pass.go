package orders

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/BearBump/TourSync/internal/broker/messages"
	"github.com/BearBump/TourSync/internal/models"
	"github.com/BearBump/TourSync/internal/services/extractor"
	"github.com/BearBump/TourSync/internal/services/reconcile"
	"github.com/BearBump/TourSync/internal/services/statusresolver"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	EntityOrder = "order"
	EntityTour  = "tour"
)

// Failure is a per-entity error of a pass; it does not abort the batch.
type Failure struct {
	Entity  string `json:"entity"`
	ID      string `json:"id"`
	Message string `json:"error"`
	Err     error  `json:"-"`
}

type PassResult struct {
	RunID           string    `json:"run_id"`
	Received        int       `json:"received"`
	Skipped         int       `json:"skipped"`
	OrdersCreated   int       `json:"orders_created"`
	OrdersUpdated   int       `json:"orders_updated"`
	ToursReconciled int       `json:"tours_reconciled"`
	Failed          []Failure `json:"failed,omitempty"`
}

func (r *PassResult) fail(entity, id string, err error) {
	r.Failed = append(r.Failed, Failure{Entity: entity, ID: id, Message: err.Error(), Err: err})
}

// ReconcileSnapshot runs one reconciliation pass over raw task payloads:
// extract, resolve effective status, merge every order under its row lock,
// then merge and recount every touched tour. Only context cancellation
// aborts the pass.
func (s *Service) ReconcileSnapshot(ctx context.Context, tasks []map[string]any) (PassResult, error) {
	res := PassResult{RunID: uuid.NewString(), Received: len(tasks)}
	log := slog.With("run_id", res.RunID)
	started := time.Now()

	// tour_id -> фрагмент из снимка; nil означает только пересчёт
	tours := make(map[string]*models.Tour)
	var touched []string

	for _, task := range tasks {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		ex, err := extractor.Extract(task)
		if errors.Is(err, extractor.ErrExtractionSkipped) {
			res.Skipped++
			continue
		}
		if err != nil {
			res.Skipped++
			log.Warn("extract task", "error", err.Error())
			continue
		}
		statusresolver.Apply(ex.Order, ex.Status)

		var merged *models.Order
		var created bool
		err = withConflictRetry("upsert order", func() error {
			var err error
			merged, created, err = s.repo.UpsertOrder(ctx, ex.Order, reconcile.MergeOrder)
			return err
		})
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			res.fail(EntityOrder, ex.Order.OrderID, err)
			log.Error("reconcile order", "order_id", ex.Order.OrderID, "error", err.Error())
			continue
		}
		if created {
			res.OrdersCreated++
		} else {
			res.OrdersUpdated++
		}
		touched = append(touched, ex.Order.OrderID)

		if ex.Tour != nil {
			tours[ex.Tour.TourID] = ex.Tour
		}
		// заказ уже привязан к туру: статус мог измениться, даже если снимок тур не передал
		if merged != nil && merged.TourID != nil {
			if _, ok := tours[*merged.TourID]; !ok {
				tours[*merged.TourID] = nil
			}
		}
	}
	s.invalidate(ctx, touched...)

	// туры после заказов: счётчики считаются по уже записанным заказам
	for _, tourID := range sortedKeys(tours) {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		err := withConflictRetry("reconcile tour", func() error {
			_, err := s.repo.ReconcileTour(ctx, tourID, tours[tourID], reconcile.MergeTour)
			return err
		})
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			if tours[tourID] == nil && errors.Is(err, models.ErrNotFound) {
				continue
			}
			res.fail(EntityTour, tourID, err)
			log.Error("reconcile tour", "tour_id", tourID, "error", err.Error())
			continue
		}
		res.ToursReconciled++
	}

	log.Info("reconciliation pass done",
		"received", res.Received,
		"skipped", res.Skipped,
		"orders_created", res.OrdersCreated,
		"orders_updated", res.OrdersUpdated,
		"tours", res.ToursReconciled,
		"failed", len(res.Failed),
		"took", time.Since(started).String(),
	)
	return res, nil
}

// ApplySnapshotPage reconciles one page consumed from Kafka.
// Tasks that are not JSON objects are counted as skipped.
func (s *Service) ApplySnapshotPage(ctx context.Context, msg messages.SnapshotPage) (PassResult, error) {
	tasks := make([]map[string]any, 0, len(msg.Tasks))
	bad := 0
	for _, raw := range msg.Tasks {
		var task map[string]any
		if err := json.Unmarshal(raw, &task); err != nil || task == nil {
			bad++
			continue
		}
		tasks = append(tasks, task)
	}
	if bad > 0 {
		slog.Warn("snapshot page has malformed tasks", "page", msg.Page, "worker_run_id", msg.RunID, "malformed", bad)
	}

	res, err := s.ReconcileSnapshot(ctx, tasks)
	res.Received += bad
	res.Skipped += bad
	return res, err
}
