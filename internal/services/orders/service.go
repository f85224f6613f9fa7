package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/BearBump/TourSync/internal/cache"
	"github.com/BearBump/TourSync/internal/models"
	"github.com/BearBump/TourSync/internal/services/propagate"
	"github.com/BearBump/TourSync/internal/services/tracker"
	"github.com/pkg/errors"
)

type Repository interface {
	UpsertOrder(ctx context.Context, incoming *models.Order, merge func(persisted, incoming *models.Order) *models.Order) (*models.Order, bool, error)
	UpdateOrder(ctx context.Context, orderID string, fn func(o *models.Order) error) (*models.Order, error)
	ReconcileTour(ctx context.Context, tourID string, incoming *models.Tour, merge func(persisted, incoming *models.Tour, linked []string) *models.Tour) (*models.Tour, error)
	UpdateTour(ctx context.Context, tourID string, fn func(t *models.Tour) error) (*models.Tour, error)
	GetOrdersByIDs(ctx context.Context, ids []string) ([]*models.Order, error)
	ListOrders(ctx context.Context, f models.OrderFilter) ([]*models.Order, error)
	ListOrderIDsByTour(ctx context.Context, tourID string) ([]string, error)
	GetTour(ctx context.Context, tourID string) (*models.Tour, error)
}

type Service struct {
	repo       Repository
	cache      cache.BytesCache
	currentTTL time.Duration

	tracker    *tracker.Tracker
	propagator *propagate.Propagator
}

func New(repo Repository, c cache.BytesCache, currentTTL time.Duration) *Service {
	t := tracker.New()
	return &Service{
		repo:       repo,
		cache:      c,
		currentTTL: currentTTL,
		tracker:    t,
		propagator: propagate.New(repo, t),
	}
}

// WithTracker заменяет трекер (в тестах — с фиксированными часами).
func (s *Service) WithTracker(t *tracker.Tracker) *Service {
	s.tracker = t
	s.propagator = propagate.New(s.repo, t)
	return s
}

func (s *Service) cacheEnabled() bool {
	return s.cache != nil && s.currentTTL > 0
}

func (s *Service) GetOrdersByIDs(ctx context.Context, ids []string) ([]*models.Order, error) {
	if len(ids) == 0 {
		return []*models.Order{}, nil
	}
	miss := make([]string, 0, len(ids))
	got := make(map[string]*models.Order, len(ids))

	if s.cacheEnabled() {
		for _, id := range ids {
			b, ok, err := s.cache.Get(ctx, currentKey(id))
			if err != nil || !ok || len(b) == 0 {
				miss = append(miss, id)
				continue
			}
			var o models.Order
			if json.Unmarshal(b, &o) != nil {
				miss = append(miss, id)
				continue
			}
			got[id] = &o
		}
	} else {
		miss = ids
	}

	if len(miss) > 0 {
		fromDB, err := s.repo.GetOrdersByIDs(ctx, miss)
		if err != nil {
			return nil, err
		}
		for _, o := range fromDB {
			got[o.OrderID] = o
			if s.cacheEnabled() {
				b, _ := json.Marshal(o)
				_ = s.cache.Set(ctx, currentKey(o.OrderID), b, s.currentTTL)
			}
		}
	}

	// порядок как в ids
	out := make([]*models.Order, 0, len(ids))
	for _, id := range ids {
		if o, ok := got[id]; ok {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *Service) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	out, err := s.GetOrdersByIDs(ctx, []string{orderID})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, errors.Wrapf(models.ErrNotFound, "order %s", orderID)
	}
	return out[0], nil
}

func (s *Service) ListOrders(ctx context.Context, f models.OrderFilter) ([]*models.Order, error) {
	return s.repo.ListOrders(ctx, f)
}

func (s *Service) GetTour(ctx context.Context, tourID string) (*models.Tour, error) {
	if tourID == "" {
		return nil, errors.Wrap(models.ErrInvalidValue, "tour id is required")
	}
	return s.repo.GetTour(ctx, tourID)
}

// ListTourOrders returns the orders currently linked to an existing tour.
func (s *Service) ListTourOrders(ctx context.Context, tourID string, limit, offset int) ([]*models.Order, error) {
	if _, err := s.GetTour(ctx, tourID); err != nil {
		return nil, err
	}
	return s.repo.ListOrders(ctx, models.OrderFilter{TourID: tourID, Limit: limit, Offset: offset})
}

func (s *Service) invalidate(ctx context.Context, orderIDs ...string) {
	if !s.cacheEnabled() || len(orderIDs) == 0 {
		return
	}
	keys := make([]string, 0, len(orderIDs))
	for _, id := range orderIDs {
		keys = append(keys, currentKey(id))
	}
	if err := s.cache.Del(ctx, keys...); err != nil {
		slog.Warn("cache invalidate", "orders", len(keys), "error", err.Error())
	}
}

// withConflictRetry повторяет операцию один раз, если строку держал другой писатель.
// Каждая попытка заново читает сохранённое состояние.
func withConflictRetry(op string, fn func() error) error {
	err := fn()
	if errors.Is(err, models.ErrPersistenceConflict) {
		slog.Warn("persistence conflict, retrying", "op", op)
		err = fn()
	}
	return err
}

func currentKey(orderID string) string {
	return fmt.Sprintf("order:%s:current", orderID)
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
