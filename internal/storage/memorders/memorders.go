// Package memorders is an in-memory order/tour store with the same
// transactional contract as pgorders. It backs local runs without PostgreSQL
// and the service tests.
package memorders

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/BearBump/TourSync/internal/models"
)

type Storage struct {
	mu     sync.Mutex
	orders map[string]*models.Order
	tours  map[string]*models.Tour
	// injected failures, consumed once per id (tests)
	failOrder map[string]error
	now       func() time.Time
}

func New() *Storage {
	return &Storage{
		orders:    make(map[string]*models.Order),
		tours:     make(map[string]*models.Tour),
		failOrder: make(map[string]error),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// FailNextOrderUpdate makes the next write to orderID fail with err.
func (s *Storage) FailNextOrderUpdate(orderID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOrder[orderID] = err
}

func (s *Storage) takeFailure(orderID string) error {
	err, ok := s.failOrder[orderID]
	if ok {
		delete(s.failOrder, orderID)
	}
	return err
}

// PutOrder stores o as-is (fixtures).
func (s *Storage) PutOrder(o *models.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.OrderID] = o.Clone()
}

// PutTour stores t as-is (fixtures).
func (s *Storage) PutTour(t *models.Tour) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tours[t.TourID] = t.Clone()
}

func (s *Storage) UpsertOrder(ctx context.Context, incoming *models.Order, merge func(persisted, incoming *models.Order) *models.Order) (*models.Order, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if err := s.takeFailure(incoming.OrderID); err != nil {
		return nil, false, err
	}

	persisted, ok := s.orders[incoming.OrderID]
	now := s.now()
	var out *models.Order
	if ok {
		out = merge(persisted.Clone(), incoming)
		out.CreatedAt = persisted.CreatedAt
	} else {
		out = merge(nil, incoming)
		out.CreatedAt = now
	}
	out.UpdatedAt = now
	s.orders[out.OrderID] = out.Clone()
	return out, !ok, nil
}

func (s *Storage) UpdateOrder(ctx context.Context, orderID string, fn func(o *models.Order) error) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.takeFailure(orderID); err != nil {
		return nil, err
	}
	persisted, ok := s.orders[orderID]
	if !ok {
		return nil, models.ErrNotFound
	}
	work := persisted.Clone()
	if err := fn(work); err != nil {
		return nil, err
	}
	work.UpdatedAt = s.now()
	s.orders[orderID] = work.Clone()
	return work, nil
}

func (s *Storage) ReconcileTour(ctx context.Context, tourID string, incoming *models.Tour, merge func(persisted, incoming *models.Tour, linked []string) *models.Tour) (*models.Tour, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	persisted, ok := s.tours[tourID]
	var base *models.Tour
	if ok {
		base = persisted.Clone()
	}
	out := merge(base, incoming, s.linkedStatuses(tourID))
	if out == nil {
		return nil, models.ErrNotFound
	}
	now := s.now()
	if ok {
		out.CreatedAt = persisted.CreatedAt
	} else {
		out.CreatedAt = now
	}
	out.UpdatedAt = now
	s.tours[tourID] = out.Clone()
	return out, nil
}

func (s *Storage) UpdateTour(ctx context.Context, tourID string, fn func(t *models.Tour) error) (*models.Tour, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	persisted, ok := s.tours[tourID]
	if !ok {
		return nil, models.ErrNotFound
	}
	work := persisted.Clone()
	if err := fn(work); err != nil {
		return nil, err
	}
	work.UpdatedAt = s.now()
	s.tours[tourID] = work.Clone()
	return work, nil
}

func (s *Storage) GetOrdersByIDs(ctx context.Context, ids []string) ([]*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Order, 0, len(ids))
	for _, id := range ids {
		if o, ok := s.orders[id]; ok {
			out = append(out, o.Clone())
		}
	}
	return out, nil
}

func (s *Storage) ListOrders(ctx context.Context, f models.OrderFilter) ([]*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Order
	for _, o := range s.orders {
		if f.TourID != "" && (o.TourID == nil || *o.TourID != f.TourID) {
			continue
		}
		if f.EffectiveStatus != "" && o.EffectiveStatus != f.EffectiveStatus {
			continue
		}
		out = append(out, o.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderID < out[j].OrderID })

	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return []*models.Order{}, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Storage) ListOrderIDsByTour(ctx context.Context, tourID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, o := range s.orders {
		if o.TourID != nil && *o.TourID == tourID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Storage) GetTour(ctx context.Context, tourID string) (*models.Tour, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tours[tourID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return t.Clone(), nil
}

func (s *Storage) Close() {}

func (s *Storage) linkedStatuses(tourID string) []string {
	var out []string
	for _, o := range s.orders {
		if o.TourID != nil && *o.TourID == tourID {
			out = append(out, o.EffectiveStatus)
		}
	}
	return out
}
