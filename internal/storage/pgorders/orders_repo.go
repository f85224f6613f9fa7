package pgorders

import (
	"context"
	"encoding/json"
	"time"

	"github.com/BearBump/TourSync/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

// UpsertOrder блокирует строку заказа (NOWAIT), мержит входящие данные и записывает результат.
// merge получает nil, если заказа ещё нет. created == true для новой записи.
func (s *Storage) UpsertOrder(ctx context.Context, incoming *models.Order, merge func(persisted, incoming *models.Order) *models.Order) (*models.Order, bool, error) {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, false, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	persisted, err := lockOrder(ctx, tx, incoming.OrderID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, false, err
	}

	created := persisted == nil
	out := merge(persisted, incoming)
	out.UpdatedAt = now
	if created {
		out.CreatedAt = now
		if err := insertOrder(ctx, tx, out); err != nil {
			return nil, false, err
		}
	} else {
		out.CreatedAt = persisted.CreatedAt
		if err := writeOrder(ctx, tx, out); err != nil {
			return nil, false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, errors.Wrap(err, "commit tx")
	}
	return out, created, nil
}

// UpdateOrder выполняет fn над заблокированным заказом. Ошибка из fn откатывает транзакцию.
func (s *Storage) UpdateOrder(ctx context.Context, orderID string, fn func(o *models.Order) error) (*models.Order, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if err := fn(o); err != nil {
		return nil, err
	}
	o.UpdatedAt = time.Now().UTC()
	if err := writeOrder(ctx, tx, o); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}
	return o, nil
}

func (s *Storage) GetOrdersByIDs(ctx context.Context, ids []string) ([]*models.Order, error) {
	if len(ids) == 0 {
		return []*models.Order{}, nil
	}

	rows, err := s.db.Query(ctx, `SELECT data FROM orders WHERE order_id = ANY($1)`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "select orders")
	}
	return collectOrders(rows, len(ids))
}

func (s *Storage) ListOrders(ctx context.Context, f models.OrderFilter) ([]*models.Order, error) {
	if f.Limit <= 0 || f.Limit > maxListLimit {
		f.Limit = defaultListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	rows, err := s.db.Query(ctx, `
SELECT data
FROM orders
WHERE ($1 = '' OR tour_id = $1)
  AND ($2 = '' OR effective_status = $2)
ORDER BY order_id
LIMIT $3 OFFSET $4
`, f.TourID, f.EffectiveStatus, f.Limit, f.Offset)
	if err != nil {
		return nil, errors.Wrap(err, "select orders")
	}
	return collectOrders(rows, f.Limit)
}

func (s *Storage) ListOrderIDsByTour(ctx context.Context, tourID string) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT order_id FROM orders WHERE tour_id = $1 ORDER BY order_id`, tourID)
	if err != nil {
		return nil, errors.Wrap(err, "select tour orders")
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, errors.Wrap(err, "scan order id")
	}
	return ids, nil
}

func lockOrder(ctx context.Context, tx pgx.Tx, orderID string) (*models.Order, error) {
	var raw []byte
	err := tx.QueryRow(ctx, `SELECT data FROM orders WHERE order_id = $1 FOR UPDATE NOWAIT`, orderID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(models.ErrNotFound, "order %s", orderID)
	}
	if err != nil {
		return nil, lockErr(err, "lock order")
	}
	var o models.Order
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, errors.Wrap(err, "decode order")
	}
	return &o, nil
}

func insertOrder(ctx context.Context, tx pgx.Tx, o *models.Order) error {
	raw, err := json.Marshal(o)
	if err != nil {
		return errors.Wrap(err, "encode order")
	}
	tag, err := tx.Exec(ctx, `
INSERT INTO orders (order_id, tour_id, effective_status, is_modified, data, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (order_id) DO NOTHING
`, o.OrderID, o.TourID, o.EffectiveStatus, o.IsModified, raw, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, "insert order")
	}
	if tag.RowsAffected() == 0 {
		// параллельная вставка того же заказа
		return errors.Wrapf(models.ErrPersistenceConflict, "insert order %s", o.OrderID)
	}
	return nil
}

func writeOrder(ctx context.Context, tx pgx.Tx, o *models.Order) error {
	raw, err := json.Marshal(o)
	if err != nil {
		return errors.Wrap(err, "encode order")
	}
	_, err = tx.Exec(ctx, `
UPDATE orders
SET tour_id = $2, effective_status = $3, is_modified = $4, data = $5, updated_at = $6
WHERE order_id = $1
`, o.OrderID, o.TourID, o.EffectiveStatus, o.IsModified, raw, o.UpdatedAt)
	return errors.Wrap(err, "update order")
}

func collectOrders(rows pgx.Rows, capHint int) ([]*models.Order, error) {
	defer rows.Close()

	out := make([]*models.Order, 0, capHint)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, errors.Wrap(err, "scan order")
		}
		var o models.Order
		if err := json.Unmarshal(raw, &o); err != nil {
			return nil, errors.Wrap(err, "decode order")
		}
		out = append(out, &o)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
