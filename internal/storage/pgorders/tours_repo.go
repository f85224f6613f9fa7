package pgorders

import (
	"context"
	"encoding/json"
	"time"

	"github.com/BearBump/TourSync/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// ReconcileTour блокирует тур, читает effective_status привязанных заказов в той же
// транзакции и записывает результат merge. incoming == nil означает только пересчёт.
func (s *Storage) ReconcileTour(ctx context.Context, tourID string, incoming *models.Tour, merge func(persisted, incoming *models.Tour, linked []string) *models.Tour) (*models.Tour, error) {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	persisted, err := lockTour(ctx, tx, tourID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	rows, err := tx.Query(ctx, `SELECT effective_status FROM orders WHERE tour_id = $1`, tourID)
	if err != nil {
		return nil, errors.Wrap(err, "select linked statuses")
	}
	linked, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, errors.Wrap(err, "scan linked status")
	}

	out := merge(persisted, incoming, linked)
	if out == nil {
		return nil, errors.Wrapf(models.ErrNotFound, "tour %s", tourID)
	}
	out.UpdatedAt = now
	out.CreatedAt = now
	if persisted != nil {
		out.CreatedAt = persisted.CreatedAt
	}

	raw, err := json.Marshal(out)
	if err != nil {
		return nil, errors.Wrap(err, "encode tour")
	}
	if persisted == nil {
		tag, err := tx.Exec(ctx, `
INSERT INTO tours (tour_id, tour_status, data, created_at, updated_at)
VALUES ($1,$2,$3,$4,$4)
ON CONFLICT (tour_id) DO NOTHING
`, tourID, out.TourStatus, raw, now)
		if err != nil {
			return nil, errors.Wrap(err, "insert tour")
		}
		if tag.RowsAffected() == 0 {
			return nil, errors.Wrapf(models.ErrPersistenceConflict, "insert tour %s", tourID)
		}
	} else {
		if err := writeTour(ctx, tx, out, raw); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}
	return out, nil
}

// UpdateTour выполняет fn над заблокированным туром. Ошибка из fn откатывает транзакцию.
func (s *Storage) UpdateTour(ctx context.Context, tourID string, fn func(t *models.Tour) error) (*models.Tour, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	t, err := lockTour(ctx, tx, tourID)
	if err != nil {
		return nil, err
	}
	if err := fn(t); err != nil {
		return nil, err
	}
	t.UpdatedAt = time.Now().UTC()
	raw, err := json.Marshal(t)
	if err != nil {
		return nil, errors.Wrap(err, "encode tour")
	}
	if err := writeTour(ctx, tx, t, raw); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}
	return t, nil
}

func (s *Storage) GetTour(ctx context.Context, tourID string) (*models.Tour, error) {
	var raw []byte
	err := s.db.QueryRow(ctx, `SELECT data FROM tours WHERE tour_id = $1`, tourID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(models.ErrNotFound, "tour %s", tourID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "select tour")
	}
	var t models.Tour
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, errors.Wrap(err, "decode tour")
	}
	return &t, nil
}

func lockTour(ctx context.Context, tx pgx.Tx, tourID string) (*models.Tour, error) {
	var raw []byte
	err := tx.QueryRow(ctx, `SELECT data FROM tours WHERE tour_id = $1 FOR UPDATE NOWAIT`, tourID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(models.ErrNotFound, "tour %s", tourID)
	}
	if err != nil {
		return nil, lockErr(err, "lock tour")
	}
	var t models.Tour
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, errors.Wrap(err, "decode tour")
	}
	return &t, nil
}

func writeTour(ctx context.Context, tx pgx.Tx, t *models.Tour, raw []byte) error {
	_, err := tx.Exec(ctx, `
UPDATE tours SET tour_status = $2, data = $3, updated_at = $4 WHERE tour_id = $1
`, t.TourID, t.TourStatus, raw, t.UpdatedAt)
	return errors.Wrap(err, "update tour")
}
