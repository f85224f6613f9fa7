package pgorders

import (
	"context"

	"github.com/pkg/errors"
)

// Сущности хранятся целиком в data (JSONB); колонки рядом нужны для поиска и индексов.
func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS tours (
  tour_id TEXT PRIMARY KEY,
  tour_status TEXT NOT NULL,
  data JSONB NOT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		`
CREATE TABLE IF NOT EXISTS orders (
  order_id TEXT PRIMARY KEY,
  tour_id TEXT NULL,
  effective_status TEXT NOT NULL,
  is_modified BOOLEAN NOT NULL DEFAULT FALSE,
  data JSONB NOT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_tour_id ON orders(tour_id)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_effective_status ON orders(effective_status)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
