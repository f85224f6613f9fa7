package cache

import (
	"context"
	"time"
)

// BytesCache — кэш текущего состояния сущностей. Промах не является ошибкой.
type BytesCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}
