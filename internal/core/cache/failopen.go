package cache

import (
	"context"
	"time"

	"github.com/rl1809/catalog-sync/internal/logging"
	"github.com/rl1809/catalog-sync/internal/port"
)

const DefaultOpTimeout = 200 * time.Millisecond

// FailOpen wraps a cache backend so that no backend error or timeout ever
// reaches the caller. A failed Get is a miss; failed writes and deletes are
// logged and dropped.
type FailOpen struct {
	backend port.CacheRepository
	timeout time.Duration
	logger  logging.Logger
}

var _ port.CacheRepository = (*FailOpen)(nil)

func NewFailOpen(backend port.CacheRepository, timeout time.Duration, logger logging.Logger) *FailOpen {
	if timeout <= 0 {
		timeout = DefaultOpTimeout
	}
	return &FailOpen{
		backend: backend,
		timeout: timeout,
		logger:  logger,
	}
}

func (f *FailOpen) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	value, ok, err := f.backend.Get(ctx, key)
	if err != nil {
		f.logger.Warn(ctx, "cache get failed, treating as miss", "op", "get", "key", key, "error", err)
		return nil, false, nil
	}
	return value, ok, nil
}

func (f *FailOpen) Set(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	if err := f.backend.Set(ctx, namespace, key, value, ttl); err != nil {
		f.logger.Warn(ctx, "cache set failed", "op", "set", "key", key, "error", err)
	}
	return nil
}

func (f *FailOpen) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	if err := f.backend.Delete(ctx, keys...); err != nil {
		f.logger.Warn(ctx, "cache delete failed", "op", "delete", "keys", keys, "error", err)
	}
	return nil
}

func (f *FailOpen) DeleteNamespace(ctx context.Context, namespace string) error {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	if err := f.backend.DeleteNamespace(ctx, namespace); err != nil {
		f.logger.Warn(ctx, "cache namespace invalidation failed", "op", "delete_namespace", "namespace", namespace, "error", err)
	}
	return nil
}
