package port

import (
	"context"
	"time"
)

type CacheRepository interface {
	// Get returns ok=false on a miss
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Set stores value under key with a TTL and records key as a member of namespace
	Set(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error

	// Delete removes the given keys
	Delete(ctx context.Context, keys ...string) error

	// DeleteNamespace removes every key recorded under namespace
	DeleteNamespace(ctx context.Context, namespace string) error
}
