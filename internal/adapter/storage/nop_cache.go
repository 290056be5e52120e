package storage

import (
	"context"
	"time"

	"github.com/rl1809/catalog-sync/internal/port"
)

// NopCache stores nothing. Every read misses, so every request goes to the store.
type NopCache struct{}

var _ port.CacheRepository = NopCache{}

func (NopCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

func (NopCache) Set(context.Context, string, string, []byte, time.Duration) error { return nil }

func (NopCache) Delete(context.Context, ...string) error { return nil }

func (NopCache) DeleteNamespace(context.Context, string) error { return nil }
