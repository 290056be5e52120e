package cache

import (
	"context"
	"strconv"
)

// Loader computes a value from the store. cacheable=false returns the value
// without writing it back, e.g. for partial results.
type Loader[T any] func(ctx context.Context) (value T, cacheable bool, err error)

// ReadThrough serves key from the cache or, on a miss, runs load and caches
// its result under tier. Concurrent misses on the same key share one load.
// bypass skips the lookup and always loads, still refreshing the entry.
//
// The returned bool reports whether the value came from the cache.
func ReadThrough[T any](ctx context.Context, m *Manager, key string, tier Tier, bypass bool, load Loader[T]) (T, bool, error) {
	if !bypass {
		if entry, ok := m.Get(ctx, key); ok {
			var v T
			err := entry.Decode(&v)
			if err == nil {
				return v, true, nil
			}
			m.logger.Warn(ctx, "cached value does not match expected shape", "key", key, "error", err)
		}
	}

	ns := NamespaceOf(key)
	gen := m.generation(ns)
	flightKey := key + "#" + strconv.FormatUint(gen, 10)
	if bypass {
		flightKey += "#bypass"
	}

	// The shared load outlives any one caller: each caller waits on its own
	// context, the load only on the manager's load timeout.
	ch := m.group.DoChan(flightKey, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.loadTimeout)
		defer cancel()
		v, cacheable, err := load(loadCtx)
		if err != nil {
			return v, err
		}
		if cacheable && !m.setIfCurrent(loadCtx, key, v, tier, ns, gen) {
			m.logger.Debug(loadCtx, "discarding load that raced an invalidation", "key", key)
		}
		return v, nil
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, false, res.Err
		}
		return res.Val.(T), false, nil
	}
}
