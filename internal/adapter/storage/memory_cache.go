package storage

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/rl1809/catalog-sync/internal/port"
)

// sweepInterval is the least time between two full scans for expired items.
const sweepInterval = time.Minute

type memoryCacheItem struct {
	value     []byte
	namespace string
	expiresAt time.Time
}

func (i memoryCacheItem) expired(now time.Time) bool {
	return !i.expiresAt.IsZero() && !now.Before(i.expiresAt)
}

// MemoryCache is a process-local cache backend for single-instance
// deployments and tests. Expired items are dropped on read and by a sweep
// that Set runs at most once per sweepInterval.
type MemoryCache struct {
	mu         sync.Mutex
	items      map[string]memoryCacheItem
	namespaces map[string]map[string]struct{}
	now        func() time.Time
	lastSweep  time.Time
}

var _ port.CacheRepository = (*MemoryCache)(nil)

func NewMemoryCache(clock port.Clock) *MemoryCache {
	if clock == nil {
		clock = port.RealClock{}
	}
	return &MemoryCache{
		items:      make(map[string]memoryCacheItem),
		namespaces: make(map[string]map[string]struct{}),
		now:        clock.Now,
	}
}

func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.items[key]
	if !ok {
		return nil, false, nil
	}
	if item.expired(c.now()) {
		c.remove(key)
		return nil, false, nil
	}
	return slices.Clone(item.value), true, nil
}

func (c *MemoryCache) Set(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if now.Sub(c.lastSweep) >= sweepInterval {
		c.sweep(now)
	}

	// a key moving namespaces must leave its old index
	if old, ok := c.items[key]; ok && old.namespace != namespace {
		c.remove(key)
	}

	item := memoryCacheItem{value: slices.Clone(value), namespace: namespace}
	if ttl > 0 {
		item.expiresAt = now.Add(ttl)
	}
	c.items[key] = item

	if c.namespaces[namespace] == nil {
		c.namespaces[namespace] = make(map[string]struct{})
	}
	c.namespaces[namespace][key] = struct{}{}
	return nil
}

func (c *MemoryCache) Delete(ctx context.Context, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, key := range keys {
		c.remove(key)
	}
	return nil
}

func (c *MemoryCache) DeleteNamespace(ctx context.Context, namespace string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.namespaces[namespace] {
		delete(c.items, key)
	}
	delete(c.namespaces, namespace)
	return nil
}

// Len returns the number of stored keys, including expired ones not yet swept.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// indexed returns the number of keys tracked for namespace.
func (c *MemoryCache) indexed(namespace string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.namespaces[namespace])
}

// remove drops key from items and from its namespace index. c.mu must be held.
func (c *MemoryCache) remove(key string) {
	item, ok := c.items[key]
	if !ok {
		return
	}
	delete(c.items, key)
	if members := c.namespaces[item.namespace]; members != nil {
		delete(members, key)
		if len(members) == 0 {
			delete(c.namespaces, item.namespace)
		}
	}
}

// sweep drops every expired item. c.mu must be held.
func (c *MemoryCache) sweep(now time.Time) {
	for key, item := range c.items {
		if item.expired(now) {
			c.remove(key)
		}
	}
	c.lastSweep = now
}
