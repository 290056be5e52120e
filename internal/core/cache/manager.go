package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/rl1809/catalog-sync/internal/logging"
	"github.com/rl1809/catalog-sync/internal/port"
)

// DefaultLoadTimeout bounds a shared read-through load once it no longer
// depends on any one caller's context.
const DefaultLoadTimeout = 30 * time.Second

type Options struct {
	TTLs        TTLs
	OpTimeout   time.Duration
	LoadTimeout time.Duration
}

// Manager owns cache storage. Every backend call goes through a FailOpen
// decorator, so none of its methods return errors.
//
// Invalidation bumps an in-process generation counter for the namespace. A
// load that started before the bump is not written back, and a read issued
// after the bump never joins a load that started before it. Entries carry the
// writer's id and generation, so this process ignores its own entries from a
// retired generation even if one lands after the invalidation's delete.
// No lock is held across a backend call.
type Manager struct {
	backend     port.CacheRepository
	clock       port.Clock
	ttls        TTLs
	loadTimeout time.Duration
	logger      logging.Logger
	id          string

	group singleflight.Group

	mu          sync.Mutex
	generations map[string]uint64
}

func NewManager(backend port.CacheRepository, clock port.Clock, opts Options, logger logging.Logger) *Manager {
	logger = logger.With("component", "cache")
	defaults := DefaultTTLs()
	if opts.TTLs.Short <= 0 {
		opts.TTLs.Short = defaults.Short
	}
	if opts.TTLs.Long <= 0 {
		opts.TTLs.Long = defaults.Long
	}
	if opts.TTLs.Static <= 0 {
		opts.TTLs.Static = defaults.Static
	}
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = DefaultLoadTimeout
	}
	return &Manager{
		backend:     NewFailOpen(backend, opts.OpTimeout, logger),
		clock:       clock,
		ttls:        opts.TTLs,
		loadTimeout: opts.LoadTimeout,
		logger:      logger,
		id:          uuid.NewString(),
		generations: make(map[string]uint64),
	}
}

// Get returns the entry stored under key, or false on a miss. Undecodable
// entries and this manager's entries from a retired generation count as misses.
func (m *Manager) Get(ctx context.Context, key string) (*Entry, bool) {
	raw, ok, _ := m.backend.Get(ctx, key)
	if !ok {
		return nil, false
	}
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		m.logger.Warn(ctx, "discarding undecodable cache entry", "key", key, "error", err)
		_ = m.backend.Delete(ctx, key)
		return nil, false
	}
	if entry.Writer == m.id && entry.Generation != m.generation(NamespaceOf(key)) {
		return nil, false
	}
	entry.Key = key
	return &entry, true
}

// Set stores value under key with the tier's TTL.
func (m *Manager) Set(ctx context.Context, key string, value any, tier Tier) {
	m.set(ctx, key, value, tier, m.generation(NamespaceOf(key)))
}

func (m *Manager) set(ctx context.Context, key string, value any, tier Tier, gen uint64) {
	ttl, err := m.ttls.For(tier)
	if err != nil {
		m.logger.Warn(ctx, "cache set skipped", "key", key, "error", err)
		return
	}
	payload, err := json.Marshal(value)
	if err != nil {
		m.logger.Warn(ctx, "cache set skipped", "key", key, "error", err)
		return
	}
	raw, err := json.Marshal(Entry{
		Tier:       tier,
		WrittenAt:  m.clock.Now(),
		Value:      payload,
		Writer:     m.id,
		Generation: gen,
	})
	if err != nil {
		m.logger.Warn(ctx, "cache set skipped", "key", key, "error", err)
		return
	}
	_ = m.backend.Set(ctx, NamespaceOf(key), key, raw, ttl)
}

// setIfCurrent writes value unless ns was invalidated after gen was read. An
// invalidation that lands while the write is in flight is caught by the
// second check, which removes the entry again for other replicas.
func (m *Manager) setIfCurrent(ctx context.Context, key string, value any, tier Tier, ns string, gen uint64) bool {
	if m.generation(ns) != gen {
		return false
	}
	m.set(ctx, key, value, tier, gen)
	if m.generation(ns) != gen {
		_ = m.backend.Delete(ctx, key)
		return false
	}
	return true
}

// Invalidate removes individual keys. The generation of each key's namespace
// is bumped, so this manager also stops serving its own earlier entries for
// sibling keys; other replicas keep them until they expire.
func (m *Manager) Invalidate(ctx context.Context, keys ...string) {
	for _, key := range keys {
		m.bump(NamespaceOf(key))
	}
	_ = m.backend.Delete(ctx, keys...)
}

// InvalidateNamespace removes every key derived from each namespace.
func (m *Manager) InvalidateNamespace(ctx context.Context, namespaces ...string) {
	for _, ns := range namespaces {
		m.bump(ns)
		_ = m.backend.DeleteNamespace(ctx, ns)
		m.logger.Debug(ctx, "namespace invalidated", "namespace", ns)
	}
}

func (m *Manager) bump(namespace string) {
	m.mu.Lock()
	m.generations[namespace]++
	m.mu.Unlock()
}

func (m *Manager) generation(namespace string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generations[namespace]
}
