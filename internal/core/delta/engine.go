// Package delta computes "changed since watermark" sets over a store that has
// no change log and no server-side sequence counter.
//
// updatedAt is the only ordering signal, so the engine trades over-inclusion
// for completeness: anything touched within BufferWindow before the client's
// watermark is sent again, and every tombstone is sent on every delta.
package delta

import (
	"context"
	"fmt"
	"time"

	"github.com/rl1809/catalog-sync/internal/core/domain"
	"github.com/rl1809/catalog-sync/internal/core/scan"
	"github.com/rl1809/catalog-sync/internal/logging"
	"github.com/rl1809/catalog-sync/internal/port"
)

const DefaultBufferWindow = 30 * time.Second

type Options struct {
	// BufferWindow absorbs clock skew between store writes and client
	// watermarks, and store write-visibility delay.
	BufferWindow time.Duration
	Ceiling      int
}

// Result holds one KindDelta per requested kind. NewWatermark is nil when the
// client must not advance (a truncated full sync).
type Result struct {
	Kinds        map[domain.Kind]*domain.KindDelta
	NewWatermark *time.Time
	Partial      bool
}

type Engine struct {
	store   port.ScanStore
	clock   port.Clock
	buffer  time.Duration
	ceiling int
	logger  logging.Logger
}

func NewEngine(store port.ScanStore, clock port.Clock, opts Options, logger logging.Logger) *Engine {
	if opts.BufferWindow <= 0 {
		opts.BufferWindow = DefaultBufferWindow
	}
	return &Engine{
		store:   store,
		clock:   clock,
		buffer:  opts.BufferWindow,
		ceiling: opts.Ceiling,
		logger:  logger.With("component", "delta"),
	}
}

// Delta computes the delta for a single kind.
func (e *Engine) Delta(ctx context.Context, kind domain.Kind, watermark *time.Time) (*Result, error) {
	return e.DeltaAll(ctx, []domain.Kind{kind}, watermark)
}

// DeltaAll runs the per-kind computation for each kind in turn. A failure on
// any kind fails the whole call with ErrSyncUnavailable; partial results are
// never returned.
func (e *Engine) DeltaAll(ctx context.Context, kinds []domain.Kind, watermark *time.Time) (*Result, error) {
	res := &Result{Kinds: make(map[domain.Kind]*domain.KindDelta, len(kinds))}

	for _, kind := range kinds {
		kd, err := e.kindDelta(ctx, kind, watermark)
		if err != nil {
			e.logger.Error(ctx, "delta failed", "kind", kind, "error", err)
			return nil, fmt.Errorf("%w: %s: %w", domain.ErrSyncUnavailable, kind, err)
		}
		res.Kinds[kind] = kd
		res.Partial = res.Partial || kd.Partial
	}

	// Taken after the scans so the next request's buffer window still covers
	// writes that landed while this response was being built.
	now := e.clock.Now()
	switch {
	case !res.Partial:
		res.NewWatermark = &now
	case watermark != nil:
		echo := *watermark
		res.NewWatermark = &echo
	}
	return res, nil
}

func (e *Engine) kindDelta(ctx context.Context, kind domain.Kind, watermark *time.Time) (*domain.KindDelta, error) {
	// Tombstone detection needs deleted rows too, so only a full sync may
	// filter at the store.
	var filter port.Filter
	if watermark == nil {
		filter = port.Filter{{Field: "deleted", Value: false}}
	}

	var cutoff time.Time
	if watermark != nil {
		cutoff = watermark.Add(-e.buffer)
	}

	out := &domain.KindDelta{
		Changed:    []domain.CatalogEntry{},
		Tombstones: []domain.Tombstone{},
	}

	it := scan.NewIterator(e.store, kind.Table(), filter, e.ceiling, e.logger)
	for !it.Done() {
		recs, err := it.Next(ctx, scan.DefaultBatchSize)
		if err != nil {
			return nil, err
		}
		entries, err := scan.DecodeEntries(recs)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			switch {
			case watermark == nil:
				if !entry.Deleted {
					out.Changed = append(out.Changed, entry)
				}
			case entry.Deleted:
				out.Tombstones = append(out.Tombstones, domain.Tombstone{ID: entry.ID})
			case entry.UpdatedAt.After(cutoff) || entry.CreatedAt.After(cutoff):
				out.Changed = append(out.Changed, entry)
			}
		}
	}

	out.Partial = it.Truncated()
	return out, nil
}
