package delta

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/catalog-sync/internal/adapter/storage"
	"github.com/rl1809/catalog-sync/internal/core/domain"
	"github.com/rl1809/catalog-sync/internal/logging"
	"github.com/rl1809/catalog-sync/internal/testutil"
)

type fixture struct {
	store  *storage.MemoryStore
	clock  *testutil.StubClock
	engine *Engine
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	store := storage.NewMemoryStore()
	clock := testutil.FixedClock()
	return &fixture{
		store:  store,
		clock:  clock,
		engine: NewEngine(store, clock, opts, logging.NewNopLogger()),
	}
}

func (f *fixture) put(t *testing.T, kind domain.Kind, e domain.CatalogEntry) {
	t.Helper()
	require.NoError(t, f.store.Put(context.Background(), kind.Table(), e.ID, e))
}

func ids(entries []domain.CatalogEntry) []int64 {
	out := make([]int64, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}

func TestDelta_CreateThenSoftDelete(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	t1 := f.clock.Now()
	metal := domain.CatalogEntry{ID: 1, Name: "Metal", CreatedAt: t1, UpdatedAt: t1}
	f.put(t, domain.KindCategory, metal)

	wm := t1.Add(-time.Second)
	res, err := f.engine.Delta(ctx, domain.KindCategory, &wm)
	require.NoError(t, err)
	kd := res.Kinds[domain.KindCategory]
	require.Len(t, kd.Changed, 1)
	assert.Equal(t, "Metal", kd.Changed[0].Name)
	assert.Empty(t, kd.Tombstones)

	f.clock.Advance(time.Minute)
	metal.MarkDeleted(f.clock.Now())
	f.put(t, domain.KindCategory, metal)

	res, err = f.engine.Delta(ctx, domain.KindCategory, &wm)
	require.NoError(t, err)
	kd = res.Kinds[domain.KindCategory]
	assert.Empty(t, kd.Changed)
	assert.Equal(t, []domain.Tombstone{{ID: 1}}, kd.Tombstones)
}

func TestDelta_FullSyncExcludesTombstones(t *testing.T) {
	f := newFixture(t, Options{})
	now := f.clock.Now()
	f.put(t, domain.KindCategory, domain.CatalogEntry{ID: 1, Name: "Metal", CreatedAt: now, UpdatedAt: now})
	f.put(t, domain.KindCategory, domain.CatalogEntry{ID: 2, Name: "Paper", CreatedAt: now, UpdatedAt: now, Deleted: true})

	res, err := f.engine.Delta(context.Background(), domain.KindCategory, nil)
	require.NoError(t, err)

	kd := res.Kinds[domain.KindCategory]
	assert.Equal(t, []int64{1}, ids(kd.Changed))
	assert.Empty(t, kd.Tombstones)
	require.NotNil(t, res.NewWatermark)
	assert.Equal(t, now, *res.NewWatermark)
}

func TestDelta_BufferWindow(t *testing.T) {
	f := newFixture(t, Options{BufferWindow: 30 * time.Second})
	wm := f.clock.Now()

	f.put(t, domain.KindCategory, domain.CatalogEntry{ID: 1, Name: "old", CreatedAt: wm.Add(-time.Hour), UpdatedAt: wm.Add(-time.Hour)})
	f.put(t, domain.KindCategory, domain.CatalogEntry{ID: 2, Name: "skewed", CreatedAt: wm.Add(-time.Hour), UpdatedAt: wm.Add(-10 * time.Second)})
	f.put(t, domain.KindCategory, domain.CatalogEntry{ID: 3, Name: "new", CreatedAt: wm.Add(5 * time.Second), UpdatedAt: wm.Add(5 * time.Second)})
	f.put(t, domain.KindCategory, domain.CatalogEntry{ID: 4, Name: "edge", CreatedAt: wm.Add(-time.Hour), UpdatedAt: wm.Add(-30 * time.Second)})

	res, err := f.engine.Delta(context.Background(), domain.KindCategory, &wm)
	require.NoError(t, err)

	assert.ElementsMatch(t, []int64{2, 3}, ids(res.Kinds[domain.KindCategory].Changed))
}

func TestDelta_CreatedAtAloneQualifies(t *testing.T) {
	f := newFixture(t, Options{})
	wm := f.clock.Now()

	// updatedAt older than createdAt violates the entry invariant, but a
	// corrupt row must still not be lost.
	f.put(t, domain.KindSubcategory, domain.CatalogEntry{ID: 9, CreatedAt: wm.Add(time.Minute), UpdatedAt: wm.Add(-time.Hour)})

	res, err := f.engine.Delta(context.Background(), domain.KindSubcategory, &wm)
	require.NoError(t, err)
	assert.Equal(t, []int64{9}, ids(res.Kinds[domain.KindSubcategory].Changed))
}

func TestDelta_TombstonesAreSticky(t *testing.T) {
	f := newFixture(t, Options{})
	deletedAt := f.clock.Now()
	f.put(t, domain.KindCategory, domain.CatalogEntry{ID: 5, CreatedAt: deletedAt, UpdatedAt: deletedAt, Deleted: true})

	f.clock.Advance(90 * 24 * time.Hour)
	for _, age := range []time.Duration{time.Second, time.Hour, 30 * 24 * time.Hour} {
		wm := f.clock.Now().Add(-age)
		res, err := f.engine.Delta(context.Background(), domain.KindCategory, &wm)
		require.NoError(t, err)
		assert.Equal(t, []domain.Tombstone{{ID: 5}}, res.Kinds[domain.KindCategory].Tombstones, "watermark age %s", age)
	}
}

func TestDelta_NewWatermarkIsResponseTime(t *testing.T) {
	f := newFixture(t, Options{})
	f.put(t, domain.KindCategory, domain.CatalogEntry{ID: 1, CreatedAt: f.clock.Now(), UpdatedAt: f.clock.Now()})
	f.clock.Advance(time.Hour)

	wm := f.clock.Now().Add(-2 * time.Hour)
	res, err := f.engine.Delta(context.Background(), domain.KindCategory, &wm)
	require.NoError(t, err)
	require.NotNil(t, res.NewWatermark)
	assert.Equal(t, f.clock.Now(), *res.NewWatermark)
}

func TestDeltaAll_BothKinds(t *testing.T) {
	f := newFixture(t, Options{})
	now := f.clock.Now()
	parent := int64(1)
	f.put(t, domain.KindCategory, domain.CatalogEntry{ID: 1, Name: "Metal", CreatedAt: now, UpdatedAt: now})
	f.put(t, domain.KindSubcategory, domain.CatalogEntry{ID: 1, Name: "Copper", ParentID: &parent, CreatedAt: now, UpdatedAt: now})
	f.put(t, domain.KindSubcategory, domain.CatalogEntry{ID: 2, Name: "Brass", ParentID: &parent, CreatedAt: now, UpdatedAt: now, Deleted: true})

	wm := now.Add(-time.Minute)
	res, err := f.engine.DeltaAll(context.Background(), domain.Kinds, &wm)
	require.NoError(t, err)

	assert.Equal(t, []int64{1}, ids(res.Kinds[domain.KindCategory].Changed))
	assert.Equal(t, []int64{1}, ids(res.Kinds[domain.KindSubcategory].Changed))
	assert.Equal(t, []domain.Tombstone{{ID: 2}}, res.Kinds[domain.KindSubcategory].Tombstones)
}

func TestDeltaAll_FailsAtomically(t *testing.T) {
	f := newFixture(t, Options{})
	now := f.clock.Now()
	f.put(t, domain.KindCategory, domain.CatalogEntry{ID: 1, CreatedAt: now, UpdatedAt: now})
	f.store.FailScans(domain.KindSubcategory.Table(), errors.New("throughput exceeded"))

	res, err := f.engine.DeltaAll(context.Background(), domain.Kinds, nil)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, domain.ErrSyncUnavailable)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestDelta_TruncatedScanDoesNotAdvance(t *testing.T) {
	f := newFixture(t, Options{Ceiling: 10})
	now := f.clock.Now()
	for i := int64(1); i <= 25; i++ {
		f.put(t, domain.KindCategory, domain.CatalogEntry{ID: i, CreatedAt: now, UpdatedAt: now})
	}
	f.clock.Advance(time.Hour)

	wm := now.Add(-time.Minute)
	res, err := f.engine.Delta(context.Background(), domain.KindCategory, &wm)
	require.NoError(t, err)
	assert.True(t, res.Partial)
	require.NotNil(t, res.NewWatermark)
	assert.Equal(t, wm, *res.NewWatermark)

	full, err := f.engine.Delta(context.Background(), domain.KindCategory, nil)
	require.NoError(t, err)
	assert.True(t, full.Partial)
	assert.Nil(t, full.NewWatermark)
}

// Every entry touched after a watermark must come back in changed or
// tombstones on the next delta against that watermark.
func TestDelta_Completeness(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	base := f.clock.Now()
	entries := make(map[int64]domain.CatalogEntry)
	for i := int64(1); i <= 40; i++ {
		e := domain.CatalogEntry{ID: i, CreatedAt: base.Add(-time.Hour), UpdatedAt: base.Add(-time.Hour)}
		entries[i] = e
		f.put(t, domain.KindCategory, e)
	}

	t0 := f.clock.Now()
	touched := make(map[int64]bool)
	for n := 0; n < 60; n++ {
		f.clock.Advance(time.Duration(rng.Intn(5000)) * time.Millisecond)
		id := int64(rng.Intn(50) + 1)
		e, ok := entries[id]
		if !ok {
			e = domain.CatalogEntry{ID: id, CreatedAt: f.clock.Now()}
		}
		if e.Deleted {
			continue
		}
		if rng.Intn(4) == 0 {
			e.MarkDeleted(f.clock.Now())
		} else {
			e.Touch(f.clock.Now())
		}
		entries[id] = e
		f.put(t, domain.KindCategory, e)
		touched[id] = true
	}

	res, err := f.engine.Delta(ctx, domain.KindCategory, &t0)
	require.NoError(t, err)

	returned := make(map[int64]bool)
	for _, e := range res.Kinds[domain.KindCategory].Changed {
		returned[e.ID] = true
	}
	for _, ts := range res.Kinds[domain.KindCategory].Tombstones {
		returned[ts.ID] = true
	}
	for id := range touched {
		assert.True(t, returned[id], "entry %d touched after watermark but missing from delta", id)
	}
}

func TestParseWatermark(t *testing.T) {
	wm, err := ParseWatermark("")
	require.NoError(t, err)
	assert.Nil(t, wm)

	wm, err = ParseWatermark("2024-01-15T10:30:00.000Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC), *wm)

	wm, err = ParseWatermark("2024-01-15T12:30:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC), *wm)

	wm, err = ParseWatermark("2024-01-15T10:30:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC), *wm)

	_, err = ParseWatermark("yesterday")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}
