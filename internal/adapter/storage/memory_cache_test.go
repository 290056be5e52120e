package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rl1809/catalog-sync/internal/testutil"
)

func TestMemoryCache_SweepsExpiredOnSet(t *testing.T) {
	clock := testutil.FixedClock()
	c := NewMemoryCache(clock)
	ctx := context.Background()

	for i := 0; i < 10000; i++ {
		if err := c.Set(ctx, "subcategories", fmt.Sprintf("subcategories?page=%d", i), []byte("{}"), time.Minute); err != nil {
			t.Fatalf("set: %v", err)
		}
	}
	if n := c.Len(); n != 10000 {
		t.Fatalf("expected 10000 items, got %d", n)
	}

	clock.Advance(time.Hour)
	if err := c.Set(ctx, "categories", "categories", []byte("{}"), time.Hour); err != nil {
		t.Fatalf("set: %v", err)
	}

	if n := c.Len(); n != 1 {
		t.Errorf("expected expired items to be swept, %d remain", n)
	}
	if n := c.indexed("subcategories"); n != 0 {
		t.Errorf("namespace index still tracks %d expired keys", n)
	}
}

func TestMemoryCache_SweepIsRateLimited(t *testing.T) {
	clock := testutil.FixedClock()
	c := NewMemoryCache(clock)
	ctx := context.Background()

	_ = c.Set(ctx, "availability", "availability", []byte("{}"), time.Second)
	clock.Advance(2 * time.Second)
	_ = c.Set(ctx, "categories", "categories", []byte("{}"), time.Hour)

	// less than a sweep interval since the first Set swept
	if n := c.Len(); n != 2 {
		t.Errorf("expected the expired item to wait for the next sweep, got %d items", n)
	}
	if _, ok, _ := c.Get(ctx, "availability"); ok {
		t.Error("expired item must not be served")
	}
	if n := c.Len(); n != 1 {
		t.Errorf("expected the read to drop the expired item, got %d items", n)
	}
}

func TestMemoryCache_DeleteUpdatesNamespaceIndex(t *testing.T) {
	c := NewMemoryCache(testutil.FixedClock())
	ctx := context.Background()

	_ = c.Set(ctx, "subcategories", "subcategories?page=1", []byte("1"), time.Hour)
	_ = c.Set(ctx, "subcategories", "subcategories?page=2", []byte("2"), time.Hour)

	if err := c.Delete(ctx, "subcategories?page=1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n := c.indexed("subcategories"); n != 1 {
		t.Errorf("expected 1 indexed key after delete, got %d", n)
	}

	if err := c.DeleteNamespace(ctx, "subcategories"); err != nil {
		t.Fatalf("delete namespace: %v", err)
	}
	if n := c.Len(); n != 0 {
		t.Errorf("expected empty cache, got %d items", n)
	}
	if n := c.indexed("subcategories"); n != 0 {
		t.Errorf("expected empty index, got %d", n)
	}
}

func TestMemoryCache_GetReturnsCopy(t *testing.T) {
	c := NewMemoryCache(nil)
	ctx := context.Background()

	_ = c.Set(ctx, "categories", "categories", []byte("abc"), 0)
	got, ok, err := c.Get(ctx, "categories")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	got[0] = 'x'

	again, _, _ := c.Get(ctx, "categories")
	if string(again) != "abc" {
		t.Errorf("stored value was mutated through a returned slice: %q", again)
	}
}
