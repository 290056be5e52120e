package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rl1809/catalog-sync/internal/port"
)

// slowStore blocks every scan until its context is done.
type slowStore struct {
	port.ScanStore
}

func (slowStore) Scan(ctx context.Context, req port.ScanRequest) (*port.ScanPage, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestTimeoutStore_Deadline(t *testing.T) {
	store := WithTimeout(slowStore{}, 20*time.Millisecond)

	start := time.Now()
	_, err := store.Scan(context.Background(), port.ScanRequest{Table: "categories", Limit: 10})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("scan was not bounded: took %v", elapsed)
	}
}

func TestTimeoutStore_PassesThrough(t *testing.T) {
	mem := NewMemoryStore()
	store := WithTimeout(mem, time.Second)
	ctx := context.Background()

	id, err := store.NextID(ctx, "categories")
	if err != nil {
		t.Fatalf("NextID: %v", err)
	}
	if err := store.Put(ctx, "categories", id, map[string]any{"id": id, "name": "Metal"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	rec, err := store.Get(ctx, "categories", id)
	if err != nil || rec == nil {
		t.Fatalf("Get: rec=%v err=%v", rec, err)
	}
	page, err := store.Scan(ctx, port.ScanRequest{Table: "categories", Limit: 10})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if page.Count != 1 {
		t.Errorf("expected 1 record, got %d", page.Count)
	}
}

func TestWithTimeout_Disabled(t *testing.T) {
	mem := NewMemoryStore()
	if got := WithTimeout(mem, 0); got != port.ScanStore(mem) {
		t.Error("expected the store to be returned unwrapped")
	}
}
