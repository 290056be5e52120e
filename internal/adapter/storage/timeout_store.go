package storage

import (
	"context"
	"time"

	"github.com/rl1809/catalog-sync/internal/port"
)

// TimeoutStore bounds every call to the wrapped store with a deadline. A call
// that runs out of time fails with context.DeadlineExceeded, which the service
// reports as a retryable store failure.
type TimeoutStore struct {
	next    port.ScanStore
	timeout time.Duration
}

var _ port.ScanStore = (*TimeoutStore)(nil)

// WithTimeout returns next unchanged when timeout is not positive.
func WithTimeout(next port.ScanStore, timeout time.Duration) port.ScanStore {
	if timeout <= 0 {
		return next
	}
	return &TimeoutStore{next: next, timeout: timeout}
}

func (s *TimeoutStore) Scan(ctx context.Context, req port.ScanRequest) (*port.ScanPage, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.next.Scan(ctx, req)
}

func (s *TimeoutStore) Get(ctx context.Context, table string, id int64) (port.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.next.Get(ctx, table, id)
}

func (s *TimeoutStore) Put(ctx context.Context, table string, id int64, item any) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.next.Put(ctx, table, id, item)
}

func (s *TimeoutStore) NextID(ctx context.Context, table string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.next.NextID(ctx, table)
}
