package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned before any I/O for malformed input.
	ErrInvalidArgument = errors.New("invalid argument")

	ErrNotFound = errors.New("not found")

	// ErrScanBudgetExceeded marks a result as a lower bound rather than exhaustive.
	// It is reported, not returned as a failure.
	ErrScanBudgetExceeded = errors.New("scan budget exceeded")

	// ErrStoreUnavailable tags transient store failures; callers should retry with backoff.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrSyncUnavailable means a delta call failed as a whole and no watermark
	// may be advanced client-side.
	ErrSyncUnavailable = errors.New("sync unavailable")
)

// Retryable reports whether err belongs to the transient part of the taxonomy.
func Retryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) || errors.Is(err, ErrSyncUnavailable)
}

// TagStoreError marks a store failure as retryable. Cancellation passes through
// untagged, as does an error that is already tagged.
func TagStoreError(err error) error {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}
