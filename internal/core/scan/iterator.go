// Package scan turns the store's "scan a batch, maybe get a continuation
// token" primitive into bounded iteration and page/limit access.
//
// The store applies a filter after it has limited a batch: a batch limit caps
// the records scanned, not the records matched. A filtered batch of 100 may
// return anything from 0 to 100 matches and still carry a continuation token.
package scan

import (
	"context"

	"github.com/rl1809/catalog-sync/internal/core/domain"
	"github.com/rl1809/catalog-sync/internal/logging"
	"github.com/rl1809/catalog-sync/internal/port"
)

const (
	// DefaultCeiling bounds the records inspected per logical query.
	DefaultCeiling = 10000

	// DefaultBatchSize is used when a caller drains an iterator without a gap to close.
	DefaultBatchSize = 500
)

// Iterator is a lazy, finite producer of raw records for one table. It is not
// safe for concurrent use. Reset restarts it from the beginning of the table.
type Iterator struct {
	store   port.ScanStore
	table   string
	filter  port.Filter
	ceiling int
	logger  logging.Logger

	token     string
	scanned   int
	done      bool
	truncated bool
}

func NewIterator(store port.ScanStore, table string, filter port.Filter, ceiling int, logger logging.Logger) *Iterator {
	if ceiling <= 0 {
		ceiling = DefaultCeiling
	}
	return &Iterator{
		store:   store,
		table:   table,
		filter:  filter,
		ceiling: ceiling,
		logger:  logger,
	}
}

// Next fetches one batch of at most limit scanned records and returns the
// ones that matched the filter. It returns nil, nil once Done.
func (it *Iterator) Next(ctx context.Context, limit int) ([]port.Record, error) {
	page, err := it.fetch(ctx, limit, false)
	if err != nil || page == nil {
		return nil, err
	}
	return page.Records, nil
}

// Count drains the rest of the table in count-only batches and returns the
// number of matching records seen.
func (it *Iterator) Count(ctx context.Context) (int, error) {
	total := 0
	for !it.done {
		page, err := it.fetch(ctx, DefaultBatchSize, true)
		if err != nil {
			return total, err
		}
		if page != nil {
			total += page.Count
		}
	}
	return total, nil
}

// All drains the rest of the table.
func (it *Iterator) All(ctx context.Context) ([]port.Record, error) {
	var out []port.Record
	for !it.done {
		recs, err := it.Next(ctx, DefaultBatchSize)
		if err != nil {
			return out, err
		}
		out = append(out, recs...)
	}
	return out, nil
}

func (it *Iterator) fetch(ctx context.Context, limit int, countOnly bool) (*port.ScanPage, error) {
	if it.done {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	remaining := it.ceiling - it.scanned
	if remaining <= 0 {
		it.exhaustBudget(ctx)
		return nil, nil
	}
	if limit <= 0 || limit > remaining {
		limit = remaining
	}

	page, err := it.store.Scan(ctx, port.ScanRequest{
		Table:      it.table,
		Limit:      limit,
		StartToken: it.token,
		Filter:     it.filter,
		CountOnly:  countOnly,
	})
	if err != nil {
		return nil, domain.TagStoreError(err)
	}

	it.scanned += page.ScannedCount
	it.token = page.NextToken
	if it.token == "" {
		it.done = true
	} else if it.scanned >= it.ceiling {
		it.exhaustBudget(ctx)
	}
	return page, nil
}

func (it *Iterator) exhaustBudget(ctx context.Context) {
	it.done = true
	it.truncated = true
	it.logger.Warn(ctx, domain.ErrScanBudgetExceeded.Error(),
		"table", it.table,
		"scanned", it.scanned,
		"ceiling", it.ceiling,
	)
}

// Done reports whether the table is exhausted or the ceiling was hit.
func (it *Iterator) Done() bool { return it.done }

// Truncated reports whether iteration stopped at the ceiling rather than at
// the end of the table. Results are then a lower bound.
func (it *Iterator) Truncated() bool { return it.truncated }

// Scanned returns the number of records inspected so far.
func (it *Iterator) Scanned() int { return it.scanned }

// Reset restarts iteration from the beginning of the table.
func (it *Iterator) Reset() {
	it.token = ""
	it.scanned = 0
	it.done = false
	it.truncated = false
}
