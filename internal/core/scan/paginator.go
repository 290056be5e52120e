package scan

import (
	"context"
	"fmt"

	"github.com/rl1809/catalog-sync/internal/core/domain"
	"github.com/rl1809/catalog-sync/internal/logging"
	"github.com/rl1809/catalog-sync/internal/port"
)

const (
	// overFetchFactor compensates for unknown filter selectivity: the store
	// filters after limiting, so a filtered batch needs headroom.
	overFetchFactor  = 5
	maxFilteredBatch = 500

	// unfilteredSlack asks for one record past the page so HasMore can be
	// decided without trusting a continuation token on a full batch.
	unfilteredSlack = 1
)

// Result is one page of entries plus the bookkeeping a caller needs to keep
// paging. Total is exact for unfiltered scans and a lower bound otherwise.
type Result struct {
	Entries    []domain.CatalogEntry
	Total      int
	Page       int
	PageSize   int
	TotalPages int
	HasMore    bool
	Partial    bool
}

// Paginator simulates page/limit access over a scan-only table by buffering
// from the start of the table on every call. Nothing is kept between calls.
type Paginator struct {
	store   port.ScanStore
	ceiling int
	logger  logging.Logger
}

func NewPaginator(store port.ScanStore, ceiling int, logger logging.Logger) *Paginator {
	if ceiling <= 0 {
		ceiling = DefaultCeiling
	}
	return &Paginator{
		store:   store,
		ceiling: ceiling,
		logger:  logger.With("component", "paginator"),
	}
}

func (p *Paginator) Paginate(ctx context.Context, table string, page, pageSize int, filter port.Filter) (*Result, error) {
	if page < 1 {
		return nil, fmt.Errorf("%w: page must be >= 1, got %d", domain.ErrInvalidArgument, page)
	}
	if pageSize < 1 {
		return nil, fmt.Errorf("%w: pageSize must be >= 1, got %d", domain.ErrInvalidArgument, pageSize)
	}

	it := NewIterator(p.store, table, filter, p.ceiling, p.logger)

	// A page starting at or past the ceiling can never be filled, and for
	// very large pages page*pageSize would overflow. Only count.
	if page-1 > (p.ceiling-1)/pageSize {
		total, err := it.Count(ctx)
		if err != nil {
			return nil, err
		}
		return &Result{
			Total:      total,
			Page:       page,
			PageSize:   pageSize,
			TotalPages: (total + pageSize - 1) / pageSize,
			Partial:    it.Truncated(),
		}, nil
	}

	needed := page * pageSize

	var buf []domain.CatalogEntry
	for len(buf) <= needed && !it.Done() {
		recs, err := it.Next(ctx, batchSize(needed-len(buf), filter))
		if err != nil {
			return nil, err
		}
		entries, err := DecodeEntries(recs)
		if err != nil {
			return nil, err
		}
		buf = append(buf, entries...)
	}

	total := len(buf)
	if !it.Done() {
		n, err := it.Count(ctx)
		if err != nil {
			return nil, err
		}
		total += n
	}

	var items []domain.CatalogEntry
	if start := (page - 1) * pageSize; start < len(buf) {
		items = buf[start:min(needed, len(buf))]
	}

	res := &Result{
		Entries:    items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (total + pageSize - 1) / pageSize,
		HasMore:    total > needed || (it.Truncated() && len(items) > 0),
		Partial:    it.Truncated(),
	}
	return res, nil
}

func batchSize(remaining int, filter port.Filter) int {
	if filter.Empty() {
		return remaining + unfilteredSlack
	}
	return min(max(remaining, 1)*overFetchFactor, maxFilteredBatch)
}
