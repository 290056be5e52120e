package port

import "context"

// Condition is an equality test on a top-level record attribute.
type Condition struct {
	Field string
	Value any
}

// Filter is a conjunction of conditions. The store evaluates it after a batch
// has been limited, so a batch limit caps records scanned, not records matched.
type Filter []Condition

func (f Filter) Empty() bool {
	return len(f) == 0
}

// Record is a raw stored item, decoded lazily into a domain type.
type Record interface {
	Decode(v any) error
}

type ScanRequest struct {
	Table      string
	Limit      int
	StartToken string
	Filter     Filter
	// CountOnly asks for Count/ScannedCount without materializing items.
	CountOnly bool
}

type ScanPage struct {
	Records      []Record
	Count        int // records that matched the filter
	ScannedCount int // records inspected, matched or not
	// NextToken is empty once the table is exhausted. A full batch may carry a
	// token even when nothing follows.
	NextToken string
}

// ScanStore is a scan-only key-value table: no cursors, no offsets, no
// secondary indexes. Items are keyed by table and numeric id.
type ScanStore interface {
	Scan(ctx context.Context, req ScanRequest) (*ScanPage, error)

	// Get returns nil when the item does not exist.
	Get(ctx context.Context, table string, id int64) (Record, error)

	// Put writes the item with last-write-wins semantics.
	Put(ctx context.Context, table string, id int64, item any) error

	// NextID atomically allocates the next id for a table.
	NextID(ctx context.Context, table string) (int64, error)
}
