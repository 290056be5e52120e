package storage

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"

	"github.com/rl1809/catalog-sync/internal/port"
)

// MemoryStore emulates a scan-only table in process memory. Like DynamoDB it
// limits a batch before filtering and returns a continuation token whenever a
// batch was full.
type MemoryStore struct {
	mu       sync.RWMutex
	tables   map[string]map[int64][]byte
	seq      map[string]int64
	failures map[string]error
	requests []port.ScanRequest
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tables:   make(map[string]map[int64][]byte),
		seq:      make(map[string]int64),
		failures: make(map[string]error),
	}
}

// FailScans makes every subsequent scan of table return err. An empty table
// name applies to all tables; a nil err clears the failure.
func (m *MemoryStore) FailScans(table string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, table)
		return
	}
	m.failures[table] = err
}

// ScanRequests returns every scan request received so far.
func (m *MemoryStore) ScanRequests() []port.ScanRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.requests)
}

func (m *MemoryStore) Scan(ctx context.Context, req port.ScanRequest) (*port.ScanPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.failures[req.Table]; err != nil {
		return nil, err
	}
	if err := m.failures[""]; err != nil {
		return nil, err
	}

	var after int64
	if req.StartToken != "" {
		var err error
		after, err = strconv.ParseInt(req.StartToken, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid start token %q: %w", req.StartToken, err)
		}
	}

	items := m.tables[req.Table]
	ids := make([]int64, 0, len(items))
	for id := range items {
		if id > after {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)

	if req.Limit > 0 && len(ids) > req.Limit {
		ids = ids[:req.Limit]
	}

	page := &port.ScanPage{ScannedCount: len(ids)}
	for _, id := range ids {
		doc := items[id]
		ok, err := matchFilter(doc, req.Filter)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		page.Count++
		if !req.CountOnly {
			page.Records = append(page.Records, jsonRecord(slices.Clone(doc)))
		}
	}

	if req.Limit > 0 && len(ids) == req.Limit {
		page.NextToken = strconv.FormatInt(ids[len(ids)-1], 10)
	}
	return page, nil
}

func (m *MemoryStore) Get(ctx context.Context, table string, id int64) (port.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.tables[table][id]
	if !ok {
		return nil, nil
	}
	return jsonRecord(slices.Clone(doc)), nil
}

func (m *MemoryStore) Put(ctx context.Context, table string, id int64, item any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc, err := marshalDoc(item)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.tables[table] == nil {
		m.tables[table] = make(map[int64][]byte)
	}
	m.tables[table][id] = doc
	if id > m.seq[table] {
		m.seq[table] = id
	}
	return nil
}

func (m *MemoryStore) NextID(ctx context.Context, table string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq[table]++
	return m.seq[table], nil
}
