package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/rl1809/catalog-sync/internal/port"
)

type Dialect int

const (
	DialectMySQL Dialect = iota
	DialectSQLite
)

type sqlQueries struct {
	schema  []string
	upsert  string
	bumpSeq string
	nextID  string
}

var dialects = map[Dialect]sqlQueries{
	DialectMySQL: {
		schema: []string{
			`CREATE TABLE IF NOT EXISTS kv_items (
				tbl VARCHAR(128) NOT NULL,
				id BIGINT NOT NULL,
				doc LONGTEXT NOT NULL,
				PRIMARY KEY (tbl, id)
			)`,
			`CREATE TABLE IF NOT EXISTS kv_sequences (
				tbl VARCHAR(128) NOT NULL PRIMARY KEY,
				next_id BIGINT NOT NULL
			)`,
		},
		upsert: `
			INSERT INTO kv_items (tbl, id, doc) VALUES (?, ?, ?)
			ON DUPLICATE KEY UPDATE doc = VALUES(doc)`,
		bumpSeq: `
			INSERT INTO kv_sequences (tbl, next_id) VALUES (?, ?)
			ON DUPLICATE KEY UPDATE next_id = GREATEST(next_id, VALUES(next_id))`,
		// LAST_INSERT_ID(expr) hands the new value back on the same statement.
		nextID: `
			INSERT INTO kv_sequences (tbl, next_id) VALUES (?, LAST_INSERT_ID(1))
			ON DUPLICATE KEY UPDATE next_id = LAST_INSERT_ID(next_id + 1)`,
	},
	DialectSQLite: {
		schema: []string{
			`CREATE TABLE IF NOT EXISTS kv_items (
				tbl TEXT NOT NULL,
				id INTEGER NOT NULL,
				doc TEXT NOT NULL,
				PRIMARY KEY (tbl, id)
			)`,
			`CREATE TABLE IF NOT EXISTS kv_sequences (
				tbl TEXT NOT NULL PRIMARY KEY,
				next_id INTEGER NOT NULL
			)`,
		},
		upsert: `
			INSERT INTO kv_items (tbl, id, doc) VALUES (?, ?, ?)
			ON CONFLICT (tbl, id) DO UPDATE SET doc = excluded.doc`,
		bumpSeq: `
			INSERT INTO kv_sequences (tbl, next_id) VALUES (?, ?)
			ON CONFLICT (tbl) DO UPDATE SET next_id = MAX(next_id, excluded.next_id)`,
		nextID: `
			INSERT INTO kv_sequences (tbl, next_id) VALUES (?, 1)
			ON CONFLICT (tbl) DO UPDATE SET next_id = next_id + 1
			RETURNING next_id`,
	},
}

// SQLStore emulates the scan-only contract over a single key/document table.
// It deliberately offers nothing more than DynamoDB does: batches are limited
// by id order first and filtered in process afterwards.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	q       sqlQueries
	prefix  string
}

var _ port.ScanStore = (*SQLStore)(nil)

func NewSQLStore(db *sql.DB, dialect Dialect, tablePrefix string) *SQLStore {
	return &SQLStore{
		db:      db,
		dialect: dialect,
		q:       dialects[dialect],
		prefix:  tablePrefix,
	}
}

// EnsureSchema creates the backing tables if they do not exist.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range s.q.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) Scan(ctx context.Context, req port.ScanRequest) (*port.ScanPage, error) {
	var after int64
	if req.StartToken != "" {
		var err error
		after, err = strconv.ParseInt(req.StartToken, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid start token %q: %w", req.StartToken, err)
		}
	}

	query := `SELECT id, doc FROM kv_items WHERE tbl = ? AND id > ? ORDER BY id`
	args := []any{s.prefix + req.Table, after}
	if req.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, req.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", req.Table, err)
	}
	defer rows.Close()

	page := &port.ScanPage{}
	var lastID int64
	for rows.Next() {
		var id int64
		var doc []byte
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, fmt.Errorf("scan %s: %w", req.Table, err)
		}
		page.ScannedCount++
		lastID = id

		ok, err := matchFilter(doc, req.Filter)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		page.Count++
		if !req.CountOnly {
			page.Records = append(page.Records, jsonRecord(doc))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", req.Table, err)
	}

	if req.Limit > 0 && page.ScannedCount == req.Limit {
		page.NextToken = strconv.FormatInt(lastID, 10)
	}
	return page, nil
}

func (s *SQLStore) Get(ctx context.Context, table string, id int64) (port.Record, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT doc FROM kv_items WHERE tbl = ? AND id = ?`, s.prefix+table, id,
	).Scan(&doc)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%d: %w", table, id, err)
	}
	return jsonRecord(doc), nil
}

// Put writes the item and advances the table's sequence past id so NextID
// never hands out an id that was written directly.
func (s *SQLStore) Put(ctx context.Context, table string, id int64, item any) error {
	doc, err := marshalDoc(item)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.q.upsert, s.prefix+table, id, doc); err != nil {
		return fmt.Errorf("put %s/%d: %w", table, id, err)
	}
	if _, err := tx.ExecContext(ctx, s.q.bumpSeq, s.prefix+table, id); err != nil {
		return fmt.Errorf("advance sequence %s: %w", table, err)
	}

	return tx.Commit()
}

func (s *SQLStore) NextID(ctx context.Context, table string) (int64, error) {
	if s.dialect == DialectSQLite {
		var id int64
		if err := s.db.QueryRowContext(ctx, s.q.nextID, s.prefix+table).Scan(&id); err != nil {
			return 0, fmt.Errorf("next id %s: %w", table, err)
		}
		return id, nil
	}

	result, err := s.db.ExecContext(ctx, s.q.nextID, s.prefix+table)
	if err != nil {
		return 0, fmt.Errorf("next id %s: %w", table, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("next id %s: %w", table, err)
	}
	return id, nil
}
