package storage

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/google/uuid"
)

func getMySQLDB(t *testing.T) *sql.DB {
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/catalog"
	}

	db, err := OpenMySQL(context.Background(), dsn)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	return db
}

func newMySQLStore(t *testing.T) *SQLStore {
	db := getMySQLDB(t)
	t.Cleanup(func() { db.Close() })

	// A random prefix keeps runs apart without dropping shared tables.
	prefix := "t" + uuid.NewString()[:8] + "_"
	store := NewSQLStore(db, DialectMySQL, prefix)
	if err := store.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	t.Cleanup(func() {
		db.Exec(`DELETE FROM kv_items WHERE tbl LIKE ?`, prefix+"%")
		db.Exec(`DELETE FROM kv_sequences WHERE tbl LIKE ?`, prefix+"%")
	})
	return store
}

func TestMySQLStore_Contract(t *testing.T) {
	scanStoreContract(t, newMySQLStore(t))
}

func TestMySQLStore_NextIDSequence(t *testing.T) {
	store := newMySQLStore(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		id, err := store.NextID(ctx, "seq")
		if err != nil {
			t.Fatalf("NextID failed: %v", err)
		}
		if id != want {
			t.Errorf("expected id %d, got %d", want, id)
		}
	}

	if err := store.Put(ctx, "seq", 10, doc{ID: 10}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	id, err := store.NextID(ctx, "seq")
	if err != nil {
		t.Fatalf("NextID failed: %v", err)
	}
	if id != 11 {
		t.Errorf("expected id 11 after writing id 10, got %d", id)
	}
}

func TestMySQLStore_GetNotFound(t *testing.T) {
	store := newMySQLStore(t)

	rec, err := store.Get(context.Background(), "items", 12345)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec != nil {
		t.Error("expected nil for nonexistent item")
	}
}
