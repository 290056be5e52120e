package service

import (
	"context"
	"database/sql"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/rl1809/catalog-sync/internal/adapter/storage"
	"github.com/rl1809/catalog-sync/internal/core/cache"
	"github.com/rl1809/catalog-sync/internal/core/domain"
	"github.com/rl1809/catalog-sync/internal/logging"
	"github.com/rl1809/catalog-sync/internal/port"
)

// integrationEnv is two service instances sharing one MySQL store and one
// Redis cache, the way two API replicas would.
type integrationEnv struct {
	redis   *redis.Client
	mysql   *sql.DB
	a, b    *CatalogService
	cleanup func()
}

func setupIntegrationEnv(t *testing.T) *integrationEnv {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		mysqlDSN = "root:root@tcp(localhost:3306)/catalog"
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	db, err := storage.OpenMySQL(context.Background(), mysqlDSN)
	if err != nil {
		rdb.Close()
		t.Skipf("MySQL not available: %v", err)
	}

	run := uuid.NewString()[:8]
	tablePrefix := "it" + run + "_"
	store := storage.NewSQLStore(db, storage.DialectMySQL, tablePrefix)
	if err := store.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	keyPrefix := "catalog-it:" + run + ":"

	newInstance := func() *CatalogService {
		clock := port.RealClock{}
		manager := cache.NewManager(storage.NewRedisCache(rdb, keyPrefix), clock, cache.Options{}, logging.NewNopLogger())
		return NewCatalogService(store, manager, clock, Options{}, logging.NewNopLogger())
	}

	return &integrationEnv{
		redis: rdb,
		mysql: db,
		a:     newInstance(),
		b:     newInstance(),
		cleanup: func() {
			ctx := context.Background()
			db.ExecContext(ctx, `DELETE FROM kv_items WHERE tbl LIKE ?`, tablePrefix+"%")
			db.ExecContext(ctx, `DELETE FROM kv_sequences WHERE tbl LIKE ?`, tablePrefix+"%")
			if keys, err := rdb.Keys(ctx, keyPrefix+"*").Result(); err == nil && len(keys) > 0 {
				rdb.Del(ctx, keys...)
			}
			rdb.Close()
			db.Close()
		},
	}
}

func TestIntegration_WriteOnOneReplicaInvalidatesTheOther(t *testing.T) {
	env := setupIntegrationEnv(t)
	defer env.cleanup()
	ctx := context.Background()

	if err := env.a.UpsertSeller(ctx, domain.SellerRecord{ID: 1, DelStatus: domain.DelStatusActive, SellerClass: domain.SellerClassRetail}); err != nil {
		t.Fatalf("seed seller: %v", err)
	}
	metal, err := env.a.CreateEntry(ctx, domain.KindCategory, domain.EntryInput{Name: "Metal"})
	if err != nil {
		t.Fatalf("seed category: %v", err)
	}

	// Replica A warms the shared cache.
	list, err := env.a.ListCategories(ctx, CategoriesQuery{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if got := names(list.Items); len(got) != 1 || got[0] != "Metal" {
		t.Fatalf("expected [Metal], got %v", got)
	}

	// Replica B writes; its namespace invalidation reaches Redis before it returns.
	if _, err := env.b.UpdateEntry(ctx, domain.KindCategory, metal.ID, domain.EntryInput{Name: "Metals"}); err != nil {
		t.Fatalf("update: %v", err)
	}

	list, err = env.a.ListCategories(ctx, CategoriesQuery{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if got := names(list.Items); len(got) != 1 || got[0] != "Metals" {
		t.Errorf("replica A served a stale list after B's write: %v", got)
	}
}

func TestIntegration_DeltaOverMySQL(t *testing.T) {
	env := setupIntegrationEnv(t)
	defer env.cleanup()
	ctx := context.Background()

	if err := env.a.UpsertSeller(ctx, domain.SellerRecord{ID: 1, DelStatus: domain.DelStatusActive, SellerClass: domain.SellerClassIndustrial}); err != nil {
		t.Fatalf("seed seller: %v", err)
	}
	metal, err := env.a.CreateEntry(ctx, domain.KindCategory, domain.EntryInput{Name: "Metal"})
	if err != nil {
		t.Fatalf("seed category: %v", err)
	}

	full, err := env.a.Delta(ctx, DeltaQuery{Kinds: []domain.Kind{domain.KindCategory}})
	if err != nil {
		t.Fatalf("full sync: %v", err)
	}
	if full.NewWatermark == nil {
		t.Fatal("expected a watermark from a complete full sync")
	}

	if err := env.b.DeleteEntry(ctx, domain.KindCategory, metal.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	res, err := env.a.Delta(ctx, DeltaQuery{Kinds: []domain.Kind{domain.KindCategory}, Watermark: full.NewWatermark})
	if err != nil {
		t.Fatalf("delta: %v", err)
	}
	if len(res.Categories.Tombstones) != 1 || res.Categories.Tombstones[0].ID != metal.ID {
		t.Errorf("expected tombstone for %d, got %v", metal.ID, res.Categories.Tombstones)
	}
	if len(res.Categories.Changed) != 0 {
		t.Errorf("expected no live changes, got %v", names(res.Categories.Changed))
	}
}

func TestIntegration_ConcurrentReadersOverRedis(t *testing.T) {
	env := setupIntegrationEnv(t)
	defer env.cleanup()
	ctx := context.Background()

	if err := env.a.UpsertSeller(ctx, domain.SellerRecord{ID: 1, DelStatus: domain.DelStatusActive, SellerClass: domain.SellerClassWholesale}); err != nil {
		t.Fatalf("seed seller: %v", err)
	}
	metal, err := env.a.CreateEntry(ctx, domain.KindCategory, domain.EntryInput{Name: "Metal"})
	if err != nil {
		t.Fatalf("seed category: %v", err)
	}

	done := make(chan struct{})
	var readers sync.WaitGroup
	var reads atomic.Int32
	for i := 0; i < 4; i++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				env.b.ListCategories(ctx, CategoriesQuery{})
				reads.Add(1)
			}
		}()
	}

	// Readers, writes and read-backs share replica B, so every racing load
	// is fenced by B's own invalidations.
	for i := 0; i < 20; i++ {
		name := "Metal-" + uuid.NewString()[:6]
		if _, err := env.b.UpdateEntry(ctx, domain.KindCategory, metal.ID, domain.EntryInput{Name: name}); err != nil {
			t.Fatalf("update %d: %v", i, err)
		}
		list, err := env.b.ListCategories(ctx, CategoriesQuery{})
		if err != nil {
			t.Fatalf("list %d: %v", i, err)
		}
		if got := names(list.Items); len(got) != 1 || got[0] != name {
			t.Errorf("write %d: expected [%s], got %v", i, name, got)
		}
	}

	close(done)
	readers.Wait()
	if reads.Load() == 0 {
		t.Error("readers never ran")
	}
}
