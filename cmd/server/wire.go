package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/catalog-sync/internal/adapter/storage"
	"github.com/rl1809/catalog-sync/internal/config"
	"github.com/rl1809/catalog-sync/internal/core/cache"
	"github.com/rl1809/catalog-sync/internal/core/service"
	"github.com/rl1809/catalog-sync/internal/logging"
	"github.com/rl1809/catalog-sync/internal/port"
)

// app holds the wired service and everything that must be closed on exit.
type app struct {
	catalog *service.CatalogService
	cache   *cache.Manager
	closers []func() error
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

func newApp(ctx context.Context, cfg *config.Config, logger logging.Logger) (*app, error) {
	a := &app{}

	store, err := openStore(ctx, cfg.Store, a, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	backend := openCache(ctx, cfg.Cache, a, logger)

	clock := port.RealClock{}
	a.cache = cache.NewManager(backend, clock, cache.Options{
		TTLs: cache.TTLs{
			Short:  cfg.Cache.TTLShort,
			Long:   cfg.Cache.TTLLong,
			Static: cfg.Cache.TTLStatic,
		},
		OpTimeout:   cfg.Cache.OpTimeout,
		LoadTimeout: cfg.Cache.LoadTimeout,
	}, logger)
	a.catalog = service.NewCatalogService(store, a.cache, clock, service.Options{
		Ceiling:      cfg.Store.ScanCeiling,
		BufferWindow: cfg.Sync.BufferWindow,
	}, logger)
	return a, nil
}

func openStore(ctx context.Context, cfg config.StoreConfig, a *app, logger logging.Logger) (port.ScanStore, error) {
	var store port.ScanStore

	switch cfg.Type {
	case config.StoreMemory:
		logger.Warn(ctx, "using in-memory store, data is lost on exit")
		store = storage.NewMemoryStore()

	case config.StoreSQLite:
		db, err := storage.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		s := storage.NewSQLStore(db, storage.DialectSQLite, cfg.TablePrefix)
		if err := s.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		logger.Info(ctx, "connected to sqlite", "path", cfg.SQLitePath)
		store = s

	case config.StoreMySQL:
		db, err := storage.OpenMySQL(ctx, cfg.MySQLDSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		s := storage.NewSQLStore(db, storage.DialectMySQL, cfg.TablePrefix)
		if err := s.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		logger.Info(ctx, "connected to mysql")
		store = s

	case config.StoreDynamoDB:
		client, err := storage.NewDynamoDBClient(ctx, cfg.DynamoDBRegion, cfg.DynamoDBEndpoint)
		if err != nil {
			return nil, err
		}
		logger.Info(ctx, "using dynamodb", "region", cfg.DynamoDBRegion, "table_prefix", cfg.TablePrefix)
		store = storage.NewDynamoDBStore(client, cfg.TablePrefix)

	default:
		return nil, fmt.Errorf("unknown store type %q", cfg.Type)
	}

	return storage.WithTimeout(store, cfg.OpTimeout), nil
}

// openCache never fails: an unreachable Redis is logged and then absorbed by
// the cache manager's fail-open wrapper.
func openCache(ctx context.Context, cfg config.CacheConfig, a *app, logger logging.Logger) port.CacheRepository {
	switch cfg.Type {
	case config.CacheRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			PoolSize: cfg.PoolSize,
		})
		a.closers = append(a.closers, rdb.Close)
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn(ctx, "redis unreachable, serving from the store until it recovers", "addr", cfg.RedisAddr, "error", err)
		} else {
			logger.Info(ctx, "connected to redis", "addr", cfg.RedisAddr)
		}
		return storage.NewRedisCache(rdb, "")

	case config.CacheNone:
		return storage.NopCache{}
	}
	return storage.NewMemoryCache(nil)
}
