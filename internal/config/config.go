// Package config loads the service configuration from a TOML file layered
// over defaults and a small set of environment overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StoreMySQL    = "mysql"
	StoreDynamoDB = "dynamodb"

	CacheRedis  = "redis"
	CacheMemory = "memory"
	CacheNone   = "none"
)

// Config is the root of catalog.toml.
type Config struct {
	Server ServerConfig `toml:"server"`
	Store  StoreConfig  `toml:"store"`
	Cache  CacheConfig  `toml:"cache"`
	Sync   SyncConfig   `toml:"sync"`
	Auth   AuthConfig   `toml:"auth"`
	Log    LogConfig    `toml:"log"`
}

type ServerConfig struct {
	HTTPAddr        string        `toml:"http_addr"`
	GRPCAddr        string        `toml:"grpc_addr"` // empty disables gRPC
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`
}

// StoreConfig uses a tagged union: Type decides which other fields apply.
type StoreConfig struct {
	Type string `toml:"type"` // "memory", "sqlite", "mysql" or "dynamodb"

	MySQLDSN   string `toml:"mysql_dsn,omitempty"`
	SQLitePath string `toml:"sqlite_path,omitempty"`

	DynamoDBRegion   string `toml:"dynamodb_region,omitempty"`
	DynamoDBEndpoint string `toml:"dynamodb_endpoint,omitempty"` // set for DynamoDB Local

	TablePrefix string        `toml:"table_prefix"`
	ScanCeiling int           `toml:"scan_ceiling"`
	OpTimeout   time.Duration `toml:"op_timeout"`
}

type CacheConfig struct {
	Type string `toml:"type"` // "redis", "memory" or "none"

	RedisAddr     string `toml:"redis_addr,omitempty"`
	RedisPassword string `toml:"redis_password,omitempty"`
	RedisDB       int    `toml:"redis_db,omitempty"`
	PoolSize      int    `toml:"pool_size"`

	OpTimeout   time.Duration `toml:"op_timeout"`
	LoadTimeout time.Duration `toml:"load_timeout"` // bounds a shared read-through load
	TTLShort    time.Duration `toml:"ttl_short"`
	TTLLong     time.Duration `toml:"ttl_long"`
	TTLStatic   time.Duration `toml:"ttl_static"`
}

type SyncConfig struct {
	BufferWindow time.Duration `toml:"buffer_window"`
}

type AuthConfig struct {
	// JWTSecret signs admin tokens. Empty leaves mutation routes open.
	JWTSecret string `toml:"jwt_secret"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr:        ":8080",
			GRPCAddr:        ":50051",
			ShutdownTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Type:        StoreMemory,
			SQLitePath:  "catalog.db",
			ScanCeiling: 10000,
			OpTimeout:   5 * time.Second,
		},
		Cache: CacheConfig{
			Type:      CacheMemory,
			RedisAddr: "localhost:6379",
			PoolSize:  100,
			OpTimeout:   200 * time.Millisecond,
			LoadTimeout: 30 * time.Second,
			TTLShort:    5 * time.Minute,
			TTLLong:     6 * time.Hour,
			TTLStatic:   24 * time.Hour,
		},
		Sync: SyncConfig{
			BufferWindow: 30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Read decodes TOML from r over the defaults.
func Read(r io.Reader) (*Config, error) {
	cfg := Default()
	md, err := toml.NewDecoder(r).Decode(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown config keys: %v", undecoded)
	}
	return cfg, nil
}

// Load reads path (defaults only when path is empty), applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()

		if cfg, err = Read(f); err != nil {
			return nil, fmt.Errorf("reading config from %s: %w", path, err)
		}
	}

	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides secrets and addresses from the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup("CATALOG_MYSQL_DSN"); ok {
		c.Store.MySQLDSN = v
	}
	if v, ok := lookup("CATALOG_REDIS_ADDR"); ok {
		c.Cache.RedisAddr = v
	}
	if v, ok := lookup("CATALOG_JWT_SECRET"); ok {
		c.Auth.JWTSecret = v
	}
	if v, ok := lookup("CATALOG_HTTP_ADDR"); ok {
		c.Server.HTTPAddr = v
	}
}

func (c *Config) Validate() error {
	var errs []error

	if c.Server.HTTPAddr == "" {
		errs = append(errs, errors.New("server.http_addr is required"))
	}

	switch c.Store.Type {
	case StoreMemory:
	case StoreSQLite:
		if c.Store.SQLitePath == "" {
			errs = append(errs, errors.New("store.sqlite_path is required for sqlite"))
		}
	case StoreMySQL:
		if c.Store.MySQLDSN == "" {
			errs = append(errs, errors.New("store.mysql_dsn is required for mysql"))
		}
	case StoreDynamoDB:
		if c.Store.DynamoDBRegion == "" {
			errs = append(errs, errors.New("store.dynamodb_region is required for dynamodb"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store type %q", c.Store.Type))
	}
	if c.Store.ScanCeiling <= 0 {
		errs = append(errs, fmt.Errorf("store.scan_ceiling must be positive, got %d", c.Store.ScanCeiling))
	}
	if c.Store.OpTimeout <= 0 {
		errs = append(errs, errors.New("store.op_timeout must be positive"))
	}

	switch c.Cache.Type {
	case CacheMemory, CacheNone:
	case CacheRedis:
		if c.Cache.RedisAddr == "" {
			errs = append(errs, errors.New("cache.redis_addr is required for redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown cache type %q", c.Cache.Type))
	}
	for name, d := range map[string]time.Duration{
		"cache.op_timeout":   c.Cache.OpTimeout,
		"cache.load_timeout": c.Cache.LoadTimeout,
		"cache.ttl_short":    c.Cache.TTLShort,
		"cache.ttl_long":     c.Cache.TTLLong,
		"cache.ttl_static":   c.Cache.TTLStatic,
		"sync.buffer_window": c.Sync.BufferWindow,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	return errors.Join(errs...)
}
