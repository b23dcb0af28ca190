package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/parley/internal/config"
	"github.com/aretw0/parley/pkg/adapters/file"
	"github.com/aretw0/parley/pkg/adapters/memory"
	"github.com/aretw0/parley/pkg/adapters/redis"
	"github.com/aretw0/parley/pkg/adapters/sqlite"
	"github.com/aretw0/parley/pkg/persistence/middleware"
	"github.com/aretw0/parley/pkg/ports"
)

// Persistence is the store stack selected by configuration.
type Persistence struct {
	Store  ports.StateStore
	Locker ports.DistributedLocker
	close  func() error
}

// Close releases the backend connection, if any.
func (p *Persistence) Close() error {
	if p.close == nil {
		return nil
	}
	return p.close()
}

// NewPersistence opens the configured backend and wraps it with the PII and
// encryption middlewares. PII masking runs before encryption.
func NewPersistence(cfg config.StoreConfig) (*Persistence, error) {
	p := &Persistence{}

	switch cfg.Backend {
	case config.BackendMemory:
		p.Store = memory.NewStore()
	case config.BackendFile:
		p.Store = file.New(cfg.Path)
	case config.BackendRedis:
		store := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			redis.WithPrefix(cfg.Redis.Prefix),
			redis.WithTTL(cfg.Redis.TTL),
		)
		p.Store = store
		p.Locker = redis.NewLocker(store.Client(), cfg.Redis.Prefix)
		p.close = store.Close
	case config.BackendSQLite:
		path := sqlitePath(cfg.Path)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
		store, err := sqlite.New(path)
		if err != nil {
			return nil, err
		}
		p.Store = store
		p.close = store.Close
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}

	var mws []middleware.Middleware
	if cfg.MaskPII {
		mws = append(mws, middleware.NewPIIMiddleware(middleware.DefaultPIIPatterns))
	}
	if cfg.EncryptionKey != "" {
		key, err := middleware.ParseKey(cfg.EncryptionKey)
		if err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("store.encryption_key: %w", err)
		}
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key}))
	}
	p.Store = middleware.Wrap(p.Store, mws...)
	return p, nil
}

// sqlitePath treats a path without a database extension as a directory.
func sqlitePath(path string) string {
	if path == "" {
		path = config.DefaultStorePath
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return path
	}
	return filepath.Join(path, "parley.db")
}
