package kvstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/healthshare/healthshare/internal/platform/db"
	"github.com/healthshare/healthshare/internal/platform/hipaa"
	"github.com/healthshare/healthshare/internal/platform/metrics"
)

// Supported drivers.
const (
	DriverMemory   = "memory"
	DriverLevelDB  = "leveldb"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// Options selects and decorates a backend.
type Options struct {
	Driver      string
	LevelDBPath string
	RedisURL    string
	RedisPrefix string
	DatabaseURL string
	Compression bool
	// Sealer enables encryption at rest when non-nil.
	Sealer  *hipaa.Sealer
	Metrics metrics.Recorder
}

// Backend is an opened, decorated Store plus what the health endpoint
// needs to probe it.
type Backend struct {
	Store   Store
	Driver  string
	Pinger  db.Pinger
	Details func() interface{}
	closers []func() error
}

// Close releases the backend's connections or file handles.
func (b *Backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Open builds the configured backend. Values are compressed before they are
// encrypted, so the layering is instrumented(compressed(encrypted(backend))).
func Open(ctx context.Context, opts Options, logger zerolog.Logger) (*Backend, error) {
	b := &Backend{Driver: opts.Driver}

	switch opts.Driver {
	case DriverMemory, "":
		b.Driver = DriverMemory
		b.Store = NewMemoryStore()
	case DriverLevelDB:
		s, err := OpenLevelDB(opts.LevelDBPath)
		if err != nil {
			return nil, err
		}
		b.Store = s
		b.closers = append(b.closers, s.Close)
	case DriverRedis:
		s, err := OpenRedis(ctx, opts.RedisURL, opts.RedisPrefix)
		if err != nil {
			return nil, err
		}
		b.Store = s
		b.Pinger = s
		b.closers = append(b.closers, s.Close)
	case DriverPostgres:
		pool, err := db.NewPool(ctx, opts.DatabaseURL, db.PoolConfig{MaxConns: 4, ConnectTimeout: 10 * time.Second})
		if err != nil {
			return nil, err
		}
		n, err := db.NewMigrator(pool, db.Migrations()).Up(ctx)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		if n > 0 {
			logger.Info().Int("applied", n).Msg("database migrations applied")
		}
		b.Store = NewPostgresStore(pool)
		b.Pinger = pool
		b.Details = func() interface{} { return db.GetPoolStats(pool) }
		b.closers = append(b.closers, func() error { pool.Close(); return nil })
	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}

	if opts.Sealer != nil {
		b.Store = NewEncrypted(b.Store, opts.Sealer)
	}
	if opts.Compression {
		c, err := NewCompressed(b.Store)
		if err != nil {
			_ = b.Close()
			return nil, err
		}
		b.Store = c
		b.closers = append(b.closers, c.Close)
	}
	if opts.Metrics != nil {
		b.Store = NewInstrumented(b.Store, opts.Metrics)
	}

	logger.Info().
		Str("driver", b.Driver).
		Bool("encrypted", opts.Sealer != nil).
		Bool("compressed", opts.Compression).
		Msg("key-value store opened")
	return b, nil
}
