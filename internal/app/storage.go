package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/meditationbot/core/logger"
	"github.com/m3rciful/meditationbot/internal/snapshot"
)

const storageComponent = "storage"

// openStore builds the snapshot backend selected by cfg.Storage.Driver.
// db must be non-nil for the SQL drivers; the returned store owns it.
func openStore(ctx context.Context, cfg *Config, db *sqlx.DB) (snapshot.Store, error) {
	start := time.Now()
	var (
		store snapshot.Store
		err   error
	)
	switch cfg.Storage.Driver {
	case StorageFile:
		var fs *snapshot.FileStore
		if fs, err = snapshot.OpenFileStore(cfg.Storage.Dir); err == nil {
			store = fs
		}
	case StoragePostgres, StorageSQLite:
		if db == nil {
			return nil, fmt.Errorf("storage: %s driver requires a database connection", cfg.Storage.Driver)
		}
		sqlStore := snapshot.NewSQLStore(db)
		// postgres gets the table from migrations; sqlite databases are created on the fly.
		if cfg.Storage.Driver == StorageSQLite {
			err = sqlStore.EnsureSchema(ctx)
		}
		store = sqlStore
	case StorageRedis:
		var rs *snapshot.RedisStore
		rs, err = snapshot.OpenRedisStore(ctx, snapshot.RedisOptions{
			Addr:     cfg.Storage.Redis.Addr,
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
			Prefix:   cfg.Storage.Redis.Prefix,
		})
		if err == nil {
			store = rs
		}
	default:
		return nil, fmt.Errorf("storage: unsupported driver %q", cfg.Storage.Driver)
	}
	if err != nil {
		logger.Error(ctx, storageComponent, "storage.open",
			slog.String("status", "fail"),
			slog.String("driver", cfg.Storage.Driver),
			slog.String("err", err.Error()),
		)
		if store != nil {
			_ = store.Close()
		}
		return nil, fmt.Errorf("storage: open %s: %w", cfg.Storage.Driver, err)
	}

	logger.Info(ctx, storageComponent, "storage.open",
		slog.String("status", "ok"),
		slog.String("driver", cfg.Storage.Driver),
		slog.Duration("duration", logger.Took(start)),
	)
	return store, nil
}
