package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/m3rciful/meditationbot/core/logger"
)

const (
	component        = "db"
	migrateComponent = "db.migrate"
	connectTimeout   = 5 * time.Second
)

// Connect opens the database, sizes the pool and pings it.
func Connect(cfg Config) (*sqlx.DB, error) {
	driver := cfg.DriverName()
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	target := []slog.Attr{
		slog.String("driver", driver),
		slog.String("host", cfg.Host),
		slog.String("db", dbLabel(cfg)),
	}
	fail := func(event string, err error, took time.Duration) {
		logger.Error(ctx, component, event, append(target,
			slog.String("status", "fail"),
			slog.Duration("duration", took),
			slog.String("err", err.Error()),
		)...)
	}

	start := time.Now()
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		fail("connect", err, logger.Took(start))
		return nil, fmt.Errorf("db connect: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		fail("ping", err, logger.Took(start))
		return nil, fmt.Errorf("db ping: %w", err)
	}

	pool := cfg.MaxConnections
	if driver == DriverSQLite {
		// sqlite serializes writers; one connection avoids SQLITE_BUSY.
		pool = 1
	}
	if pool > 0 {
		db.SetMaxOpenConns(pool)
		db.SetMaxIdleConns(pool)
	}

	logger.Info(ctx, component, "connect", append(target,
		slog.String("status", "ok"),
		slog.Int("pool_open", pool),
		slog.Duration("duration", logger.Took(start)),
	)...)
	return db, nil
}

func dbLabel(cfg Config) string {
	if cfg.DriverName() == DriverSQLite {
		return cfg.Path
	}
	return cfg.Name
}

// waitForPostgres pings dsn every interval until it answers or timeout passes.
func waitForPostgres(dsn string, timeout, interval time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		db, err := sql.Open(DriverPostgres, dsn)
		if err == nil {
			err = db.Ping()
			_ = db.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timeout reached waiting for database: %w", err)
		}
		time.Sleep(interval)
	}
}
