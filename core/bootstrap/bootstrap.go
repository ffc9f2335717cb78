// Package bootstrap brings up the infrastructure a bot needs before it can
// load state: the logger and, for SQL storage, the database.
package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/meditationbot/core/config"
	coredatabase "github.com/m3rciful/meditationbot/core/database"
	"github.com/m3rciful/meditationbot/core/logger"
)

// Options selects what to initialize. Nil funcs use the core defaults.
type Options struct {
	Config *coreconfig.Config
	// Database is nil when the bot keeps its state outside SQL.
	Database *coredatabase.Config

	LoggerInit func(*coreconfig.Config) error
	Connect    func(coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(coredatabase.Config) error
}

// Result holds what Run opened. The caller owns DB.
type Result struct {
	DB *sqlx.DB
}

// Run initializes the logger, then connects and migrates the database when
// one is configured. A failed migration closes the connection.
func Run(opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, errors.New("bootstrap: nil config")
	}
	opts = opts.withDefaults()

	if err := opts.LoggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger: %w", err)
	}
	if opts.Database == nil {
		return &Result{}, nil
	}

	dbCfg := *opts.Database
	db, err := opts.Connect(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: connect %s: %w", dbCfg.DriverName(), err)
	}
	if err := opts.Migrate(dbCfg); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logger.Warn(logger.Background(), "bootstrap", "db.close",
				slog.String("status", "fail"),
				slog.String("err", closeErr.Error()),
			)
		}
		return nil, fmt.Errorf("bootstrap: migrate %s: %w", dbCfg.DriverName(), err)
	}
	return &Result{DB: db}, nil
}

func (o Options) withDefaults() Options {
	if o.LoggerInit == nil {
		o.LoggerInit = logger.InitLogger
	}
	if o.Connect == nil {
		o.Connect = coredatabase.Connect
	}
	if o.Migrate == nil {
		o.Migrate = coredatabase.RunMigrations
	}
	return o
}
