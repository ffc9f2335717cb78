// Package app wires the meditation service to the Telegram runtime.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/jmoiron/sqlx"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/meditationbot/core/bootstrap"
	corecmd "github.com/m3rciful/meditationbot/core/cmd"
	coredatabase "github.com/m3rciful/meditationbot/core/database"
	"github.com/m3rciful/meditationbot/core/logger"
	tg "github.com/m3rciful/meditationbot/core/telegram"
	"github.com/m3rciful/meditationbot/core/telegram/commands"
	"github.com/m3rciful/meditationbot/core/telegram/router"
	tgsender "github.com/m3rciful/meditationbot/core/telegram/sender"
	"github.com/m3rciful/meditationbot/internal/meditation"
	"github.com/m3rciful/meditationbot/internal/scheduler"
	"github.com/m3rciful/meditationbot/internal/snapshot"
)

const component = "app"

// messenger is the part of *tele.Bot used outside an update.
type messenger interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// App holds the long-lived services of a running bot.
type App struct {
	cfg      *Config
	store    snapshot.Store
	sched    *scheduler.Daily
	svc      *meditation.Manager
	registry *tg.Registry

	mu         sync.RWMutex
	out        messenger
	dispatcher *tgsender.Dispatcher

	stopSched context.CancelFunc
	schedDone chan struct{}
}

var _ corecmd.TelegramApp = (*App)(nil)

// New builds the services on top of an opened store. Snapshots are not loaded.
func New(cfg *Config, store snapshot.Store) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	if store == nil {
		return nil, errors.New("app: nil store")
	}
	a := &App{cfg: cfg, store: store}
	a.sched = scheduler.NewDaily(a.deliverReminder, scheduler.WithLocation(cfg.Location()))

	svc, err := meditation.NewManager(meditation.Options{
		Store:       store,
		Scheduler:   a.sched,
		Categories:  cfg.Meditation.Categories,
		Placeholder: cfg.Meditation.Placeholder,
	})
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	a.svc = svc
	a.registry = a.buildRegistry()
	return a, nil
}

// Bootstrap initializes logging, storage and services from cfg and restores saved state.
func Bootstrap(cfg *Config) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	if cfg.Storage.Driver == StorageSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
			return nil, fmt.Errorf("app: create sqlite dir: %w", err)
		}
	}

	res, err := bootstrap.Run(bootstrap.Options{
		Config:   cfg.CoreConfig(),
		Database: cfg.DatabaseConfig(),
		Migrate:  migrateSnapshots,
	})
	if err != nil {
		return nil, err
	}

	ctx := logger.Background()
	store, err := openStore(ctx, cfg, res.DB)
	if err != nil {
		closeDB(res.DB)
		return nil, err
	}

	a, err := New(cfg, store)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	if err := a.svc.Load(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("app: restore state: %w", err)
	}
	return a, nil
}

// migrateSnapshots runs schema migrations for postgres. sqlite files get their
// table from the store itself.
func migrateSnapshots(cfg coredatabase.Config) error {
	if cfg.DriverName() != coredatabase.DriverPostgres {
		return nil
	}
	return coredatabase.RunMigrations(cfg)
}

func closeDB(db *sqlx.DB) {
	if db != nil {
		_ = db.Close()
	}
}

func (a *App) buildRegistry() *tg.Registry {
	reg := tg.NewRegistry()
	reg.RegisterCommand("/start", commands.Command{
		Handler:     a.handleStart,
		Description: "Welcome and your meditations",
	})
	reg.RegisterCommand("/menu", commands.Command{
		Handler:     a.handleMenu,
		Description: "Show your meditations",
		Aliases:     []string{labelMenu},
	})
	reg.RegisterCommand("/upload", commands.Command{
		Handler:     a.handleUpload,
		Description: "Upload a meditation",
		Aliases:     []string{labelUpload},
	})
	reg.RegisterCommand("/stats", commands.Command{
		Handler:     a.handleStats,
		Description: "Minutes per meditation",
		Aliases:     []string{labelStats},
	})
	reg.RegisterCommand("/cancel", commands.Command{
		Handler:     a.handleCancel,
		Description: "Cancel the upload",
		Aliases:     []string{labelCancel},
	})
	reg.RegisterCommand("/remind", commands.Command{
		Handler:     a.handleRemind,
		Description: "Daily reminder: /remind HH:MM or /remind off",
		Aliases:     []string{labelReminder},
	})
	reg.RegisterCommand("/botstats", commands.Command{
		Handler:     a.handleBotStats,
		Description: "Bot counters",
		AdminOnly:   true,
		Hidden:      true,
	})

	for key, h := range map[string]tele.HandlerFunc{
		cbStart:    a.handleStartMeditation,
		cbDelete:   a.handleDeleteMeditation,
		cbEnd:      a.handleEndMeditation,
		cbCategory: a.handleCategory,
		cbList:     a.handleListCategory,
	} {
		_ = reg.RegisterCallback(key, h)
	}
	reg.SetCallbackNotFound(func(c tele.Context) error {
		return reply(c, textGone)
	})
	return reg
}

// TelegramRunOptions implements cmd.TelegramApp.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	core := a.cfg.CoreConfig()

	routes := router.CommandRoutes(a.registry, router.CommandRouteOptions{
		AdminID:       core.Telegram.AdminID,
		OnAdminReject: a.handleUnknownText,
	})
	routes = append(routes, router.CallbackRoute(a.registry, router.CallbackOptions{}))
	routes = append(routes, router.TextRoutes(uploadFlow{app: a}, a.registry, router.TextOptions{
		UnknownText:  a.handleUnknownText,
		UnknownMedia: a.handleUnexpectedMedia,
	})...)

	return tg.RunOptions{
		Config:            core,
		Registry:          a.registry,
		DispatcherOptions: a.cfg.DispatcherOptions(),
		Middlewares:       tg.DefaultMiddlewares(core, nil),
		Routes:            routes,
		// Replies inside an update go out in order; the dispatcher carries reminders.
		DisableHelperDispatcher: true,
		OnStart:                 a.onStart,
		OnStop:                  a.onStop,
	}, nil
}

func (a *App) onStart(ctx context.Context, rt tg.Runtime) error {
	if rt.Bot != nil {
		a.setOutbound(rt.Bot, rt.Dispatcher)
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	a.stopSched = cancel
	a.schedDone = done
	go func() {
		defer close(done)
		if err := a.sched.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error(runCtx, component, "scheduler.stop",
				slog.String("status", "fail"),
				slog.String("err", err.Error()),
			)
		}
	}()

	logger.Info(ctx, component, "scheduler.start", slog.Int("reminders", a.sched.Len()))
	return nil
}

func (a *App) onStop(ctx context.Context, _ tg.Runtime) error {
	if a.stopSched != nil {
		a.stopSched()
		<-a.schedDone
	}
	a.setOutbound(nil, nil)
	if err := a.store.Close(); err != nil {
		logger.Warn(ctx, component, "storage.close",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("app: close storage: %w", err)
	}
	return nil
}

func (a *App) setOutbound(out messenger, d *tgsender.Dispatcher) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.out = out
	a.dispatcher = d
}

func (a *App) outbound() (messenger, *tgsender.Dispatcher) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.out, a.dispatcher
}

// deliverReminder sends the daily nudge. It goes through the dispatcher for
// retries and falls back to a direct send when the queue is unavailable.
func (a *App) deliverReminder(ctx context.Context, userID int64) error {
	out, d := a.outbound()
	if out == nil {
		return errors.New("app: bot is not running")
	}
	ctx = logger.WithUpdateMeta(ctx, 0, userID, userID)
	send := func() error {
		_, err := out.Send(tele.ChatID(userID), textReminderFire, &tele.SendOptions{ReplyMarkup: mainKeyboard()})
		return err
	}
	if d != nil {
		err := d.Enqueue(ctx, "send.reminder", "sendMessage", send)
		if err == nil {
			return nil
		}
		if !errors.Is(err, tgsender.ErrQueueFull) && !errors.Is(err, tgsender.ErrQueueClosed) {
			return err
		}
		logger.Warn(ctx, component, "reminder.fallback", slog.String("err", err.Error()))
	}
	return send()
}
