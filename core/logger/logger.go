// Package logger provides context-aware structured logging on top of log/slog.
// Every line carries a component and an event name; request metadata stored in
// the context (rid, update, user, chat) is appended automatically.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/m3rciful/meditationbot/core/buildinfo"
	coreconfig "github.com/m3rciful/meditationbot/core/config"
)

var (
	mu     sync.Mutex
	active *sink

	root     atomic.Pointer[slog.Logger]
	levelVar slog.LevelVar

	debugSample = newSampler(1, 50)
	traceAll    atomic.Bool
)

// InitLogger installs the process-wide logger described by cfg.
// Calls after the first successful one are no-ops until Shutdown.
func InitLogger(cfg *coreconfig.Config) error {
	mu.Lock()
	defer mu.Unlock()
	if active != nil {
		return nil
	}

	s, err := openSink(cfg)
	if err != nil {
		return err
	}
	levelVar.Set(parseLevel(cfg))
	debugSample.set(parseSample(cfg))
	traceAll.Store(truthy(os.Getenv("TRACE")) || truthy(os.Getenv("LOG_TRACE")))

	l := slog.New(newHandler(s, &levelVar, parseFormat(cfg), parseKeyOrder(cfg)))
	active = s
	root.Store(l)
	slog.SetDefault(l)

	startup := []slog.Attr{
		slog.String("go_version", runtime.Version()),
		slog.String("build_commit", buildinfo.Commit),
		slog.String("build_time", buildinfo.Date),
		slog.String("cfg_profile", profile(cfg)),
	}
	Info(context.Background(), "app", "startup", startup...)
	return nil
}

// Shutdown closes the log sinks. Later log calls are dropped.
func Shutdown() error {
	mu.Lock()
	defer mu.Unlock()
	if active == nil {
		return nil
	}
	root.Store(nil)
	err := active.Close()
	active = nil
	return err
}

func openSink(cfg *coreconfig.Config) (*sink, error) {
	s := &sink{outs: []io.Writer{os.Stdout}}
	if cfg == nil {
		return s, nil
	}
	dir := strings.TrimSpace(cfg.Logging.Dir)
	file := strings.TrimSpace(cfg.Logging.BotFile)
	if dir == "" || file == "" {
		return s, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("logger: create log dir %s: %w", dir, err)
	}
	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(dir, file),
		MaxSize:    cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	}
	s.outs = append(s.outs, rotator)
	s.closers = append(s.closers, rotator)
	return s, nil
}

func parseFormat(cfg *coreconfig.Config) logFormat {
	if cfg == nil {
		return formatJSON
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Logging.Format)) {
	case "kv", "text", "pretty":
		return formatKV
	case "json":
		return formatJSON
	}
	if p := profile(cfg); p == "debug" || p == "dev" {
		return formatKV
	}
	return formatJSON
}

func parseKeyOrder(cfg *coreconfig.Config) []string {
	if cfg == nil {
		return defaultKeyOrder
	}
	raw := strings.TrimSpace(cfg.Logging.KeysOrder)
	if raw == "" || raw == "default" {
		return defaultKeyOrder
	}
	var order []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			order = append(order, k)
		}
	}
	if len(order) == 0 {
		return defaultKeyOrder
	}
	return order
}

func parseLevel(cfg *coreconfig.Config) slog.Level {
	if cfg == nil {
		return slog.LevelInfo
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Logging.Level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func profile(cfg *coreconfig.Config) string {
	if cfg == nil {
		return ""
	}
	if p := strings.TrimSpace(cfg.Logging.Profile); p != "" {
		return strings.ToLower(p)
	}
	return "prod"
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// Background returns an empty context for call sites outside an update.
func Background() context.Context {
	return context.Background()
}

// Component returns the root logger scoped to name, or nil before InitLogger.
func Component(name string) *slog.Logger {
	l := root.Load()
	if l == nil {
		return nil
	}
	if name = strings.TrimSpace(name); name != "" {
		return l.With("component", name)
	}
	return l
}

// LogEvent writes one event through logg, falling back to the context logger
// and then the root logger. Nothing is written before InitLogger.
func LogEvent(ctx context.Context, logg *slog.Logger, level slog.Level, event string, attrs ...slog.Attr) {
	if logg == nil {
		logg = FromContext(ctx)
	}
	if logg == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String("event", event)}, attrs...)
	}
	logg.LogAttrs(ctx, level, "", attrs...)
}

// Event logs an event for component at level.
func Event(ctx context.Context, component string, level slog.Level, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), level, event, attrs...)
}

// Debug logs a debug-level event for the given component.
func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelDebug, event, attrs...)
}

// Info logs an info-level event for the given component.
func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelInfo, event, attrs...)
}

// Warn logs a warn-level event for the given component.
func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelWarn, event, attrs...)
}

// Error logs an error-level event for the given component.
func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelError, event, attrs...)
}

// ShouldSampleDebug reports whether a high-volume debug event should be written.
// TRACE=1 or LOG_TRACE=1 disables sampling.
func ShouldSampleDebug() bool {
	if traceAll.Load() {
		return true
	}
	return debugSample.allow()
}
