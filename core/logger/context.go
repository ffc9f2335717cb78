package logger

import (
	"context"
	"log/slog"
)

type loggerKey struct{}

type metaKey struct{}

// meta is the request metadata appended to every line logged with the context.
type meta struct {
	rid      string
	traceID  string
	handler  string
	updateID int
	userID   int64
	chatID   int64
}

func metaFrom(ctx context.Context) meta {
	if ctx == nil {
		return meta{}
	}
	m, _ := ctx.Value(metaKey{}).(meta)
	return m
}

func withMeta(ctx context.Context, update func(*meta)) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	m := metaFrom(ctx)
	update(&m)
	return context.WithValue(ctx, metaKey{}, m)
}

// WithLogger stores log in ctx for downstream LogEvent calls.
func WithLogger(ctx context.Context, log *slog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if log == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerKey{}, log)
}

// FromContext returns the logger stored in ctx or the root logger.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return root.Load()
}

// WithRID attaches the request correlation id.
func WithRID(ctx context.Context, rid string) context.Context {
	return withMeta(ctx, func(m *meta) { m.rid = rid })
}

// RIDFrom returns the correlation id or "".
func RIDFrom(ctx context.Context) string {
	return metaFrom(ctx).rid
}

// WithTrace attaches a trace id generated for the update.
func WithTrace(ctx context.Context, traceID string) context.Context {
	return withMeta(ctx, func(m *meta) { m.traceID = traceID })
}

// TraceIDFrom returns the trace id or "".
func TraceIDFrom(ctx context.Context) string {
	return metaFrom(ctx).traceID
}

// WithUpdateMeta attaches the update, user and chat identifiers.
func WithUpdateMeta(ctx context.Context, updateID int, userID, chatID int64) context.Context {
	return withMeta(ctx, func(m *meta) {
		m.updateID = updateID
		m.userID = userID
		m.chatID = chatID
	})
}

// WithHandler records the handler name serving the update.
func WithHandler(ctx context.Context, handler string) context.Context {
	if handler == "" {
		if ctx == nil {
			return context.Background()
		}
		return ctx
	}
	return withMeta(ctx, func(m *meta) { m.handler = handler })
}

// UserIDFrom returns the Telegram user id or 0.
func UserIDFrom(ctx context.Context) int64 {
	return metaFrom(ctx).userID
}

// ChatIDFrom returns the chat id or 0.
func ChatIDFrom(ctx context.Context) int64 {
	return metaFrom(ctx).chatID
}

// UpdateIDFrom returns the update id or 0.
func UpdateIDFrom(ctx context.Context) int {
	return metaFrom(ctx).updateID
}

// fill copies metadata into fields without overriding explicit attributes.
func (m meta) fill(fields map[string]any) {
	setDefault := func(key string, val any, zero bool) {
		if zero {
			return
		}
		if _, ok := fields[key]; !ok {
			fields[key] = val
		}
	}
	setDefault("rid", m.rid, m.rid == "")
	setDefault("trace_id", m.traceID, m.traceID == "")
	setDefault("handler", m.handler, m.handler == "")
	setDefault("update_id", int64(m.updateID), m.updateID == 0)
	setDefault("user_id", m.userID, m.userID == 0)
	setDefault("chat_id", m.chatID, m.chatID == 0)
}
