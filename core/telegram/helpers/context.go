// Package helpers glues telebot contexts to the logger and the outbound
// dispatcher.
package helpers

import (
	"context"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/meditationbot/core/logger"
)

const ctxKey = "log_ctx"

// Context returns the logging context attached to the update, if any.
func Context(c tele.Context) (context.Context, bool) {
	if c == nil {
		return nil, false
	}
	ctx, ok := c.Get(ctxKey).(context.Context)
	return ctx, ok && ctx != nil
}

// Attach builds the logging context of the update (rid, trace id, user and
// chat) and stores it on c. An empty traceID leaves the trace unset.
func Attach(c tele.Context, traceID string) context.Context {
	var chatID, userID int64
	if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}
	if user := c.Sender(); user != nil {
		userID = user.ID
	}
	updateID := c.Update().ID

	ctx := logger.WithRID(logger.Background(), logger.BuildRID(updateID, chatID, userID))
	if traceID != "" {
		ctx = logger.WithTrace(ctx, traceID)
	}
	ctx = logger.WithUpdateMeta(ctx, updateID, userID, chatID)
	ctx = logger.WithLogger(ctx, logger.Component("tg"))
	c.Set(ctxKey, ctx)
	return ctx
}

// BuildContext returns the update's logging context, attaching one when the
// logging middleware did not run.
func BuildContext(c tele.Context) context.Context {
	if ctx, ok := Context(c); ok {
		return ctx
	}
	return Attach(c, "")
}

// WithHandler tags the update's context with the handler name.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := BuildContext(c)
	if handler != "" {
		ctx = logger.WithHandler(ctx, handler)
		c.Set(ctxKey, ctx)
	}
	return ctx
}
