package middleware

import (
	"log/slog"

	"github.com/google/uuid"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/meditationbot/core/logger"
	"github.com/m3rciful/meditationbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/meditationbot/core/telegram/helpers"
)

// LoggerMiddleware builds the logging context for an update (rid, trace id,
// update metadata) and writes a sampled update.received debug line.
// A second application to the same update is a no-op.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if _, ok := tghelpers.Context(c); ok {
			return next(c)
		}
		ctx := tghelpers.Attach(c, uuid.NewString())

		if logger.ShouldSampleDebug() {
			logger.LogEvent(ctx, nil, slog.LevelDebug, "update.received", updateAttrs(c, c.Update())...)
		}
		return next(c)
	}
}

// updateAttrs describes the update for the receipt line. Free text is trimmed
// because it may hold titles typed by users.
func updateAttrs(c tele.Context, upd tele.Update) []slog.Attr {
	attrs := []slog.Attr{slog.String("status", "ok")}
	if chat := c.Chat(); chat != nil {
		attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
	}
	if u := c.Sender(); u != nil {
		if u.Username != "" {
			attrs = append(attrs, slog.String("username", logger.SanitizeLimit(u.Username, 64)))
		}
		if u.LanguageCode != "" {
			attrs = append(attrs, slog.String("lang", u.LanguageCode))
		}
	}
	switch {
	case upd.Callback != nil:
		key, payload := callbacks.ParseCallbackData(upd.Callback)
		attrs = append(attrs,
			slog.String("cb_key", logger.SanitizeLimit(key, 128)),
			slog.String("payload", logger.SanitizeLimit(payload, 256)),
		)
	case upd.Message != nil:
		m := upd.Message
		attrs = append(attrs, slog.String("kind", messageKind(m)))
		if m.Text != "" {
			attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(m.Text, 256)))
		}
	}
	return attrs
}

func messageKind(m *tele.Message) string {
	switch {
	case m.Audio != nil:
		return "audio"
	case m.Video != nil:
		return "video"
	case m.Document != nil:
		return "document"
	case m.Text != "":
		return "text"
	}
	return "other"
}
