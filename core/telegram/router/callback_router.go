package router

import (
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/meditationbot/core/telegram"
	"github.com/m3rciful/meditationbot/core/telegram/callbacks"
)

// CallbackOptions customises callback routing.
type CallbackOptions struct {
	// NotFound is used when the registry has no not-found handler.
	NotFound tele.HandlerFunc
}

// CallbackRoute answers every callback query and dispatches it by key.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		cb := c.Callback()
		if cb == nil {
			return nil
		}
		// Stop the client spinner before any reply is sent.
		_ = c.Respond()

		key, payload := callbacks.ParseCallbackData(cb)
		extras := []slog.Attr{slog.String("cb_key", key), slog.String("payload", payload)}

		h, ok := reg.GetCallback(key)
		if !ok || h == nil {
			h = reg.CallbackNotFound()
			if h == nil {
				h = opts.NotFound
			}
			extras = append(extras, slog.String("reason", "not_found"))
		}
		return run(c, "callback."+handlerName(key), start, func() error {
			if h == nil {
				return nil
			}
			return h(c)
		}, extras...)
	}
	return tg.Route{Endpoint: tele.OnCallback, Handler: handler}
}
