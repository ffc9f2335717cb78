package router

import (
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/meditationbot/core/logger"
	tg "github.com/m3rciful/meditationbot/core/telegram"
	"github.com/m3rciful/meditationbot/core/telegram/middleware"
)

// CommandRouteOptions configures CommandRoutes.
type CommandRouteOptions struct {
	AdminID int64
	// OnAdminReject answers non-admins calling an admin-only command.
	OnAdminReject tele.HandlerFunc
}

// CommandRoutes returns one route per registered slash command. Routes rely on
// the shared middleware chain for recovery and request logging.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}
	cmds := reg.Commands()
	routes := make([]tg.Route, 0, len(cmds))
	for name, def := range cmds {
		h := def.Handler
		if def.AdminOnly {
			h = middleware.AdminOnly(opts.AdminID, opts.OnAdminReject)(h)
		}
		routes = append(routes, tg.Route{
			Endpoint: name,
			Handler: func(c tele.Context) error {
				return run(c, handlerName(name), time.Now(), func() error { return h(c) })
			},
		})
	}

	logger.Info(logger.Background(), "tg.wire", "routes.commands",
		slog.Int("commands", len(cmds)),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)
	return routes
}
