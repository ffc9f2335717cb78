package router

import (
	"errors"
	"time"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/meditationbot/core/telegram"
)

// ErrNotHandled is returned by an FSM handler that did not consume the update.
// The router then continues with the generic fallbacks.
var ErrNotHandled = errors.New("router: update not handled")

// FSM defines the minimal interface for an FSM manager.
type FSM interface {
	InProgress(userID int64) bool
	ManagerHandler(c tele.Context) error
}

// TextOptions controls fallback behaviour for text and media updates.
type TextOptions struct {
	UnknownText  tele.HandlerFunc
	UnknownMedia tele.HandlerFunc
}

// TextRoutes builds handlers for text and attachment routing.
// Text is matched against command aliases first, so reply keyboard labels
// keep working in the middle of a flow; anything else goes to the FSM when the
// user has one in progress. Admin-only commands are never reachable by alias.
func TextRoutes(fsmMgr FSM, reg *tg.Registry, opts TextOptions) []tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		text := c.Text()

		if reg != nil {
			if key, cmd, ok := reg.LookupAlias(text); ok && cmd.Handler != nil && !cmd.AdminOnly {
				return run(c, handlerName(key), start, func() error {
					return cmd.Handler(c)
				})
			}
		}

		if handled, err := tryFSM(c, fsmMgr, "fsm", start); handled {
			return err
		}

		if opts.UnknownText != nil {
			return run(c, "unknown_text", start, func() error {
				return opts.UnknownText(c)
			})
		}

		summarize(c, "unknown_text", start, "skip", nil)
		return nil
	}

	mediaHandler := func(c tele.Context) error {
		start := time.Now()
		if handled, err := tryFSM(c, fsmMgr, "fsm_media", start); handled {
			return err
		}
		if opts.UnknownMedia != nil {
			return run(c, "unexpected_media", start, func() error {
				return opts.UnknownMedia(c)
			})
		}
		summarize(c, "unexpected_media", start, "skip", nil)
		return nil
	}

	return []tg.Route{
		{Endpoint: tele.OnText, Handler: handler},
		{Endpoint: tele.OnDocument, Handler: mediaHandler},
		{Endpoint: tele.OnAudio, Handler: mediaHandler},
		{Endpoint: tele.OnVideo, Handler: mediaHandler},
	}
}

// tryFSM runs the FSM when the sender has a flow in progress.
// It reports false when the FSM is absent, idle, or declined the update.
func tryFSM(c tele.Context, fsmMgr FSM, name string, start time.Time) (bool, error) {
	if fsmMgr == nil || c.Sender() == nil || !fsmMgr.InProgress(c.Sender().ID) {
		return false, nil
	}
	var declined bool
	err := run(c, name, start, func() error {
		err := fsmMgr.ManagerHandler(c)
		if errors.Is(err, ErrNotHandled) {
			declined = true
			return nil
		}
		return err
	})
	if declined {
		return false, nil
	}
	return true, err
}
