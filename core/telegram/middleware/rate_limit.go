package middleware

import (
	"log/slog"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/meditationbot/core/logger"
	tghelpers "github.com/m3rciful/meditationbot/core/telegram/helpers"
)

// RateLimitOptions configures RateLimitMiddleware.
type RateLimitOptions struct {
	Interval time.Duration
	// Exclude lists update kinds ("message", "callback", "inline_query") that bypass the limit.
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
}

type lastSeen struct {
	mu     sync.Mutex
	byUser map[int64]time.Time
	swept  time.Time
}

// allow records now for user and reports whether interval has passed since the
// previous accepted update. Stale entries are swept at most every 100 intervals.
func (l *lastSeen) allow(user int64, now time.Time, interval time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if now.Sub(l.swept) > 100*interval {
		for id, at := range l.byUser {
			if now.Sub(at) >= interval {
				delete(l.byUser, id)
			}
		}
		l.swept = now
	}
	if at, ok := l.byUser[user]; ok && now.Sub(at) < interval {
		return false
	}
	l.byUser[user] = now
	return true
}

// RateLimitMiddleware drops updates that arrive from the same user faster than
// opts.Interval.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	seen := &lastSeen{byUser: make(map[int64]time.Time)}
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}
			kind := updateKind(c.Update())
			if _, skip := opts.Exclude[kind]; skip {
				return next(c)
			}
			if seen.allow(user.ID, time.Now(), opts.Interval) {
				return next(c)
			}
			logger.Warn(tghelpers.BuildContext(c), "tg", "rate_limit",
				slog.String("status", "rate_limited"),
				slog.String("kind", kind),
			)
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}

func updateKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return "callback"
	case upd.Message != nil:
		return "message"
	case upd.Query != nil:
		return "inline_query"
	}
	return "other"
}
