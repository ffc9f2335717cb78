package meditation

import (
	"context"
	"log/slog"
	"time"

	"github.com/m3rciful/meditationbot/core/logger"
)

// Practice is a running meditation timer. The title is copied at start so a
// later delete of the item does not affect the session.
type Practice struct {
	Title     string
	Index     int
	StartedAt time.Time
}

// Completion is the outcome of ending a practice session.
type Completion struct {
	Title   string
	Minutes int
	Elapsed time.Duration
}

// ElapsedMinutes returns whole minutes between start and end, never less than one.
func ElapsedMinutes(start, end time.Time) int {
	minutes := int(end.Sub(start) / time.Minute)
	if minutes < 1 {
		return 1
	}
	return minutes
}

// Start begins a practice session for the item at index and returns the item
// so the caller can play it. A running session is replaced.
func (m *Manager) Start(ctx context.Context, userID int64, index int) (Item, error) {
	unlock := m.locks.lock(userID)
	defer unlock()

	item, err := m.library.Get(userID, index)
	if err != nil {
		return Item{}, err
	}
	prev, replaced := m.practices.Get(userID)
	m.practices.Set(userID, Practice{
		Title:     item.Title,
		Index:     index,
		StartedAt: m.now(),
	})

	attrs := []slog.Attr{
		slog.Int64("user_id", userID),
		slog.Int("index", index),
		slog.String("title", logger.SanitizeLimit(item.Title, 128)),
	}
	if replaced {
		attrs = append(attrs, slog.String("replaced", logger.SanitizeLimit(prev.Title, 128)))
	}
	logger.Info(ctx, component, "practice.start", attrs...)
	return item, nil
}

// End stops the running session, records the minutes and returns them.
func (m *Manager) End(ctx context.Context, userID int64) (Completion, error) {
	unlock := m.locks.lock(userID)
	defer unlock()

	session, ok := m.practices.Take(userID)
	if !ok {
		return Completion{}, ErrNoActiveSession
	}
	now := m.now()
	done := Completion{
		Title:   session.Title,
		Minutes: ElapsedMinutes(session.StartedAt, now),
		Elapsed: now.Sub(session.StartedAt),
	}
	m.ledger.Record(userID, done.Title, done.Minutes)
	m.persist(ctx, DocStats)

	logger.Info(ctx, component, "practice.end",
		slog.Int64("user_id", userID),
		slog.String("title", logger.SanitizeLimit(done.Title, 128)),
		slog.Int("minutes", done.Minutes),
		slog.Duration("elapsed", done.Elapsed),
	)
	return done, nil
}

// Practicing returns the running session, if any.
func (m *Manager) Practicing(userID int64) (Practice, bool) {
	return m.practices.Get(userID)
}
