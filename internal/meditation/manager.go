// Package meditation holds the bookkeeping core of the bot: the meditation
// library, the upload and practice flows, the minutes ledger and the daily
// reminder registry. It knows nothing about Telegram; callers translate
// updates into calls on Manager and render the results.
package meditation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/m3rciful/meditationbot/core/logger"
	"github.com/m3rciful/meditationbot/core/state"
	"github.com/m3rciful/meditationbot/internal/snapshot"
)

const component = "service.meditation"

// Snapshot document names.
const (
	DocMeditations = "meditations"
	DocStats       = "stats"
	DocReminders   = "reminders"
)

// Options configure a Manager.
type Options struct {
	// Store persists document snapshots; required.
	Store snapshot.Store
	// Scheduler arms daily reminders; nil disables firing.
	Scheduler Scheduler
	// Categories offered during upload. Empty skips the category step.
	Categories []string
	// Placeholder is the title used for attachments without a file name.
	Placeholder string
	// Now overrides the clock for tests.
	Now func() time.Time
}

// Manager owns every per-user store and serializes each user's operations.
type Manager struct {
	library   *Library
	ledger    *Ledger
	reminders *Reminders
	uploads   state.Manager[uploadState]
	practices state.Manager[Practice]

	locks     *userLocks
	store     snapshot.Store
	persistMu sync.Mutex

	categories  []string
	placeholder string
	now         func() time.Time
}

// Summary aggregates bot-wide counters for diagnostics.
type Summary struct {
	Users       int
	Meditations int
	Reminders   int
	Uploads     int
	Practicing  int
}

// NewManager builds a Manager with empty stores. Call Load to restore snapshots.
func NewManager(opts Options) (*Manager, error) {
	if opts.Store == nil {
		return nil, errors.New("meditation: nil snapshot store")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	categories := make([]string, 0, len(opts.Categories))
	seen := make(map[string]struct{}, len(opts.Categories))
	for _, c := range opts.Categories {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		categories = append(categories, c)
	}
	placeholder := strings.TrimSpace(opts.Placeholder)
	if placeholder == "" {
		placeholder = DefaultPlaceholderTitle
	}
	return &Manager{
		library:     NewLibrary(),
		ledger:      NewLedger(),
		reminders:   NewReminders(opts.Scheduler),
		uploads:     state.NewMemoryManager[uploadState](),
		practices:   state.NewMemoryManager[Practice](),
		locks:       newUserLocks(),
		store:       opts.Store,
		categories:  categories,
		placeholder: placeholder,
		now:         now,
	}, nil
}

// Categories returns the categories offered during upload.
func (m *Manager) Categories() []string {
	return append([]string(nil), m.categories...)
}

// Meditations lists the user's meditations in upload order.
func (m *Manager) Meditations(userID int64) []Entry {
	return m.library.List(userID)
}

// MeditationsByCategory lists meditations tagged with category; indices are unfiltered positions.
func (m *Manager) MeditationsByCategory(userID int64, category string) []Entry {
	return m.library.FilterByCategory(userID, category)
}

// Delete removes the meditation at index. Later indices shift down by one.
func (m *Manager) Delete(ctx context.Context, userID int64, index int) (Item, error) {
	unlock := m.locks.lock(userID)
	defer unlock()

	item, err := m.library.RemoveAt(userID, index)
	if err != nil {
		return Item{}, err
	}
	m.persist(ctx, DocMeditations)
	logger.Info(ctx, component, "library.delete",
		slog.Int64("user_id", userID),
		slog.Int("index", index),
		slog.String("title", logger.SanitizeLimit(item.Title, 128)),
	)
	return item, nil
}

// Stats returns the user's accumulated minutes.
func (m *Manager) Stats(userID int64) Stats {
	return m.ledger.Snapshot(userID)
}

// SetReminder replaces the user's daily reminder.
func (m *Manager) SetReminder(ctx context.Context, userID int64, hour, minute int) error {
	unlock := m.locks.lock(userID)
	defer unlock()

	if err := m.reminders.Set(userID, hour, minute); err != nil {
		return err
	}
	m.persist(ctx, DocReminders)
	logger.Info(ctx, component, "reminder.set",
		slog.Int64("user_id", userID),
		slog.Int("hour", hour),
		slog.Int("minute", minute),
	)
	return nil
}

// ClearReminder removes the user's reminder and reports whether one existed.
func (m *Manager) ClearReminder(ctx context.Context, userID int64) bool {
	unlock := m.locks.lock(userID)
	defer unlock()

	if !m.reminders.Clear(userID) {
		return false
	}
	m.persist(ctx, DocReminders)
	logger.Info(ctx, component, "reminder.clear", slog.Int64("user_id", userID))
	return true
}

// Reminder returns the user's reminder, if set.
func (m *Manager) Reminder(userID int64) (Reminder, bool) {
	return m.reminders.Get(userID)
}

// Summary returns bot-wide counters.
func (m *Manager) Summary() Summary {
	users, items := m.library.Totals()
	return Summary{
		Users:       users,
		Meditations: items,
		Reminders:   m.reminders.Len(),
		Uploads:     m.uploads.Len(),
		Practicing:  m.practices.Len(),
	}
}

type document struct {
	name  string
	codec interface {
		MarshalJSON() ([]byte, error)
		UnmarshalJSON([]byte) error
	}
	reset func()
}

func (m *Manager) documents() []document {
	return []document{
		{name: DocMeditations, codec: m.library, reset: m.library.reset},
		{name: DocStats, codec: m.ledger, reset: m.ledger.reset},
		{name: DocReminders, codec: m.reminders, reset: m.reminders.reset},
	}
}

// Load restores every document from the store and re-arms reminders.
// A document that fails to parse is treated as empty and logged as a warning.
func (m *Manager) Load(ctx context.Context) error {
	for _, doc := range m.documents() {
		start := time.Now()
		data, err := m.store.Load(ctx, doc.name)
		if errors.Is(err, snapshot.ErrNotFound) {
			logger.Debug(ctx, component, "snapshot.missing", slog.String("doc", doc.name))
			continue
		}
		if err != nil {
			return fmt.Errorf("meditation: load %s: %w", doc.name, err)
		}
		if len(strings.TrimSpace(string(data))) == 0 {
			continue
		}
		if err := doc.codec.UnmarshalJSON(data); err != nil {
			doc.reset()
			logger.Warn(ctx, component, "snapshot.corrupt",
				slog.String("doc", doc.name),
				slog.String("status", "skip"),
				slog.String("err", err.Error()),
			)
			continue
		}
		logger.Debug(ctx, component, "snapshot.loaded",
			slog.String("doc", doc.name),
			slog.Int("bytes", len(data)),
			slog.Duration("duration", logger.Took(start)),
		)
	}

	scheduled, err := m.reminders.Restore()
	if err != nil {
		logger.Warn(ctx, component, "reminder.restore",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}
	users, items := m.library.Totals()
	logger.Info(ctx, component, "snapshot.restored",
		slog.Int("users", users),
		slog.Int("count", items),
		slog.Int("reminders", scheduled),
	)
	return nil
}

// persist rewrites the named documents. Failures are logged and do not roll
// back the in-memory change that preceded them. ctx only carries log
// metadata: a cancelled update must not skip the save.
func (m *Manager) persist(ctx context.Context, names ...string) {
	ctx = context.WithoutCancel(ctx)
	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	for _, doc := range m.documents() {
		if !slices.Contains(names, doc.name) {
			continue
		}
		start := time.Now()
		data, err := doc.codec.MarshalJSON()
		if err == nil {
			err = m.store.Save(ctx, doc.name, data)
		}
		if err != nil {
			logger.Error(ctx, component, "snapshot.save",
				slog.String("status", "fail"),
				slog.String("doc", doc.name),
				slog.String("err", err.Error()),
			)
			continue
		}
		logger.Debug(ctx, component, "snapshot.save",
			slog.String("status", "ok"),
			slog.String("doc", doc.name),
			slog.Int("bytes", len(data)),
			slog.Duration("duration", logger.Took(start)),
		)
	}
}
