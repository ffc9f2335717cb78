package meditation

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Reminder is a daily wall-clock time in the server's local zone.
type Reminder struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// String formats the reminder as HH:MM.
func (r Reminder) String() string {
	return fmt.Sprintf("%02d:%02d", r.Hour, r.Minute)
}

// Validate checks the hour and minute ranges.
func (r Reminder) Validate() error {
	if r.Hour < 0 || r.Hour > 23 {
		return invalid("time", ErrInvalidTime, fmt.Sprintf("hour %d outside 0-23", r.Hour))
	}
	if r.Minute < 0 || r.Minute > 59 {
		return invalid("time", ErrInvalidTime, fmt.Sprintf("minute %d outside 0-59", r.Minute))
	}
	return nil
}

// Scheduler fires a daily callback for a user. Implementations keep one slot per user.
type Scheduler interface {
	Schedule(userID int64, hour, minute int) error
	Cancel(userID int64)
}

// Reminders holds one daily reminder per user and mirrors it into a Scheduler.
type Reminders struct {
	mu      sync.RWMutex
	entries map[int64]Reminder
	sched   Scheduler
}

// NewReminders returns an empty registry. A nil scheduler disables firing.
func NewReminders(sched Scheduler) *Reminders {
	return &Reminders{
		entries: make(map[int64]Reminder),
		sched:   sched,
	}
}

// Set stores the reminder, replacing any previous one, and schedules it.
func (r *Reminders) Set(userID int64, hour, minute int) error {
	rem := Reminder{Hour: hour, Minute: minute}
	if err := rem.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sched != nil {
		if err := r.sched.Schedule(userID, hour, minute); err != nil {
			return fmt.Errorf("schedule reminder: %w", err)
		}
	}
	r.entries[userID] = rem
	return nil
}

// Clear removes the reminder and cancels its schedule.
// It reports whether a reminder existed; clearing nothing is not an error.
func (r *Reminders) Clear(userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[userID]
	if !ok {
		return false
	}
	delete(r.entries, userID)
	if r.sched != nil {
		r.sched.Cancel(userID)
	}
	return true
}

// Get returns the user's reminder.
func (r *Reminders) Get(userID int64) (Reminder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rem, ok := r.entries[userID]
	return rem, ok
}

// Len returns the number of registered reminders.
func (r *Reminders) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Restore re-registers every stored reminder with the scheduler.
// Entries with invalid times are dropped; the count of scheduled entries is returned.
func (r *Reminders) Restore() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	users := make([]int64, 0, len(r.entries))
	for userID := range r.entries {
		users = append(users, userID)
	}
	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })

	var (
		errs      []error
		scheduled int
	)
	for _, userID := range users {
		rem := r.entries[userID]
		if err := rem.Validate(); err != nil {
			delete(r.entries, userID)
			errs = append(errs, fmt.Errorf("user %d: %w", userID, err))
			continue
		}
		if r.sched == nil {
			continue
		}
		if err := r.sched.Schedule(userID, rem.Hour, rem.Minute); err != nil {
			errs = append(errs, fmt.Errorf("user %d: %w", userID, err))
			continue
		}
		scheduled++
	}
	return scheduled, errors.Join(errs...)
}

// MarshalJSON encodes the registry as {"<user id>": {"hour": h, "minute": m}}.
func (r *Reminders) MarshalJSON() ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return json.Marshal(r.entries)
}

// UnmarshalJSON replaces the registry contents without touching the scheduler.
// Call Restore afterwards to arm the loaded entries.
func (r *Reminders) UnmarshalJSON(data []byte) error {
	decoded := make(map[int64]Reminder)
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = decoded
	return nil
}

func (r *Reminders) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[int64]Reminder)
}
