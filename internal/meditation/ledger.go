package meditation

import (
	"encoding/json"
	"sort"
	"sync"
)

// OverallLabel is the reserved ledger key holding a user's total minutes.
// The value matches the key used by existing stats documents.
const OverallLabel = "Общее время"

// Stats maps a label (a meditation title or OverallLabel) to minutes.
type Stats map[string]int

// Total returns the accumulated minutes across all meditations.
func (s Stats) Total() int {
	return s[OverallLabel]
}

// Titles returns the per-meditation labels in lexical order.
func (s Stats) Titles() []string {
	titles := make([]string, 0, len(s))
	for label := range s {
		if label == OverallLabel {
			continue
		}
		titles = append(titles, label)
	}
	sort.Strings(titles)
	return titles
}

// Ledger accumulates practice minutes per user.
// Titles are stored verbatim: "Rain" and "rain" are separate lines.
type Ledger struct {
	mu      sync.RWMutex
	entries map[int64]Stats
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{entries: make(map[int64]Stats)}
}

// Record adds minutes to both the title line and the overall total.
func (l *Ledger) Record(userID int64, title string, minutes int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats, ok := l.entries[userID]
	if !ok {
		stats = make(Stats)
		l.entries[userID] = stats
	}
	stats[title] += minutes
	stats[OverallLabel] += minutes
}

// Snapshot returns a copy of the user's stats; empty when there is no history.
func (l *Ledger) Snapshot(userID int64) Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(Stats, len(l.entries[userID]))
	for label, minutes := range l.entries[userID] {
		out[label] = minutes
	}
	return out
}

// MarshalJSON encodes the ledger as {"<user id>": {"<label>": minutes}}.
func (l *Ledger) MarshalJSON() ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return json.Marshal(l.entries)
}

// UnmarshalJSON replaces the ledger contents with the decoded document.
func (l *Ledger) UnmarshalJSON(data []byte) error {
	decoded := make(map[int64]Stats)
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	for userID, stats := range decoded {
		if stats == nil {
			delete(decoded, userID)
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = decoded
	return nil
}

func (l *Ledger) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = make(map[int64]Stats)
}
