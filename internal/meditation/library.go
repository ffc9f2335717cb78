package meditation

import (
	"encoding/json"
	"sync"
)

// Library keeps every user's meditations in upload order.
// Items are addressed by position; removing an item shifts all later
// positions down by one, so an index read before a delete is stale after it.
type Library struct {
	mu    sync.RWMutex
	items map[int64][]Item
}

// NewLibrary returns an empty library.
func NewLibrary() *Library {
	return &Library{items: make(map[int64][]Item)}
}

// Append stores item at the end of the user's list and returns its index.
func (l *Library) Append(userID int64, item Item) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items[userID] = append(l.items[userID], item)
	return len(l.items[userID]) - 1
}

// RemoveAt deletes and returns the item at index.
func (l *Library) RemoveAt(userID int64, index int) (Item, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	list := l.items[userID]
	if index < 0 || index >= len(list) {
		return Item{}, ErrIndexOutOfRange
	}
	item := list[index]
	rest := make([]Item, 0, len(list)-1)
	rest = append(rest, list[:index]...)
	rest = append(rest, list[index+1:]...)
	if len(rest) == 0 {
		delete(l.items, userID)
	} else {
		l.items[userID] = rest
	}
	return item, nil
}

// Get returns the item at index.
func (l *Library) Get(userID int64, index int) (Item, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	list := l.items[userID]
	if index < 0 || index >= len(list) {
		return Item{}, ErrIndexOutOfRange
	}
	return list[index], nil
}

// List returns a copy of the user's meditations with their indices.
func (l *Library) List(userID int64) []Entry {
	return l.filter(userID, func(Item) bool { return true })
}

// FilterByCategory returns meditations tagged with category.
// Indices refer to positions in the unfiltered list.
func (l *Library) FilterByCategory(userID int64, category string) []Entry {
	return l.filter(userID, func(it Item) bool { return it.Category == category })
}

// Len returns the number of meditations stored for a user.
func (l *Library) Len(userID int64) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items[userID])
}

// Totals returns the number of users with meditations and the total item count.
func (l *Library) Totals() (users, items int) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, list := range l.items {
		users++
		items += len(list)
	}
	return users, items
}

func (l *Library) filter(userID int64, keep func(Item) bool) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	list := l.items[userID]
	out := make([]Entry, 0, len(list))
	for i, it := range list {
		if keep(it) {
			out = append(out, Entry{Index: i, Item: it})
		}
	}
	return out
}

// MarshalJSON encodes the library as {"<user id>": [items...]}.
func (l *Library) MarshalJSON() ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return json.Marshal(l.items)
}

// UnmarshalJSON replaces the library contents with the decoded document.
func (l *Library) UnmarshalJSON(data []byte) error {
	decoded := make(map[int64][]Item)
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	for userID, list := range decoded {
		if len(list) == 0 {
			delete(decoded, userID)
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = decoded
	return nil
}

func (l *Library) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = make(map[int64][]Item)
}
