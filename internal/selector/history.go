package selector

import (
	"slices"
	"strings"
	"sync"
)

// DefaultHistoryLimit caps the keys remembered per holder.
const DefaultHistoryLimit = 100

// History remembers the records each holder opened, most recent first.
type History struct {
	mu      sync.Mutex
	limit   int
	entries map[string][]string
}

// NewHistory creates a history capped at limit entries per holder.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{limit: limit, entries: make(map[string][]string)}
}

// Visit moves key to the front of holder's history.
func (h *History) Visit(holder, key string) {
	holder, key = strings.TrimSpace(holder), strings.TrimSpace(key)
	if holder == "" || key == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	current := slices.DeleteFunc(h.entries[holder], func(existing string) bool { return existing == key })
	current = slices.Insert(current, 0, key)
	if len(current) > h.limit {
		current = current[:h.limit]
	}
	h.entries[holder] = current
}

// Entries returns a copy of holder's history, most recent first.
func (h *History) Entries(holder string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.entries[strings.TrimSpace(holder)])
}

// Forget clears holder's history.
func (h *History) Forget(holder string) {
	h.mu.Lock()
	delete(h.entries, strings.TrimSpace(holder))
	h.mu.Unlock()
}
