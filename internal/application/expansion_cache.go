package application

import (
	"strings"
	"sync"
	"time"
)

// expansionCache stores recently computed occurrence expansions to avoid
// re-running the recurrence engine for identical list queries while the
// underlying reservations remain unchanged.
type expansionCache struct {
	mu         sync.RWMutex
	now        func() time.Time
	ttl        time.Duration
	maxEntries int
	entries    map[string]expansionCacheEntry
}

type expansionCacheEntry struct {
	occurrences []ReservationOccurrence
	expiresAt   time.Time
}

func newExpansionCache(ttl time.Duration, maxEntries int, now func() time.Time) *expansionCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if maxEntries <= 0 {
		maxEntries = 128
	}
	if now == nil {
		now = time.Now
	}
	return &expansionCache{
		now:        now,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]expansionCacheEntry),
	}
}

func (c *expansionCache) Get(key string) ([]ReservationOccurrence, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return cloneOccurrences(entry.occurrences), true
}

func (c *expansionCache) Store(key string, occurrences []ReservationOccurrence) {
	if c == nil {
		return
	}
	cloned := cloneOccurrences(occurrences)
	expiry := c.now().Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cleanupLocked()
	if len(c.entries) >= c.maxEntries {
		c.evictOneLocked()
	}
	c.entries[key] = expansionCacheEntry{occurrences: cloned, expiresAt: expiry}
}

func (c *expansionCache) Invalidate() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.entries = make(map[string]expansionCacheEntry)
	c.mu.Unlock()
}

func (c *expansionCache) cleanupLocked() {
	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

func (c *expansionCache) evictOneLocked() {
	for key := range c.entries {
		delete(c.entries, key)
		return
	}
}

func cloneOccurrences(occurrences []ReservationOccurrence) []ReservationOccurrence {
	if len(occurrences) == 0 {
		return nil
	}
	out := make([]ReservationOccurrence, len(occurrences))
	copy(out, occurrences)
	return out
}

// buildExpansionCacheKey identifies one parent's expansion within one window.
// The parent's UpdatedAt and its exception starts participate so stale
// entries cannot survive a series edit or an instance cancellation.
func buildExpansionCacheKey(parent Reservation, windowStart, windowEnd time.Time, exceptions []time.Time) string {
	builder := strings.Builder{}
	builder.WriteString(parent.ID)
	builder.WriteString("|")
	builder.WriteString(parent.UpdatedAt.UTC().Format(time.RFC3339Nano))
	builder.WriteString("|")
	builder.WriteString(windowStart.UTC().Format(time.RFC3339Nano))
	builder.WriteString("|")
	builder.WriteString(windowEnd.UTC().Format(time.RFC3339Nano))
	for _, exception := range exceptions {
		builder.WriteString("|")
		builder.WriteString(exception.UTC().Format(time.RFC3339Nano))
	}
	return builder.String()
}
