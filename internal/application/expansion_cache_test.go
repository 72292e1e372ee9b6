package application

import (
	"fmt"
	"testing"
	"time"
)

func sampleOccurrences(count int) []ReservationOccurrence {
	occurrences := make([]ReservationOccurrence, 0, count)
	for i := 0; i < count; i++ {
		start := jstDate(5, 10, 0).AddDate(0, 0, 7*i)
		occurrences = append(occurrences, ReservationOccurrence{Start: start, End: start.Add(time.Hour)})
	}
	return occurrences
}

func TestExpansionCache_StoreAndGet(t *testing.T) {
	t.Parallel()

	cache := newExpansionCache(time.Minute, 8, testNow)
	stored := sampleOccurrences(3)
	cache.Store("key", stored)

	got, ok := cache.Get("key")
	if !ok {
		t.Fatal("expected a cache hit")
	}
	if len(got) != 3 || !got[0].Start.Equal(stored[0].Start) {
		t.Fatalf("unexpected cached occurrences: %+v", got)
	}

	// Mutating the returned slice must not corrupt the cached copy.
	got[0].Start = got[0].Start.Add(time.Hour)
	again, _ := cache.Get("key")
	if !again[0].Start.Equal(stored[0].Start) {
		t.Fatal("cached occurrences must be isolated from callers")
	}

	if _, ok := cache.Get("missing"); ok {
		t.Fatal("expected a miss for an unknown key")
	}
}

func TestExpansionCache_EntriesExpire(t *testing.T) {
	t.Parallel()

	current := testNow()
	cache := newExpansionCache(time.Minute, 8, func() time.Time { return current })
	cache.Store("key", sampleOccurrences(1))

	current = current.Add(30 * time.Second)
	if _, ok := cache.Get("key"); !ok {
		t.Fatal("expected a hit within the TTL")
	}

	current = current.Add(31 * time.Second)
	if _, ok := cache.Get("key"); ok {
		t.Fatal("expected the entry to expire after the TTL")
	}
}

func TestExpansionCache_InvalidateDropsEverything(t *testing.T) {
	t.Parallel()

	cache := newExpansionCache(time.Minute, 8, testNow)
	cache.Store("a", sampleOccurrences(1))
	cache.Store("b", sampleOccurrences(2))

	cache.Invalidate()

	if _, ok := cache.Get("a"); ok {
		t.Fatal("expected key a to be dropped")
	}
	if _, ok := cache.Get("b"); ok {
		t.Fatal("expected key b to be dropped")
	}
}

func TestExpansionCache_BoundsEntryCount(t *testing.T) {
	t.Parallel()

	cache := newExpansionCache(time.Minute, 4, testNow)
	for i := 0; i < 10; i++ {
		cache.Store(fmt.Sprintf("key-%d", i), sampleOccurrences(1))
	}

	cache.mu.RLock()
	size := len(cache.entries)
	cache.mu.RUnlock()
	if size > 4 {
		t.Fatalf("cache holds %d entries, want at most 4", size)
	}
}

func TestExpansionCache_NilIsSafe(t *testing.T) {
	t.Parallel()

	var cache *expansionCache
	cache.Store("key", sampleOccurrences(1))
	cache.Invalidate()
	if _, ok := cache.Get("key"); ok {
		t.Fatal("nil cache must always miss")
	}
}

func TestBuildExpansionCacheKey_ReflectsEditsAndExceptions(t *testing.T) {
	t.Parallel()

	parent := weeklyParent()
	parent.UpdatedAt = testNow()
	windowStart, windowEnd := jstDate(1, 0, 0), jstDate(31, 0, 0)

	base := buildExpansionCacheKey(parent, windowStart, windowEnd, nil)
	if again := buildExpansionCacheKey(parent, windowStart, windowEnd, nil); again != base {
		t.Fatal("identical inputs must produce identical keys")
	}

	edited := parent
	edited.UpdatedAt = parent.UpdatedAt.Add(time.Second)
	if buildExpansionCacheKey(edited, windowStart, windowEnd, nil) == base {
		t.Fatal("editing the series must change the key")
	}

	if buildExpansionCacheKey(parent, windowStart, windowEnd, []time.Time{jstDate(19, 10, 0)}) == base {
		t.Fatal("cancelling an instance must change the key")
	}

	if buildExpansionCacheKey(parent, windowStart, jstDate(30, 0, 0), nil) == base {
		t.Fatal("a different window must change the key")
	}
}
