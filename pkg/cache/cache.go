// Package cache implements the Analysis Cache component: a project-root
// keyed cache of ProjectContext values, invalidated by TTL expiry or by a
// change in the tracked set of file modification times.
package cache

import (
	"log/slog"
	"sync"
	"time"
)

// ProjectContext is the cached analysis result for a project root. The
// kernel treats its contents opaquely; none of its fields, CapturedAt
// included, participate in cache bookkeeping (expiry is measured from
// the time of Set).
type ProjectContext struct {
	Language     string
	Framework    string
	Patterns     []string
	Dependencies []string
	Standards    []string
	CapturedAt   time.Time
}

// FileMtimes maps a tracked file path to its last observed modification
// time. Cardinality and per-file recency are both part of the validity
// check.
type FileMtimes map[string]time.Time

type entry struct {
	data       ProjectContext
	createdAt  time.Time
	expiresAt  time.Time
	fileMtimes FileMtimes
}

// Stats are cumulative counters plus a derived hit rate.
type Stats struct {
	Hits         int64
	Misses       int64
	Invalidations int64
	EntryCount   int
	HitRate      float64
}

// Cache is a TTL- and mtime-aware cache of ProjectContext values keyed by
// project root path. The zero value is not usable; construct with New.
type Cache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]entry

	hits          int64
	misses        int64
	invalidations int64

	now func() time.Time
}

// New constructs a Cache with the given time-to-live applied to every
// entry set through Set.
func New(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Get returns the cached ProjectContext for root, or (zero, false) on a
// miss. A miss occurs when there is no entry, the entry's TTL has
// expired, or currentMtimes differs from the mtimes captured at Set time
// (different cardinality, a missing tracked file, or any tracked file
// with a newer mtime). An expiring or stale entry is invalidated as a
// side effect of the lookup. Stats are updated on every call.
func (c *Cache) Get(root string, currentMtimes FileMtimes) (ProjectContext, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[root]
	if !ok {
		c.misses++
		return ProjectContext{}, false
	}

	now := c.now()
	if now.After(e.expiresAt) {
		delete(c.entries, root)
		c.invalidations++
		c.misses++
		slog.Debug("cache entry expired", "root", root)
		return ProjectContext{}, false
	}

	if !mtimesMatch(e.fileMtimes, currentMtimes) {
		delete(c.entries, root)
		c.invalidations++
		c.misses++
		slog.Debug("cache entry stale, mtimes changed", "root", root)
		return ProjectContext{}, false
	}

	c.hits++
	return e.data, true
}

// mtimesMatch reports whether current is consistent with cached: same
// cardinality, and every file tracked in cached is present in current
// with an mtime no newer than the cached one.
func mtimesMatch(cached, current FileMtimes) bool {
	if len(cached) != len(current) {
		return false
	}
	for path, cachedMtime := range cached {
		currentMtime, ok := current[path]
		if !ok {
			return false
		}
		if currentMtime.After(cachedMtime) {
			return false
		}
	}
	return true
}

// Set overwrites (or creates) the cache entry for root.
func (c *Cache) Set(root string, ctx ProjectContext, mtimes FileMtimes) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	captured := make(FileMtimes, len(mtimes))
	for k, v := range mtimes {
		captured[k] = v
	}
	c.entries[root] = entry{
		data:       ctx,
		createdAt:  now,
		expiresAt:  now.Add(c.ttl),
		fileMtimes: captured,
	}
}

// Invalidate drops the entry for root, if any, and counts it.
func (c *Cache) Invalidate(root string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[root]; ok {
		delete(c.entries, root)
		c.invalidations++
		slog.Debug("cache entry invalidated", "root", root)
	}
}

// Clear removes all entries without affecting hit/miss/invalidation
// counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

// Stats returns a snapshot of cumulative cache statistics.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := c.hits + c.misses
	var rate float64
	if total > 0 {
		rate = float64(c.hits) / float64(total) * 100
	}
	return Stats{
		Hits:          c.hits,
		Misses:        c.misses,
		Invalidations: c.invalidations,
		EntryCount:    len(c.entries),
		HitRate:       rate,
	}
}
