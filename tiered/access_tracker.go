package tiered

import "sync"

// AccessTracker records each block's access count and last-read timestamp
// under one mutex, consulted by the manager's recency-based demotion rule
// to decide which HOT/WARM blocks have gone cold enough to move down a
// tier. Grounded on original_source's SimpleAccessPatternTracker, which
// tracks the same per-key access-count/last-access-time pair for its own
// promotion/demotion decisions.
type AccessTracker struct {
	mu      sync.Mutex
	entries map[BlockID]*accessInfo
}

type accessInfo struct {
	count      int64
	lastAccess int64 // unix nanoseconds
}

// NewAccessTracker creates an empty tracker.
func NewAccessTracker() *AccessTracker {
	return &AccessTracker{entries: make(map[BlockID]*accessInfo)}
}

// RecordAccess registers one read of id at atNano (unix nanoseconds).
func (t *AccessTracker) RecordAccess(id BlockID, atNano int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	info, ok := t.entries[id]
	if !ok {
		info = &accessInfo{}
		t.entries[id] = info
	}
	info.count++
	info.lastAccess = atNano
}

// LastAccess returns the unix-nanosecond timestamp of id's most recent
// recorded access. ok is false if id has never been recorded.
func (t *AccessTracker) LastAccess(id BlockID) (int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	info, ok := t.entries[id]
	if !ok {
		return 0, false
	}

	return info.lastAccess, true
}

// AccessCount returns how many times id has been recorded as read.
func (t *AccessTracker) AccessCount(id BlockID) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	info, ok := t.entries[id]
	if !ok {
		return 0
	}

	return info.count
}

// Forget drops id's tracked state, called when its block is removed so the
// map does not grow unbounded across a series' lifetime.
func (t *AccessTracker) Forget(id BlockID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, id)
}

// ColdBlocks is the tracker's recency-based demotion rule: it returns every
// id in candidates that has never been recorded, or whose last recorded
// access is at least maxAgeNanos before nowNano. Callers after a different
// policy (e.g. access-count-based) can instead read LastAccess/AccessCount
// directly and apply their own predicate over candidates.
func (t *AccessTracker) ColdBlocks(candidates []BlockID, nowNano, maxAgeNanos int64) []BlockID {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]BlockID, 0, len(candidates))
	for _, id := range candidates {
		info, ok := t.entries[id]
		if !ok || nowNano-info.lastAccess >= maxAgeNanos {
			out = append(out, id)
		}
	}

	return out
}

// Len returns the number of blocks currently tracked.
func (t *AccessTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.entries)
}
