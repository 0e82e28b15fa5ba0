package model

import (
	"github.com/arloliu/tsdbcore/internal/hash"
)

// IDAllocator derives SeriesIDs from label sets and disambiguates hash
// collisions. It must keep returning a usable, total SeriesID even when two
// distinct label sets hash identically, so it walks an open addressing
// sequence over the low bits instead of just flagging the collision.
type IDAllocator struct {
	forward   map[SeriesID]LabelSet
	byLabels  map[string]SeriesID // canonical() -> id, for exact-match lookup
	collision int
}

// NewIDAllocator creates an empty allocator.
func NewIDAllocator() *IDAllocator {
	return &IDAllocator{
		forward:  make(map[SeriesID]LabelSet),
		byLabels: make(map[string]SeriesID),
	}
}

// Allocate returns the SeriesID for labels, creating a new one on first
// sight. Subsequent calls with an equal LabelSet return the same ID.
func (a *IDAllocator) Allocate(labels LabelSet) SeriesID {
	key := labels.Canonical()
	if id, ok := a.byLabels[key]; ok {
		return id
	}

	id := SeriesID(hash.ID(key))
	for {
		existing, occupied := a.forward[id]
		if !occupied {
			break
		}
		if existing.Equal(labels) {
			break
		}
		// Hash collision: two distinct label sets derived the same ID.
		// Perturb deterministically until a free slot is found.
		a.collision++
		id++
	}

	a.forward[id] = labels
	a.byLabels[key] = id

	return id
}

// Find returns the SeriesID already allocated for labels, without
// allocating a new one. Used by read paths that must not create a series
// as a side effect of a lookup.
func (a *IDAllocator) Find(labels LabelSet) (SeriesID, bool) {
	id, ok := a.byLabels[labels.Canonical()]

	return id, ok
}

// Lookup returns the LabelSet registered for id.
func (a *IDAllocator) Lookup(id SeriesID) (LabelSet, bool) {
	ls, ok := a.forward[id]

	return ls, ok
}

// Forget removes id's registration, freeing it for reuse by a future
// collision-disambiguation probe. Callers must ensure no component still
// holds a reference to id before calling this.
func (a *IDAllocator) Forget(id SeriesID) {
	if ls, ok := a.forward[id]; ok {
		delete(a.byLabels, ls.Canonical())
		delete(a.forward, id)
	}
}

// Collisions returns the number of hash collisions disambiguated so far.
func (a *IDAllocator) Collisions() int { return a.collision }

// Len returns the number of series currently tracked.
func (a *IDAllocator) Len() int { return len(a.forward) }
