// Package index implements the inverted index: a single shard holding
// postings plus a forward table under one reader-writer lock, with
// equality-first matcher evaluation and intersect-for-AND semantics, and a
// sharded fan-out layer across many such shards. Posting lists use
// github.com/RoaringBitmap/roaring/v2/roaring64 (64-bit variant, since
// SeriesID is a uint64).
package index

import (
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/arloliu/tsdbcore/model"
)

type labelPair struct {
	name  string
	value string
}

// Shard holds one partition of the inverted index: postings keyed by
// (labelName, labelValue), and a forward SeriesID → LabelSet table, both
// guarded by a single reader-writer lock (index.cpp's Index class).
type Shard struct {
	mu       sync.RWMutex
	postings map[labelPair]*roaring64.Bitmap
	forward  map[model.SeriesID]model.LabelSet

	metrics Metrics
}

// NewShard creates an empty index shard.
func NewShard() *Shard {
	return &Shard{
		postings: make(map[labelPair]*roaring64.Bitmap),
		forward:  make(map[model.SeriesID]model.LabelSet),
	}
}

// Metrics returns a point-in-time snapshot of this shard's aggregated
// add/lookup/intersect counters.
func (s *Shard) Metrics() Snapshot {
	return s.metrics.snapshot()
}

// ResetMetrics zeroes this shard's counters.
func (s *Shard) ResetMetrics() {
	s.metrics.Reset()
}

// Add inserts id into each of labels' posting lists and records the forward
// entry. O(L) where L = |labels|.
func (s *Shard) Add(id model.SeriesID, labels model.LabelSet) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics.Adds.Inc()

	for _, l := range labels.Labels() {
		key := labelPair{name: l.Name, value: l.Value}
		bm, ok := s.postings[key]
		if !ok {
			bm = roaring64.New()
			s.postings[key] = bm
		}
		bm.Add(uint64(id))
	}
	s.forward[id] = labels
}

// Remove erases id from every posting list it belongs to (pruning
// now-empty lists) and removes its forward entry.
func (s *Shard) Remove(id model.SeriesID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	labels, ok := s.forward[id]
	if !ok {
		return
	}

	for _, l := range labels.Labels() {
		key := labelPair{name: l.Name, value: l.Value}
		bm, ok := s.postings[key]
		if !ok {
			continue
		}
		bm.Remove(uint64(id))
		if bm.IsEmpty() {
			delete(s.postings, key)
		}
	}
	delete(s.forward, id)
}

// GetLabels returns the LabelSet registered for id.
func (s *Shard) GetLabels(id model.SeriesID) (model.LabelSet, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ls, ok := s.forward[id]

	return ls, ok
}

// Find returns the SeriesIDs matching every matcher: equality matchers
// intersect via posting lists first (tightest selection first when
// candidate sets are already available), then non-equality matchers
// (NotEqual, Regex, RegexNoMatch) are applied as a post-filter over the
// forward table restricted to the intersected candidate set. With no
// equality matcher, the candidate set starts as the full forward table.
func (s *Shard) Find(matchers []model.Matcher) []model.SeriesID {
	start := time.Now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	defer func() { s.metrics.Lookups.Observe(time.Since(start).Nanoseconds()) }()

	candidates, hasCandidates := s.equalityCandidatesLocked(matchers)
	if !hasCandidates {
		out := make([]model.SeriesID, 0, len(s.forward))
		for id, labels := range s.forward {
			if model.MatchesLabelSet(matchers, labels) {
				out = append(out, id)
			}
		}

		return out
	}

	out := make([]model.SeriesID, 0, len(candidates))
	for _, id := range candidates {
		labels, ok := s.forward[id]
		if !ok {
			continue
		}
		if model.MatchesLabelSet(matchers, labels) {
			out = append(out, id)
		}
	}

	return out
}

// FindWithLabels is Find plus the matched LabelSet, computed in one lock
// acquisition.
func (s *Shard) FindWithLabels(matchers []model.Matcher) []SeriesWithLabels {
	start := time.Now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	defer func() { s.metrics.Lookups.Observe(time.Since(start).Nanoseconds()) }()

	candidates, hasCandidates := s.equalityCandidatesLocked(matchers)
	if !hasCandidates {
		out := make([]SeriesWithLabels, 0, len(s.forward))
		for id, labels := range s.forward {
			if model.MatchesLabelSet(matchers, labels) {
				out = append(out, SeriesWithLabels{ID: id, Labels: labels})
			}
		}

		return out
	}

	out := make([]SeriesWithLabels, 0, len(candidates))
	for _, id := range candidates {
		labels, ok := s.forward[id]
		if !ok {
			continue
		}
		if model.MatchesLabelSet(matchers, labels) {
			out = append(out, SeriesWithLabels{ID: id, Labels: labels})
		}
	}

	return out
}

// SeriesWithLabels pairs a SeriesID with its registered labels.
type SeriesWithLabels struct {
	ID     model.SeriesID
	Labels model.LabelSet
}

// equalityCandidatesLocked intersects posting lists for every equality
// matcher, returning (nil, false) if no equality matcher is present. Caller
// must hold s.mu (read or write).
func (s *Shard) equalityCandidatesLocked(matchers []model.Matcher) ([]model.SeriesID, bool) {
	var result *roaring64.Bitmap
	var intersections int

	start := time.Now()
	defer func() {
		if intersections > 0 {
			s.metrics.Intersects.Observe(time.Since(start).Nanoseconds())
		}
	}()

	for i := range matchers {
		if !matchers[i].IsEqual() {
			continue
		}
		key := labelPair{name: matchers[i].Name, value: matchers[i].Value}
		bm, ok := s.postings[key]
		if !ok {
			return []model.SeriesID{}, true
		}

		if result == nil {
			result = bm.Clone()
		} else {
			result.And(bm)
			intersections++
		}
	}

	if result == nil {
		return nil, false
	}

	ids := result.ToArray()
	out := make([]model.SeriesID, len(ids))
	for i, id := range ids {
		out[i] = model.SeriesID(id)
	}

	return out, true
}

// Len returns the number of series tracked by this shard.
func (s *Shard) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.forward)
}
