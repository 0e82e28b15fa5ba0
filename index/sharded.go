package index

import (
	"context"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"

	"github.com/arloliu/tsdbcore/model"
)

// ShardedIndex fans out over N Shards, routing series by id mod N, with a
// scatter/gather contract for queries. Parallel shard queries use
// golang.org/x/sync/errgroup for bounded fan-out over a fixed partition
// count.
type ShardedIndex struct {
	shards []*Shard

	// namePresence maps a "__name__" label value to the set of shard
	// indices (as a 32-bit roaring bitmap) holding at least one series
	// with that name, giving O(1) pruning for name-equality queries
	// instead of scattering to every shard.
	namePresence *shardPresence
}

// NewShardedIndex creates a ShardedIndex with n shards.
func NewShardedIndex(n int) *ShardedIndex {
	if n <= 0 {
		n = 1
	}

	si := &ShardedIndex{
		shards:       make([]*Shard, n),
		namePresence: newShardPresence(),
	}
	for i := range si.shards {
		si.shards[i] = NewShard()
	}

	return si
}

const metricNameLabel = "__name__"

func (si *ShardedIndex) shardIndex(id model.SeriesID) int {
	return int(uint64(id) % uint64(len(si.shards))) //nolint:gosec
}

// IndexFor returns the shard index id routes to under Add/Remove's id mod N
// routing. engine.Engine does not use it: the engine routes by label hash
// and places index entries itself with AddAt.
func (si *ShardedIndex) IndexFor(id model.SeriesID) int {
	return si.shardIndex(id)
}

// Add routes id to its shard by id mod N and records __name__ presence.
func (si *ShardedIndex) Add(id model.SeriesID, labels model.LabelSet) {
	idx := si.shardIndex(id)
	si.shards[idx].Add(id, labels)

	if name, ok := labels.Get(metricNameLabel); ok {
		si.namePresence.mark(name, idx)
	}
}

// Remove routes id to its shard by id mod N and removes it.
func (si *ShardedIndex) Remove(id model.SeriesID) {
	idx := si.shardIndex(id)

	var name string
	var hadName bool
	if labels, ok := si.shards[idx].GetLabels(id); ok {
		name, hadName = labels.Get(metricNameLabel)
	}

	si.shards[idx].Remove(id)

	if hadName {
		if _, stillPresent := si.scanShardForName(idx, name); !stillPresent {
			si.namePresence.unmark(name, idx)
		}
	}
}

// AddAt registers id/labels in shard shardIdx directly, bypassing the
// id-mod-N routing Add performs. engine.Engine uses this so that index
// placement always matches the engine's own label-hash shard routing
// (computed once, before SeriesID allocation, and shared with the write
// pipeline) rather than a second, potentially divergent formula.
func (si *ShardedIndex) AddAt(shardIdx int, id model.SeriesID, labels model.LabelSet) {
	si.shards[shardIdx].Add(id, labels)

	if name, ok := labels.Get(metricNameLabel); ok {
		si.namePresence.mark(name, shardIdx)
	}
}

// RemoveAt removes id from shard shardIdx directly, the AddAt counterpart.
func (si *ShardedIndex) RemoveAt(shardIdx int, id model.SeriesID) {
	var name string
	var hadName bool
	if labels, ok := si.shards[shardIdx].GetLabels(id); ok {
		name, hadName = labels.Get(metricNameLabel)
	}

	si.shards[shardIdx].Remove(id)

	if hadName {
		if _, stillPresent := si.scanShardForName(shardIdx, name); !stillPresent {
			si.namePresence.unmark(name, shardIdx)
		}
	}
}

func (si *ShardedIndex) scanShardForName(idx int, name string) (model.SeriesID, bool) {
	matches := si.shards[idx].Find([]model.Matcher{model.NewMatcher(model.MatchEqual, metricNameLabel, name)})
	if len(matches) == 0 {
		return 0, false
	}

	return matches[0], true
}

// shardsForQuery narrows the candidate shard set using the name-presence
// bitmap when an equality matcher on __name__ is present; otherwise every
// shard is a candidate.
func (si *ShardedIndex) shardsForQuery(matchers []model.Matcher) []int {
	for i := range matchers {
		if matchers[i].Name == metricNameLabel && matchers[i].IsEqual() {
			return si.namePresence.shardsFor(matchers[i].Value)
		}
	}

	all := make([]int, len(si.shards))
	for i := range all {
		all[i] = i
	}

	return all
}

// Find scatters matchers across the candidate shards in parallel and
// gathers the union of matching SeriesIDs.
func (si *ShardedIndex) Find(ctx context.Context, matchers []model.Matcher) ([]model.SeriesID, error) {
	shardIdx := si.shardsForQuery(matchers)
	results := make([][]model.SeriesID, len(shardIdx))

	g, _ := errgroup.WithContext(ctx)
	for i, idx := range shardIdx {
		i, idx := i, idx
		g.Go(func() error {
			results[i] = si.shards[idx].Find(matchers)

			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var total int
	for _, r := range results {
		total += len(r)
	}
	out := make([]model.SeriesID, 0, total)
	for _, r := range results {
		out = append(out, r...)
	}

	return out, nil
}

// FindWithLabels is Find plus each series' LabelSet, gathered in the same
// scatter/gather pass.
func (si *ShardedIndex) FindWithLabels(ctx context.Context, matchers []model.Matcher) ([]SeriesWithLabels, error) {
	shardIdx := si.shardsForQuery(matchers)
	results := make([][]SeriesWithLabels, len(shardIdx))

	g, _ := errgroup.WithContext(ctx)
	for i, idx := range shardIdx {
		i, idx := i, idx
		g.Go(func() error {
			results[i] = si.shards[idx].FindWithLabels(matchers)

			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var total int
	for _, r := range results {
		total += len(r)
	}
	out := make([]SeriesWithLabels, 0, total)
	for _, r := range results {
		out = append(out, r...)
	}

	return out, nil
}

// GetLabels routes id to its shard and returns its registered labels.
func (si *ShardedIndex) GetLabels(id model.SeriesID) (model.LabelSet, bool) {
	return si.shards[si.shardIndex(id)].GetLabels(id)
}

// NumShards returns the number of shards.
func (si *ShardedIndex) NumShards() int { return len(si.shards) }

// Metrics aggregates every shard's add/lookup/intersect counters into one
// snapshot.
func (si *ShardedIndex) Metrics() Snapshot {
	var agg Snapshot
	for _, sh := range si.shards {
		snap := sh.Metrics()
		agg.AddCount += snap.AddCount
		agg.LookupCount += snap.LookupCount
		agg.LookupTotalNS += snap.LookupTotalNS
		agg.IntersectCount += snap.IntersectCount
		agg.IntersectTotalNS += snap.IntersectTotalNS
	}

	return agg
}

// ResetMetrics atomically zeroes every shard's counters.
func (si *ShardedIndex) ResetMetrics() {
	for _, sh := range si.shards {
		sh.ResetMetrics()
	}
}

// shardPresence tracks, per metric name, which shards hold at least one
// series with that name.
type shardPresence struct {
	mu     sync.RWMutex
	byName map[string]*roaring.Bitmap
}

func newShardPresence() *shardPresence {
	return &shardPresence{byName: make(map[string]*roaring.Bitmap)}
}

func (p *shardPresence) mark(name string, shardIdx int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	bm, ok := p.byName[name]
	if !ok {
		bm = roaring.New()
		p.byName[name] = bm
	}
	bm.Add(uint32(shardIdx)) //nolint:gosec
}

func (p *shardPresence) unmark(name string, shardIdx int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	bm, ok := p.byName[name]
	if !ok {
		return
	}
	bm.Remove(uint32(shardIdx)) //nolint:gosec
	if bm.IsEmpty() {
		delete(p.byName, name)
	}
}

func (p *shardPresence) shardsFor(name string) []int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	bm, ok := p.byName[name]
	if !ok {
		return nil
	}
	arr := bm.ToArray()
	out := make([]int, len(arr))
	for i, v := range arr {
		out[i] = int(v)
	}

	return out
}
