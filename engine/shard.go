package engine

import (
	"sort"
	"sync"
	"time"

	"github.com/arloliu/tsdbcore/block"
	"github.com/arloliu/tsdbcore/config"
	"github.com/arloliu/tsdbcore/errs"
	"github.com/arloliu/tsdbcore/format"
	"github.com/arloliu/tsdbcore/index"
	"github.com/arloliu/tsdbcore/logging"
	"github.com/arloliu/tsdbcore/model"
	"github.com/arloliu/tsdbcore/tiered"
)

// seriesState is one series' mutable write-path state: its labels, the
// currently open (unsealed) block, and the ordered list of sealed blocks
// already handed off to the tier manager. Mirrors the Series entity
// (SeriesID, LabelSet, ordered Blocks, at most one open block).
type seriesState struct {
	mu sync.Mutex

	labels model.LabelSet
	open   *block.Block
	sealed []tiered.BlockID // oldest to newest
}

// shard is one partition of the engine: its own series map, index.Shard,
// and tiered.Manager rooted at a dedicated subdirectory. Holds the
// per-shard state (inverted index, SeriesID->Series map, block manager,
// active block) and implements pipeline.ShardStorage directly, so the same
// write logic serves both Engine.Write (synchronous) and Engine.WriteAsync
// (queued through pipeline.Pipeline).
type shard struct {
	id int

	cfg     *config.Config
	log     *logging.Logger
	idx     *index.ShardedIndex
	manager *tiered.Manager

	allocMu *sync.Mutex // shared with Engine; guards alloc.Allocate/Forget
	alloc   *model.IDAllocator

	seriesMu sync.RWMutex
	series   map[model.SeriesID]*seriesState

	codecMu    sync.Mutex
	codecStats block.CodecStats
}

func newShard(id int, cfg *config.Config, log *logging.Logger, idx *index.ShardedIndex, manager *tiered.Manager, allocMu *sync.Mutex, alloc *model.IDAllocator) *shard {
	return &shard{
		id:      id,
		cfg:     cfg,
		log:     log.WithShard(id),
		idx:     idx,
		manager: manager,
		allocMu: allocMu,
		alloc:   alloc,
		series:  make(map[model.SeriesID]*seriesState),
	}
}

func (s *shard) rotationLimits() block.RotationLimits {
	return block.RotationLimits{
		MaxBlockSize:    int(s.cfg.MaxBlockSize),
		MaxBlockRecords: s.cfg.MaxBlockRecords,
		BlockDurationMS: s.cfg.BlockDuration.Milliseconds(),
	}
}

func (s *shard) codec() format.CompressionType {
	return s.cfg.ValueCompression
}

// Write implements pipeline.ShardStorage: allocate-if-new, append, and
// rotate the open block when a seal predicate trips.
func (s *shard) Write(labels model.LabelSet, sample model.Sample) error {
	if labels.Len() == 0 {
		return errs.ErrInvalidArgument
	}

	s.allocMu.Lock()
	id := s.alloc.Allocate(labels)
	s.allocMu.Unlock()

	st := s.getOrCreateSeries(id, labels)

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.open == nil {
		st.open = block.New(id, labels, sample.Timestamp, s.codec())
	}

	if err := st.open.Append(sample); err != nil {
		return err
	}

	if st.open.ShouldSeal(s.rotationLimits(), time.Now().UnixMilli()) {
		if err := s.sealLocked(id, st); err != nil {
			return err
		}
	}

	return nil
}

func (s *shard) getOrCreateSeries(id model.SeriesID, labels model.LabelSet) *seriesState {
	s.seriesMu.RLock()
	st, ok := s.series[id]
	s.seriesMu.RUnlock()
	if ok {
		return st
	}

	s.seriesMu.Lock()
	defer s.seriesMu.Unlock()
	if st, ok := s.series[id]; ok {
		return st
	}

	s.idx.AddAt(s.id, id, labels)
	st = &seriesState{labels: labels}
	s.series[id] = st

	return st
}

// sealLocked seals st's open block, registers and persists it via the tier
// manager, and clears the open slot. Caller must hold st.mu.
func (s *shard) sealLocked(id model.SeriesID, st *seriesState) error {
	blk := st.open
	if err := blk.Seal(); err != nil {
		return err
	}

	bid := tiered.BlockID{SeriesID: id, StartTime: blk.StartTime()}
	if err := s.manager.Create(bid, blk.StartTime(), blk.EndTime()); err != nil {
		return err
	}
	if err := s.manager.Write(bid, blk.Bytes()); err != nil {
		return err
	}

	s.codecMu.Lock()
	s.codecStats.Add(blk.CodecStats())
	s.codecMu.Unlock()

	st.sealed = append(st.sealed, bid)
	st.open = nil

	return nil
}

// CodecStats returns this shard's running total of per-codec diagnostics
// across every block it has sealed.
func (s *shard) CodecStats() block.CodecStats {
	s.codecMu.Lock()
	defer s.codecMu.Unlock()

	return s.codecStats
}

// flushSeries seals st's open block unconditionally, making every
// in-memory write durable. No-op if nothing is open.
func (s *shard) flushSeries(id model.SeriesID, st *seriesState) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.open == nil || st.open.NumSamples() == 0 {
		return nil
	}

	return s.sealLocked(id, st)
}

// Flush seals every open block with at least one sample across the shard.
func (s *shard) Flush() error {
	s.seriesMu.RLock()
	ids := make([]model.SeriesID, 0, len(s.series))
	states := make([]*seriesState, 0, len(s.series))
	for id, st := range s.series {
		ids = append(ids, id)
		states = append(states, st)
	}
	s.seriesMu.RUnlock()

	for i, id := range ids {
		if err := s.flushSeries(id, states[i]); err != nil {
			return err
		}
	}

	return nil
}

// read decodes every sample for id in [tLo, tHi], across sealed blocks that
// overlap the range plus the open block, in time order.
func (s *shard) read(id model.SeriesID, tLo, tHi int64) ([]model.Sample, error) {
	s.seriesMu.RLock()
	st, ok := s.series[id]
	s.seriesMu.RUnlock()
	if !ok {
		return nil, errs.ErrNotFound
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	var out []model.Sample
	for _, bid := range st.sealed {
		if bid.StartTime > tHi {
			continue
		}
		data, err := s.manager.Read(bid)
		if err != nil {
			return nil, err
		}
		blk, err := block.Open(data, id, st.labels, s.codec())
		if err != nil {
			return nil, err
		}
		if blk.EndTime() < tLo || blk.StartTime() > tHi {
			continue
		}
		samples, err := blk.Read()
		if err != nil {
			return nil, err
		}
		out = appendInRange(out, samples, tLo, tHi)
	}

	if st.open != nil {
		out = appendInRange(out, st.open.Samples(), tLo, tHi)
	}

	return out, nil
}

func appendInRange(dst []model.Sample, src []model.Sample, tLo, tHi int64) []model.Sample {
	for _, sm := range src {
		if sm.Timestamp >= tLo && sm.Timestamp <= tHi {
			dst = append(dst, sm)
		}
	}

	return dst
}

// delete removes id from the shard entirely: every sealed block is removed
// from the tier manager, the index entry is dropped, and the series map
// entry is forgotten.
func (s *shard) delete(id model.SeriesID) error {
	s.seriesMu.Lock()
	st, ok := s.series[id]
	if ok {
		delete(s.series, id)
	}
	s.seriesMu.Unlock()
	if !ok {
		return errs.ErrNotFound
	}

	st.mu.Lock()
	sealed := st.sealed
	st.mu.Unlock()

	for _, bid := range sealed {
		if err := s.manager.Remove(bid); err != nil && err != errs.ErrNotFound {
			return err
		}
	}

	s.idx.RemoveAt(s.id, id)

	s.allocMu.Lock()
	s.alloc.Forget(id)
	s.allocMu.Unlock()

	return nil
}

// compactTier groups tier t's blocks by series and merges any group of at
// least thresholdBlocks into one block, per the tier manager's candidate
// selection (block_manager.h: the manager only surfaces candidates, the
// engine performs the decode-merge-reencode since it alone holds each
// series' block-ordering invariant).
func (s *shard) compactTier(t tiered.Tier, thresholdBlocks int) error {
	if thresholdBlocks <= 0 {
		thresholdBlocks = 2
	}

	candidates := s.manager.CompactionCandidates(t, 0)
	if len(candidates) == 0 {
		return nil
	}

	bySeries := make(map[model.SeriesID][]tiered.BlockID)
	for _, bid := range candidates {
		bySeries[bid.SeriesID] = append(bySeries[bid.SeriesID], bid)
	}

	for id, group := range bySeries {
		if len(group) < thresholdBlocks {
			continue
		}
		sort.Slice(group, func(i, j int) bool { return group[i].StartTime < group[j].StartTime })
		if err := s.mergeBlocks(id, t, group); err != nil {
			return err
		}
	}

	return nil
}

// mergeBlocks decodes every block in group (already sorted oldest to
// newest), concatenates their samples, reseals the result as one block in
// tier t, and updates the series' sealed-block list accordingly.
func (s *shard) mergeBlocks(id model.SeriesID, t tiered.Tier, group []tiered.BlockID) error {
	s.seriesMu.RLock()
	st, ok := s.series[id]
	s.seriesMu.RUnlock()
	if !ok {
		return nil
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	var merged []model.Sample
	for _, bid := range group {
		data, err := s.manager.Read(bid)
		if err != nil {
			return err
		}
		blk, err := block.Open(data, id, st.labels, s.codec())
		if err != nil {
			return err
		}
		samples, err := blk.Read()
		if err != nil {
			return err
		}
		merged = append(merged, samples...)
	}
	if len(merged) == 0 {
		return nil
	}

	newBlock := block.New(id, st.labels, merged[0].Timestamp, s.codec())
	for _, sm := range merged {
		if err := newBlock.Append(sm); err != nil {
			return err
		}
	}
	if err := newBlock.Seal(); err != nil {
		return err
	}

	s.codecMu.Lock()
	s.codecStats.Add(newBlock.CodecStats())
	s.codecMu.Unlock()

	newID := tiered.BlockID{SeriesID: id, StartTime: newBlock.StartTime()}
	if err := s.manager.Create(newID, newBlock.StartTime(), newBlock.EndTime()); err != nil {
		return err
	}
	if err := s.manager.Write(newID, newBlock.Bytes()); err != nil {
		return err
	}
	for cur := tiered.TierHot; cur < t; cur++ {
		if err := s.manager.Demote(newID); err != nil {
			return err
		}
	}

	oldSet := make(map[tiered.BlockID]bool, len(group))
	for _, bid := range group {
		oldSet[bid] = true
	}
	newSealed := make([]tiered.BlockID, 0, len(st.sealed)-len(group)+1)
	replaced := false
	for _, bid := range st.sealed {
		if oldSet[bid] {
			if !replaced {
				newSealed = append(newSealed, newID)
				replaced = true
			}

			continue
		}
		newSealed = append(newSealed, bid)
	}
	st.sealed = newSealed

	for _, bid := range group {
		if bid == newID {
			continue
		}
		if err := s.manager.Remove(bid); err != nil && err != errs.ErrNotFound {
			return err
		}
	}

	return nil
}

// numSeries returns the number of series currently tracked by the shard.
func (s *shard) numSeries() int {
	s.seriesMu.RLock()
	defer s.seriesMu.RUnlock()

	return len(s.series)
}
