// Package engine implements the storage engine orchestrator: the
// top-level API that ties the codecs, block container, tiered block
// manager, sharded inverted index, and sharded write pipeline into one
// component, exposing init/write/write_async/read/query/label_names/
// label_values/delete_series/flush/compact/close/stats.
package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/arloliu/tsdbcore/block"
	"github.com/arloliu/tsdbcore/config"
	"github.com/arloliu/tsdbcore/errs"
	"github.com/arloliu/tsdbcore/index"
	"github.com/arloliu/tsdbcore/internal/hash"
	"github.com/arloliu/tsdbcore/logging"
	"github.com/arloliu/tsdbcore/model"
	"github.com/arloliu/tsdbcore/pipeline"
	"github.com/arloliu/tsdbcore/tiered"
)

// SeriesResult pairs a series' labels with the samples a query matched.
type SeriesResult struct {
	Labels  model.LabelSet
	Samples []model.Sample
}

// Stats summarizes engine state for monitoring.
type Stats struct {
	NumShards   int
	NumSeries   int
	Collisions  int
	QueueDepths []int

	// Pipeline holds each write-pipeline shard's successful/failed/
	// dropped-write counters, retry count, and consecutive-failure health
	// flag.
	Pipeline []pipeline.ShardMetrics

	// Index holds the sharded inverted index's aggregated add/lookup/
	// intersect counters.
	Index index.Snapshot

	// Codec holds per-codec compression diagnostics aggregated across
	// every shard's open and sealed blocks.
	Codec block.CodecStats
}

// Engine is the storage engine orchestrator. It owns N shards, each with
// its own index.Shard (fanned out through a shared index.ShardedIndex),
// tiered.Manager, and series map, plus a pipeline.Pipeline for queued
// asynchronous writes. The zero value is not usable; build one with New.
type Engine struct {
	cfg *config.Config
	log *logging.Logger

	mu          sync.Mutex
	initialized bool
	closed      bool

	allocMu sync.Mutex
	alloc   *model.IDAllocator

	idx    *index.ShardedIndex
	shards []*shard
	pipe   *pipeline.Pipeline

	ctx    context.Context
	cancel context.CancelFunc
}

// New allocates an Engine bound to cfg and log. Call Init before any other
// method. A nil log defaults to a no-op logger.
func New(cfg *config.Config, log *logging.Logger) *Engine {
	if log == nil {
		log = logging.Nop()
	}

	return &Engine{
		cfg:   cfg,
		log:   log.With("engine"),
		alloc: model.NewIDAllocator(),
	}
}

// Init creates the on-disk tier directories for every shard, builds the
// sharded index, and starts the write pipeline's worker pool. Returns
// errs.ErrAlreadyInitialized on a second call rather than silently no-oping.
func (e *Engine) Init() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initialized {
		return errs.ErrAlreadyInitialized
	}
	if e.cfg == nil || e.cfg.DataDir == "" || e.cfg.NumShards <= 0 {
		return errs.ErrInvalidArgument
	}

	e.idx = index.NewShardedIndex(e.cfg.NumShards)
	e.shards = make([]*shard, e.cfg.NumShards)
	for i := 0; i < e.cfg.NumShards; i++ {
		mgr, err := tiered.New(filepath.Join(e.cfg.DataDir, fmt.Sprintf("shard-%d", i)))
		if err != nil {
			return err
		}
		e.shards[i] = newShard(i, e.cfg, e.log, e.idx, mgr, &e.allocMu, e.alloc)
	}

	e.ctx, e.cancel = context.WithCancel(context.Background())

	pcfg := pipeline.Config{
		NumShards:          e.cfg.NumShards,
		QueueSize:          e.cfg.QueueSize,
		BatchSize:          e.cfg.BatchSize,
		NumWorkers:         e.cfg.NumWorkers,
		FlushInterval:      e.cfg.FlushInterval,
		RetryDelay:         e.cfg.RetryDelay,
		MaxRetries:         e.cfg.MaxRetries,
		UnhealthyThreshold: e.cfg.UnhealthyThreshold,
	}
	e.pipe = pipeline.New(pcfg, func(i int) pipeline.ShardStorage { return e.shards[i] }, e.log)
	e.pipe.Start(e.ctx)

	e.initialized = true

	return nil
}

func (e *Engine) requireReady() error {
	if !e.initialized {
		return errs.ErrNotInitialized
	}
	if e.closed {
		return errs.ErrShutdown
	}

	return nil
}

// shardIndexFor routes labels to a shard by the same hash used for
// SeriesID derivation (internal/hash.ID over the canonical label string),
// shared with pipeline.Pipeline.shardFor so a synchronous Write and a
// WriteAsync submission for the same series always land in the same
// shard's series map and index.Shard.
func (e *Engine) shardIndexFor(labels model.LabelSet) int {
	return int(hash.ID(labels.Canonical()) % uint64(len(e.shards))) //nolint:gosec
}

// Write appends sample to the series identified by labels, creating the
// series on first sight, and synchronously rotates the open block if a
// seal predicate trips.
func (e *Engine) Write(labels model.LabelSet, sample model.Sample) error {
	if err := e.requireReady(); err != nil {
		return err
	}

	return e.shards[e.shardIndexFor(labels)].Write(labels, sample)
}

// WriteAsync enqueues sample on the sharded write pipeline and returns
// once it is queued, not once it is durable. cb, if non-nil, is invoked
// exactly once with the write's terminal outcome once a worker has
// attempted it (nil on success, the last error once retries are
// exhausted) — the single observable completion point for an async
// write. Returns errs.ErrQueueFull under backpressure, in which case cb is
// never invoked since the write never reached a worker.
func (e *Engine) WriteAsync(labels model.LabelSet, sample model.Sample, cb pipeline.WriteCallback) error {
	if err := e.requireReady(); err != nil {
		return err
	}

	return e.pipe.Submit(labels, sample, cb)
}

// Read returns every sample for labels in [tLo, tHi], in time order.
// Returns errs.ErrNotFound if no series with exactly these labels exists.
func (e *Engine) Read(labels model.LabelSet, tLo, tHi int64) ([]model.Sample, error) {
	if err := e.requireReady(); err != nil {
		return nil, err
	}
	if tLo > tHi {
		return nil, errs.ErrInvalidArgument
	}

	e.allocMu.Lock()
	id, ok := e.alloc.Find(labels)
	e.allocMu.Unlock()
	if !ok {
		return nil, errs.ErrNotFound
	}

	return e.shards[e.shardIndexFor(labels)].read(id, tLo, tHi)
}

// Query resolves every series matching matchers, reads each in [tLo, tHi],
// and drops series with no samples in range.
func (e *Engine) Query(ctx context.Context, matchers []model.Matcher, tLo, tHi int64) ([]SeriesResult, error) {
	if err := e.requireReady(); err != nil {
		return nil, err
	}
	if tLo > tHi {
		return nil, errs.ErrInvalidArgument
	}

	found, err := e.idx.FindWithLabels(ctx, matchers)
	if err != nil {
		return nil, err
	}

	out := make([]SeriesResult, 0, len(found))
	for _, sw := range found {
		shardIdx := e.shardIndexFor(sw.Labels)
		samples, err := e.shards[shardIdx].read(sw.ID, tLo, tHi)
		if err != nil {
			if err == errs.ErrNotFound {
				continue
			}

			return nil, err
		}
		if len(samples) == 0 {
			continue
		}
		out = append(out, SeriesResult{Labels: sw.Labels, Samples: samples})
	}

	return out, nil
}

// LabelNames returns every distinct label name present across all series,
// sorted.
func (e *Engine) LabelNames(ctx context.Context) ([]string, error) {
	if err := e.requireReady(); err != nil {
		return nil, err
	}

	all, err := e.idx.FindWithLabels(ctx, nil)
	if err != nil {
		return nil, err
	}

	set := make(map[string]struct{})
	for _, sw := range all {
		for _, l := range sw.Labels.Labels() {
			set[l.Name] = struct{}{}
		}
	}

	return sortedKeys(set), nil
}

// LabelValues returns every distinct value seen for name, sorted.
func (e *Engine) LabelValues(ctx context.Context, name string) ([]string, error) {
	if err := e.requireReady(); err != nil {
		return nil, err
	}

	all, err := e.idx.FindWithLabels(ctx, nil)
	if err != nil {
		return nil, err
	}

	set := make(map[string]struct{})
	for _, sw := range all {
		if v, ok := sw.Labels.Get(name); ok {
			set[v] = struct{}{}
		}
	}

	return sortedKeys(set), nil
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)

	return out
}

// DeleteSeries removes every series matching matchers: its blocks, index
// entry, and series-ID registration.
func (e *Engine) DeleteSeries(ctx context.Context, matchers []model.Matcher) error {
	if err := e.requireReady(); err != nil {
		return err
	}

	found, err := e.idx.FindWithLabels(ctx, matchers)
	if err != nil {
		return err
	}

	for _, sw := range found {
		shardIdx := e.shardIndexFor(sw.Labels)
		if err := e.shards[shardIdx].delete(sw.ID); err != nil && err != errs.ErrNotFound {
			return err
		}
	}

	return nil
}

// Flush seals every shard's open blocks, making all previously written
// samples durable.
func (e *Engine) Flush() error {
	if err := e.requireReady(); err != nil {
		return err
	}

	for _, s := range e.shards {
		if err := s.Flush(); err != nil {
			return err
		}
	}

	return nil
}

// Compact demotes HOT blocks the access tracker has not seen read within
// cfg.DemotionMaxAge into WARM, then merges sealed blocks per series within
// each shard's WARM tier, using the tier manager's compaction candidates
// and cfg.CompactionThresholdBlocks; cfg.CompactionThresholdRatio is not
// consulted (block_manager.h: the engine, not the manager, owns the
// per-series block-ordering invariant a merge must not violate).
func (e *Engine) Compact() error {
	if err := e.requireReady(); err != nil {
		return err
	}

	for _, s := range e.shards {
		if _, err := s.manager.DemoteCold(tiered.TierHot, time.Now(), e.cfg.DemotionMaxAge, 0); err != nil {
			return err
		}
	}

	for _, s := range e.shards {
		if err := s.compactTier(tiered.TierWarm, e.cfg.CompactionThresholdBlocks); err != nil {
			return err
		}
	}

	return nil
}

// Close stops the write pipeline and marks the engine shut down. Further
// calls to any other method return errs.ErrShutdown. Idempotent.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	if e.pipe != nil {
		e.pipe.Shutdown()
	}
	if e.cancel != nil {
		e.cancel()
	}
	e.closed = true

	return nil
}

// Stats reports engine-wide counters.
func (e *Engine) Stats() Stats {
	st := Stats{NumShards: len(e.shards)}

	e.allocMu.Lock()
	st.Collisions = e.alloc.Collisions()
	e.allocMu.Unlock()

	for _, s := range e.shards {
		st.NumSeries += s.numSeries()
		st.Codec.Add(s.CodecStats())
	}
	if e.pipe != nil {
		st.QueueDepths = e.pipe.QueueDepths()
		st.Pipeline = e.pipe.Metrics()
	}
	if e.idx != nil {
		st.Index = e.idx.Metrics()
	}

	return st
}
