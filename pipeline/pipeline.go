// Package pipeline implements the sharded write pipeline: N storage
// shards, each fed by a bounded queue.Queue, drained by a worker pool that
// batches ingested samples before handing them to the storage shard.
// Worker sizing is config-driven (config.Config's NumShards/QueueSize/
// BatchSize/NumWorkers/FlushInterval), with retry-with-backoff for
// transient shard errors using github.com/cenkalti/backoff/v4. Every
// queued op carries a callback invoked exactly once with its terminal
// outcome, the single observable completion point for an async write.
package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/arloliu/tsdbcore/errs"
	"github.com/arloliu/tsdbcore/internal/hash"
	"github.com/arloliu/tsdbcore/logging"
	"github.com/arloliu/tsdbcore/metrics"
	"github.com/arloliu/tsdbcore/model"
	"github.com/arloliu/tsdbcore/queue"
)

// WriteCallback reports the terminal outcome of one queued write: nil on
// success, or the last error observed once retries are exhausted.
type WriteCallback func(error)

// WriteOp is one unit of pipeline work: append a sample to a series,
// creating the series on first sight. Retry is carried for logging/debugging
// only: the pipeline never requeues an op and never updates Retry, since
// retries run in place inside the worker and are counted by the shard's
// RetryCount metric.
type WriteOp struct {
	Labels    model.LabelSet
	Sample    model.Sample
	Callback  WriteCallback
	Timestamp int64
	Retry     int
}

// ShardStorage is the per-shard storage target the pipeline drains into.
// The engine's per-shard storage type implements this.
type ShardStorage interface {
	Write(labels model.LabelSet, sample model.Sample) error
}

// Config controls pipeline sizing and retry behavior (mirrors
// config.Config's pipeline fields; kept independent of the config package
// to avoid an import cycle between pipeline and engine-level config
// consumers).
type Config struct {
	NumShards          int
	QueueSize          int
	BatchSize          int
	NumWorkers         int
	FlushInterval      time.Duration
	RetryDelay         time.Duration
	MaxRetries         int
	UnhealthyThreshold int // consecutive storage failures before a shard reports unhealthy
}

// shardMetrics holds one shard's write-outcome counters: the S6/S8
// successful_writes/failed_writes/dropped_writes/retry_count counters.
type shardMetrics struct {
	successfulWrites metrics.Counter
	failedWrites     metrics.Counter
	droppedWrites    metrics.Counter
	retryCount       metrics.Counter
}

// ShardMetrics is a point-in-time snapshot of one shard's write outcomes
// and health, exposed through Pipeline.Metrics for engine.Engine.Stats.
type ShardMetrics struct {
	ShardID          int
	SuccessfulWrites int64
	FailedWrites     int64
	DroppedWrites    int64
	RetryCount       int64
	Healthy          bool
}

// SuccessRate returns SuccessfulWrites as a fraction of every write this
// shard has seen (successful + failed + dropped). Returns 1 if the shard
// has not seen any writes yet.
func (m ShardMetrics) SuccessRate() float64 {
	total := m.SuccessfulWrites + m.FailedWrites + m.DroppedWrites
	if total == 0 {
		return 1
	}

	return float64(m.SuccessfulWrites) / float64(total)
}

// shard owns one queue and one or more worker goroutines draining it into a
// ShardStorage.
type shard struct {
	id      int
	q       *queue.Queue[WriteOp]
	storage ShardStorage
	cfg     Config
	log     *logging.Logger

	metrics             shardMetrics
	consecutiveFailures atomic.Int64
	healthy             atomic.Bool

	stopCh chan struct{}
	doneCh chan struct{}
}

// Pipeline routes writes to N shards by hash(labels) % N, each independently
// queued and drained.
type Pipeline struct {
	shards []*shard
	log    *logging.Logger
}

// New creates a Pipeline with cfg.NumShards shards, each backed by storage
// factory newStorage(shardIndex). Call Start to begin draining.
func New(cfg Config, newStorage func(shardIndex int) ShardStorage, log *logging.Logger) *Pipeline {
	if log == nil {
		log = logging.Nop()
	}
	if cfg.NumShards <= 0 {
		cfg.NumShards = 1
	}

	p := &Pipeline{log: log}
	p.shards = make([]*shard, cfg.NumShards)
	for i := 0; i < cfg.NumShards; i++ {
		s := &shard{
			id:      i,
			q:       queue.New[WriteOp](cfg.QueueSize),
			storage: newStorage(i),
			cfg:     cfg,
			log:     log.WithShard(i),
			stopCh:  make(chan struct{}),
			doneCh:  make(chan struct{}),
		}
		s.healthy.Store(true)
		p.shards[i] = s
	}

	return p
}

// shardFor routes labels to a shard index by the same xxHash64 used for
// SeriesID derivation (internal/hash.ID); in this design the shard index is
// the series' own ID hash modulo N, so sharding and identity intentionally
// coincide.
func (p *Pipeline) shardFor(labels model.LabelSet) *shard {
	idx := hash.ID(labels.Canonical()) % uint64(len(p.shards)) //nolint:gosec

	return p.shards[idx]
}

// Submit enqueues a WriteOp{labels, cb, sample.Timestamp, retry=0} on its
// routed shard. Returns errs.ErrQueueFull under backpressure, counted as a
// dropped write; cb is never invoked in that case since the op never
// entered the queue. A nil cb is fine for callers that don't need
// completion notification.
func (p *Pipeline) Submit(labels model.LabelSet, sample model.Sample, cb WriteCallback) error {
	s := p.shardFor(labels)

	op := WriteOp{Labels: labels, Sample: sample, Callback: cb, Timestamp: sample.Timestamp}
	if err := s.q.Push(op); err != nil {
		s.metrics.droppedWrites.Inc()

		return err
	}

	return nil
}

// Start launches cfg.NumWorkers goroutines per shard, each pulling batches
// of up to cfg.BatchSize ops and flushing on cfg.FlushInterval even if a
// batch is not full.
func (p *Pipeline) Start(ctx context.Context) {
	for _, s := range p.shards {
		workers := s.cfg.NumWorkers
		if workers <= 0 {
			workers = 1
		}
		var wg sync.WaitGroup
		wg.Add(workers)
		for w := 0; w < workers; w++ {
			go func() {
				defer wg.Done()
				s.run(ctx)
			}()
		}
		go func() {
			wg.Wait()
			close(s.doneCh)
		}()
	}
}

// QueueDepths returns the current backlog of each shard's queue, for
// Engine.Stats.
func (p *Pipeline) QueueDepths() []int {
	out := make([]int, len(p.shards))
	for i, s := range p.shards {
		out[i] = s.q.Len()
	}

	return out
}

// Metrics returns a per-shard snapshot of write-outcome counters and
// health, for Engine.Stats.
func (p *Pipeline) Metrics() []ShardMetrics {
	out := make([]ShardMetrics, len(p.shards))
	for i, s := range p.shards {
		out[i] = ShardMetrics{
			ShardID:          s.id,
			SuccessfulWrites: s.metrics.successfulWrites.Value(),
			FailedWrites:     s.metrics.failedWrites.Value(),
			DroppedWrites:    s.metrics.droppedWrites.Value(),
			RetryCount:       s.metrics.retryCount.Value(),
			Healthy:          s.healthy.Load(),
		}
	}

	return out
}

// Shutdown signals every shard worker to stop and waits for drain.
func (p *Pipeline) Shutdown() {
	for _, s := range p.shards {
		close(s.stopCh)
	}
	for _, s := range p.shards {
		<-s.doneCh
	}
}

func (s *shard) run(ctx context.Context) {
	interval := s.cfg.FlushInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	batchSize := s.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 1
	}

	batch := make([]WriteOp, 0, batchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		for _, op := range batch {
			s.writeWithRetry(op)
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()

			return
		case <-s.stopCh:
			s.drainRemaining(&batch)
			flush()

			return
		case <-ticker.C:
			flush()
		default:
			op, ok := s.q.Pop()
			if !ok {
				time.Sleep(time.Millisecond)

				continue
			}
			batch = append(batch, op)
			if len(batch) >= batchSize {
				flush()
			}
		}
	}
}

func (s *shard) drainRemaining(batch *[]WriteOp) {
	for {
		op, ok := s.q.Pop()
		if !ok {
			return
		}
		*batch = append(*batch, op)
	}
}

// writeWithRetry drains op into storage with retry-with-backoff on
// transient errors, then records the terminal outcome (success/failure
// counter, consecutive-failure streak, health flag) and invokes op's
// callback exactly once with that outcome.
func (s *shard) writeWithRetry(op WriteOp) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.RetryDelay
	if b.InitialInterval <= 0 {
		b.InitialInterval = 50 * time.Millisecond
	}

	maxRetries := s.cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	bounded := backoff.WithMaxRetries(b, uint64(maxRetries)) //nolint:gosec

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		if attempt > 1 {
			s.metrics.retryCount.Inc()
		}
		werr := s.storage.Write(op.Labels, op.Sample)
		if werr == nil {
			return nil
		}
		if werr == errs.ErrOrdering || werr == errs.ErrInvalidArgument {
			return backoff.Permanent(werr)
		}

		return werr
	}, bounded)

	s.recordOutcome(err)

	if err != nil {
		s.log.Error().Err(err).Msg("pipeline: write failed after retries")
	}
	if op.Callback != nil {
		op.Callback(err)
	}
}

// recordOutcome updates the shard's write-outcome counters and
// consecutive-failure-driven health flag for one terminal result.
func (s *shard) recordOutcome(err error) {
	if err == nil {
		s.metrics.successfulWrites.Inc()
		s.consecutiveFailures.Store(0)
		s.healthy.Store(true)

		return
	}

	s.metrics.failedWrites.Inc()
	n := s.consecutiveFailures.Add(1)

	threshold := int64(s.cfg.UnhealthyThreshold)
	if threshold <= 0 {
		threshold = 5
	}
	if n >= threshold {
		s.healthy.Store(false)
	}
}
