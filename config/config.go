// Package config defines the engine's typed configuration and the
// functional-option constructors used to build it. It reuses the generic
// Option[T] plumbing from internal/options rather than hand-rolling a
// second options mechanism.
package config

import (
	"errors"
	"time"

	"github.com/arloliu/tsdbcore/format"
	"github.com/arloliu/tsdbcore/internal/options"
)

var errInvalidTier = errors.New("config: tier index must be 0 (HOT), 1 (WARM), or 2 (COLD)")

// TierConfig holds the per-tier storage knobs.
type TierConfig struct {
	CompressionLevel int
	RetentionPeriod  time.Duration
	CacheSizeBytes   int64
	AllowMmap        bool
}

// Config is the engine's full configuration. Zero value is invalid; use
// New with options, which applies the documented defaults first.
type Config struct {
	// Storage
	DataDir           string
	BlockSize         int64
	RetentionPeriod   time.Duration
	EnableCompression bool

	// Blocks
	MaxBlockSize              int64
	MaxBlockRecords           int
	BlockDuration             time.Duration
	MaxConcurrentCompactions  int
	CompactionThresholdBlocks int
	CompactionThresholdRatio  float64
	DemotionMaxAge            time.Duration // how long a HOT block may go unread before Compact demotes it
	Tiers                     [3]TierConfig // indexed by tiered.TierHot/TierWarm/TierCold

	// Compression
	TimestampCompression format.CompressionType
	ValueCompression     format.CompressionType
	LabelCompression     format.CompressionType
	AdaptiveCompression  bool
	CompressionLevel     int
	EnableSIMD           bool

	// Sharded pipeline
	NumShards          int
	QueueSize          int
	BatchSize          int
	NumWorkers         int
	FlushInterval      time.Duration
	RetryDelay         time.Duration
	MaxRetries         int
	UnhealthyThreshold int

	// Background
	EnableBackgroundProcessing bool
	BackgroundThreads          int
	TaskInterval               time.Duration
	CompactionInterval         time.Duration
	CleanupInterval            time.Duration
	MetricsInterval            time.Duration
	EnableAutoCompaction       bool
	EnableAutoCleanup          bool
	EnableAutoMetrics          bool
}

// Option configures a Config.
type Option = options.Option[*Config]

func defaults() *Config {
	return &Config{
		BlockSize:         64 * 1024 * 1024,
		RetentionPeriod:   7 * 24 * time.Hour,
		EnableCompression: true,

		MaxBlockSize:              64 * 1024 * 1024,
		MaxBlockRecords:           120_000,
		BlockDuration:             time.Hour,
		MaxConcurrentCompactions:  2,
		CompactionThresholdBlocks: 10,
		CompactionThresholdRatio:  0.3,
		DemotionMaxAge:            30 * time.Minute,

		TimestampCompression: format.CompressionNone,
		ValueCompression:     format.CompressionNone,
		LabelCompression:     format.CompressionNone,
		AdaptiveCompression:  true,
		CompressionLevel:     3,

		NumShards:          16,
		QueueSize:          4096,
		BatchSize:          128,
		NumWorkers:         2,
		FlushInterval:      2 * time.Second,
		RetryDelay:         50 * time.Millisecond,
		MaxRetries:         3,
		UnhealthyThreshold: 5,

		EnableBackgroundProcessing: true,
		BackgroundThreads:          1,
		TaskInterval:               time.Second,
		CompactionInterval:         time.Minute,
		CleanupInterval:            5 * time.Minute,
		MetricsInterval:            10 * time.Second,
		EnableAutoCompaction:       true,
		EnableAutoCleanup:          true,
		EnableAutoMetrics:          true,
	}
}

// New builds a Config from documented defaults plus opts, applied in order.
func New(opts ...Option) (*Config, error) {
	cfg := defaults()
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}

	return cfg, nil
}

func WithDataDir(dir string) Option {
	return options.NoError(func(c *Config) { c.DataDir = dir })
}

func WithBlockSize(n int64) Option {
	return options.NoError(func(c *Config) { c.BlockSize = n })
}

func WithRetentionPeriod(d time.Duration) Option {
	return options.NoError(func(c *Config) { c.RetentionPeriod = d })
}

func WithMaxBlockRecords(n int) Option {
	return options.NoError(func(c *Config) { c.MaxBlockRecords = n })
}

func WithMaxBlockSize(n int64) Option {
	return options.NoError(func(c *Config) { c.MaxBlockSize = n })
}

func WithBlockDuration(d time.Duration) Option {
	return options.NoError(func(c *Config) { c.BlockDuration = d })
}

func WithTierConfig(tier int, tc TierConfig) Option {
	return options.New(func(c *Config) error {
		if tier < 0 || tier > 2 {
			return errInvalidTier
		}
		c.Tiers[tier] = tc

		return nil
	})
}

func WithNumShards(n int) Option {
	return options.NoError(func(c *Config) { c.NumShards = n })
}

func WithQueueSize(n int) Option {
	return options.NoError(func(c *Config) { c.QueueSize = n })
}

func WithBatchSize(n int) Option {
	return options.NoError(func(c *Config) { c.BatchSize = n })
}

func WithNumWorkers(n int) Option {
	return options.NoError(func(c *Config) { c.NumWorkers = n })
}

func WithFlushInterval(d time.Duration) Option {
	return options.NoError(func(c *Config) { c.FlushInterval = d })
}

func WithRetryDelay(d time.Duration) Option {
	return options.NoError(func(c *Config) { c.RetryDelay = d })
}

func WithMaxRetries(n int) Option {
	return options.NoError(func(c *Config) { c.MaxRetries = n })
}

func WithUnhealthyThreshold(n int) Option {
	return options.NoError(func(c *Config) { c.UnhealthyThreshold = n })
}

func WithAdaptiveCompression(enabled bool) Option {
	return options.NoError(func(c *Config) { c.AdaptiveCompression = enabled })
}

func WithTimestampCompression(t format.CompressionType) Option {
	return options.NoError(func(c *Config) { c.TimestampCompression = t })
}

func WithValueCompression(t format.CompressionType) Option {
	return options.NoError(func(c *Config) { c.ValueCompression = t })
}

func WithBackgroundProcessing(enabled bool) Option {
	return options.NoError(func(c *Config) { c.EnableBackgroundProcessing = enabled })
}

func WithCompactionThresholdBlocks(n int) Option {
	return options.NoError(func(c *Config) { c.CompactionThresholdBlocks = n })
}

func WithCompactionThresholdRatio(r float64) Option {
	return options.NoError(func(c *Config) { c.CompactionThresholdRatio = r })
}

func WithDemotionMaxAge(d time.Duration) Option {
	return options.NoError(func(c *Config) { c.DemotionMaxAge = d })
}
