package corepool

import (
	"github.com/benz9527/xpool/xlog"
)

// Config is the functional-options config surface SPEC_FULL.md §B.3 specifies, shared by
// PoolCore and ShardedOwnerList, in the style of the teacher's timer/options.go
// xTimingWheelsOption: a private field struct built up by Option funcs, with defaulting
// done once at construction instead of validated lazily on every getter.
type Config[T any] struct {
	shardCount    int
	blockCapacity int
	alloc         Allocator[T]
	logger        xlog.XLogger
	metrics       bool
}

type Option[T any] func(*Config[T])

// WithShardCount overrides ShardedOwnerList's shard count. Defaults to DefaultShardCount()
// (GOMAXPROCS, cgroup-aware via automaxprocs) per spec.md §4.6's "N shards, sized to
// hardware parallelism."
func WithShardCount[T any](n int) Option[T] {
	return func(c *Config[T]) {
		if n < 1 {
			panic("corepool: shard count must be >= 1")
		}
		c.shardCount = n
	}
}

// WithBlockCapacity overrides BlockArena's nodes-per-block count, clamped to the
// size-derived maximum (sizeof(Block) <= 512 bytes, spec.md §3) — it can shrink a block,
// never grow it past what the invariant allows.
func WithBlockCapacity[T any](n int) Option[T] {
	return func(c *Config[T]) {
		if n <= 1 {
			panic("corepool: block capacity must be > 1")
		}
		c.blockCapacity = n
	}
}

// WithAllocator supplies the backing allocator for a PoolCore's blocks. nil (the default)
// selects the system allocator (make()), per spec.md §9.
func WithAllocator[T any](alloc Allocator[T]) Option[T] {
	return func(c *Config[T]) { c.alloc = alloc }
}

// WithLogger attaches a logger for the Warn/Debug sites SPEC_FULL.md §B.1 names:
// block-allocation failure, admission-gate contention, recovered initializer panics, and
// clear/reset precondition-sensitive calls. nil (the default) is a no-op.
func WithLogger[T any](logger xlog.XLogger) Option[T] {
	return func(c *Config[T]) { c.logger = logger }
}

// WithMetrics enables registering this container's counters with observability, per
// SPEC_FULL.md §C/§B.3.
func WithMetrics[T any](enabled bool) Option[T] {
	return func(c *Config[T]) { c.metrics = enabled }
}

// BuildConfig applies opts over the package defaults. Exported so the tls/objectpool/
// racefree veneers can build a Config from their own re-exported Option type without
// duplicating the shard-count default.
func BuildConfig[T any](opts ...Option[T]) *Config[T] {
	cfg := &Config[T]{shardCount: DefaultShardCount()}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.shardCount < 1 {
		cfg.shardCount = DefaultShardCount()
	}
	return cfg
}

func (c *Config[T]) Logger() xlog.XLogger    { return c.logger }
func (c *Config[T]) Metrics() bool           { return c.metrics }
func (c *Config[T]) ShardCount() int         { return c.shardCount }
func (c *Config[T]) BlockCapacity() int      { return c.blockCapacity }
func (c *Config[T]) Allocator() Allocator[T] { return c.alloc }
