// Package objectpool implements the ObjectPool<T, Alloc> container from spec.md §6: a
// lock-free free-list pool of reusable T values, built directly on internal/corepool.PoolCore.
package objectpool

import (
	"context"
	"fmt"
	"iter"

	"github.com/benz9527/xpool/internal/corepool"
	"github.com/benz9527/xpool/observability"
	"github.com/benz9527/xpool/xlog"
)

// Option configures a Pool at construction, per SPEC_FULL.md §B.3.
type Option[T any] func(*corepool.Config[T])

func toCoreOpts[T any](opts []Option[T]) []corepool.Option[T] {
	out := make([]corepool.Option[T], len(opts))
	for i, o := range opts {
		out[i] = corepool.Option[T](o)
	}
	return out
}

// WithAllocator supplies the backing allocator for a Pool's blocks. nil (the default)
// selects Go's own allocator, make(), per spec.md §9.
func WithAllocator[T any](alloc corepool.Allocator[T]) Option[T] {
	return Option[T](corepool.WithAllocator[T](alloc))
}

// WithBlockCapacity overrides nodes-per-block, clamped to the size-derived maximum.
func WithBlockCapacity[T any](n int) Option[T] { return Option[T](corepool.WithBlockCapacity[T](n)) }

// WithLogger attaches a logger for block-allocation failures and admission-gate contention
// (SPEC_FULL.md §B.1).
func WithLogger[T any](logger xlog.XLogger) Option[T] {
	return Option[T](corepool.WithLogger[T](logger))
}

// WithMetrics enables registering this Pool's block/node/availability counts with
// observability.
func WithMetrics[T any](enabled bool) Option[T] { return Option[T](corepool.WithMetrics[T](enabled)) }

// Pool leases T values from a growable, lock-free free list. Each pooled T starts as the
// zero value the block allocator produced; no initializer runs for it.
type Pool[T any] struct {
	core *corepool.PoolCore[T]
}

// New builds a Pool per opts; the zero value (no options) selects Go's own allocator with
// the size-derived block capacity.
func New[T any](opts ...Option[T]) *Pool[T] {
	coreOpts := toCoreOpts(opts)
	cfg := corepool.BuildConfig(coreOpts...)
	p := &Pool[T]{core: corepool.NewPoolCore[T](coreOpts...)}
	if cfg.Metrics() {
		observability.InitPoolStats(context.Background(), "", observability.ExporterConsole)
		observability.RegisterPoolCounters(fmt.Sprintf("objectpool-%p", p), observability.PoolCounters{
			BlockCount: p.core.BlockCount,
			NodeCount:  p.core.NodeCount,
			Available:  func() int64 { return int64(p.core.Size()) },
		})
	}
	return p
}

// Handle is an exclusive lease of one pooled T, returned to the pool by Release (spec.md
// §6's lease() → Handle<T>).
type Handle[T any] struct {
	inner *corepool.LeaseHandle[T]
}

func (h *Handle[T]) Get() *T  { return h.inner.Get() }
func (h *Handle[T]) Release() { h.inner.Release() }

// Snapshot owns the pool's entire available free list at the moment of Lease, returned as
// one handle (spec.md §6's lease_all() → Snapshot<T>).
type Snapshot[T any] struct {
	inner *corepool.SnapshotHandle[T]
}

func (s *Snapshot[T]) All() iter.Seq[*T] { return s.inner.All() }
func (s *Snapshot[T]) Release()          { s.inner.Release() }

// Lease returns exclusive access to one pooled T, allocating a new block if the free list
// is empty (spec.md §4.4). ctx only governs the admission-gate wait.
func (p *Pool[T]) Lease(ctx context.Context) (*Handle[T], error) {
	h, err := p.core.Lease(ctx)
	if err != nil {
		return nil, err
	}
	return &Handle[T]{inner: h}, nil
}

// LeaseAll drains every currently-available object into one Snapshot; objects leased out at
// the time of the call are unaffected (spec.md §6). Returns nil if nothing was available.
func (p *Pool[T]) LeaseAll() *Snapshot[T] {
	s := p.core.LeaseAll()
	if s == nil {
		return nil
	}
	return &Snapshot[T]{inner: s}
}

// Size is a debug-only, not-thread-safe count of currently available objects (spec.md §6).
func (p *Pool[T]) Size() int { return p.core.Size() }

func (p *Pool[T]) BlockCount() int64 { return p.core.BlockCount() }
func (p *Pool[T]) NodeCount() int64  { return p.core.NodeCount() }
