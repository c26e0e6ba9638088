// Package racefree implements the RaceFree<T, Alloc> container from spec.md §6: an
// ObjectPool variant where every slot holds an optional value (spec.md's Option<T>) the
// holder may construct, reassign, or clear in place, rather than always returning a live T.
package racefree

import (
	"context"
	"fmt"
	"iter"

	"github.com/benz9527/xpool/internal/corepool"
	"github.com/benz9527/xpool/observability"
	"github.com/benz9527/xpool/xlog"
)

// Option configures a Container at construction, per SPEC_FULL.md §B.3. It is parameterized
// over the slot type *T (the type corepool.PoolCore actually stores), matching
// corepool.Option[*T].
type Option[T any] func(*corepool.Config[*T])

func toCoreOpts[T any](opts []Option[T]) []corepool.Option[*T] {
	out := make([]corepool.Option[*T], len(opts))
	for i, o := range opts {
		out[i] = corepool.Option[*T](o)
	}
	return out
}

// WithAllocator supplies the backing allocator for a Container's blocks.
func WithAllocator[T any](alloc corepool.Allocator[*T]) Option[T] {
	return Option[T](corepool.WithAllocator[*T](alloc))
}

// WithBlockCapacity overrides nodes-per-block, clamped to the size-derived maximum.
func WithBlockCapacity[T any](n int) Option[T] {
	return Option[T](corepool.WithBlockCapacity[*T](n))
}

// WithLogger attaches a logger for block-allocation failures and admission-gate contention
// (SPEC_FULL.md §B.1).
func WithLogger[T any](logger xlog.XLogger) Option[T] {
	return Option[T](corepool.WithLogger[*T](logger))
}

// WithMetrics enables registering this Container's block/node counts with observability.
func WithMetrics[T any](enabled bool) Option[T] { return Option[T](corepool.WithMetrics[*T](enabled)) }

// Container is PoolCore[*T] under the hood: a nil slot value is spec.md's "absent", a
// non-nil one is "occupied" (SPEC_FULL.md §D.4).
type Container[T any] struct {
	core   *corepool.PoolCore[*T]
	logger xlog.XLogger
}

func New[T any](opts ...Option[T]) *Container[T] {
	coreOpts := toCoreOpts(opts)
	cfg := corepool.BuildConfig(coreOpts...)
	c := &Container[T]{core: corepool.NewPoolCore[*T](coreOpts...), logger: cfg.Logger()}
	if cfg.Metrics() {
		observability.InitPoolStats(context.Background(), "", observability.ExporterConsole)
		observability.RegisterPoolCounters(fmt.Sprintf("racefree-%p", c), observability.PoolCounters{
			BlockCount: c.core.BlockCount,
			NodeCount:  c.core.NodeCount,
			Available:  func() int64 { return int64(c.core.Size()) },
		})
	}
	return c
}

// Handle leases one slot, present or absent (spec.md §6's get() → Handle<Option<T>>).
type Handle[T any] struct {
	inner *corepool.LeaseHandle[*T]
}

// HasValue reports whether the leased slot currently holds a value.
func (h *Handle[T]) HasValue() bool { return *h.inner.Get() != nil }

// Get dereferences the slot. Callers must check HasValue first; Get on an absent slot
// returns nil (spec.md's operator* is only well-defined when has_value()).
func (h *Handle[T]) Get() *T { return *h.inner.Get() }

// Emplace constructs v into the slot in place, replacing whatever was there, and returns a
// pointer to the stored copy (spec.md §6's emplace(args…)).
func (h *Handle[T]) Emplace(v T) *T {
	stored := new(T)
	*stored = v
	*h.inner.Get() = stored
	return stored
}

// Reset clears this slot's value without releasing the handle (spec.md §6's Handle.reset()).
func (h *Handle[T]) Reset() { *h.inner.Get() = nil }

// Release returns the slot to the container.
func (h *Handle[T]) Release() { h.inner.Release() }

// Get leases one slot, which may already be occupied from a prior tenant (spec.md §6).
func (c *Container[T]) Get(ctx context.Context) (*Handle[T], error) {
	h, err := c.core.Lease(ctx)
	if err != nil {
		return nil, err
	}
	return &Handle[T]{inner: h}, nil
}

// Reset clears every slot's value, occupied or not, without releasing any block's memory.
// Precondition: no live handles (spec.md §6).
func (c *Container[T]) Reset() {
	if c.logger != nil {
		c.logger.Debug("racefree: container reset")
	}
	for n := range c.core.AllNodes() {
		n.SetValue(nil)
	}
}

// All iterates only occupied slots, most recently allocated block first and each block's
// slots in index order. Precondition: no concurrent Get
// (spec.md §6).
func (c *Container[T]) All() iter.Seq[*T] {
	return func(yield func(*T) bool) {
		for n := range c.core.AllNodes() {
			v := n.Value()
			if v == nil {
				continue
			}
			if !yield(v) {
				return
			}
		}
	}
}

// BlockCount is a debug-only count of blocks the arena has allocated, per SPEC_FULL.md
// §E's supplement (the original splits this from node_count rather than ObjectPool's
// single size()).
func (c *Container[T]) BlockCount() int64 { return c.core.BlockCount() }

// NodeCount is the number of currently-occupied slots, matching
// original_source/inc/race_free.hpp's node_count() (count nodes whose value is set), not
// the arena's total-ever-allocated count. Debug-only, not thread-safe — walks every node.
func (c *Container[T]) NodeCount() int64 {
	var n int64
	for node := range c.core.AllNodes() {
		if node.Value() != nil {
			n++
		}
	}
	return n
}
