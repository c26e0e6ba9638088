package corepool

import (
	"context"
	"iter"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/benz9527/xpool/xlog"
)

// PoolCore combines a LockFreeStack with a BlockArena and a binary-semaphore admission
// gate, implementing the lease algorithm from spec.md §4.4. It backs both ObjectPool and
// RaceFree; RaceFree parameterizes it as PoolCore[*T], where a nil slot value means absent
// (see racefree.Container).
type PoolCore[T any] struct {
	stack  LockFreeStack[T]
	arena  *BlockArena[T]
	gate   *semaphore.Weighted
	logger xlog.XLogger
}

// NewPoolCore builds a PoolCore from Option[T] values — SPEC_FULL.md §B.3's
// WithAllocator/WithBlockCapacity/WithLogger/WithMetrics, applied over BuildConfig's
// defaults the same way timer.NewTimingWheels applies xTimingWheelsOption.
func NewPoolCore[T any](opts ...Option[T]) *PoolCore[T] {
	cfg := BuildConfig(opts...)
	return &PoolCore[T]{
		arena:  NewBlockArena[T](cfg.Allocator(), cfg.BlockCapacity()),
		gate:   semaphore.NewWeighted(1),
		logger: cfg.Logger(),
	}
}

// Acquire implements spec.md §4.4: optimistic pop, then gated re-check-and-allocate. ctx
// only governs the gate wait — spec.md §5 specifies no cancellation on the hot paths, so
// context.Background() is the right default for callers with nothing to cancel on.
func (p *PoolCore[T]) Acquire(ctx context.Context) (*Node[T], error) {
	if n := p.stack.Pop(); n != nil {
		return n, nil
	}

	if !p.gate.TryAcquire(1) {
		if p.logger != nil {
			p.logger.Warn("corepool: admission gate contended, blocking for block allocation")
		}
		if err := p.gate.Acquire(ctx, 1); err != nil {
			return nil, err
		}
	}
	defer p.gate.Release(1)

	if n := p.stack.Pop(); n != nil {
		return n, nil
	}

	nodes, err := p.allocateBlock()
	if err != nil {
		if p.logger != nil {
			p.logger.Warn("corepool: block allocation failed", zap.Error(err))
		}
		return nil, err
	}
	head := nodes[0]
	if len(nodes) > 1 {
		for i := 1; i < len(nodes)-1; i++ {
			nodes[i].next = nodeToPtr(nodes[i+1])
		}
		p.stack.PushChain(nodes[1], nodes[len(nodes)-1])
	}
	return head, nil
}

// allocateBlock recovers a panicking Allocator, logs it, and re-panics — the same boundary
// contract owner_list.go's callInitializer gives the TLS side (SPEC_FULL.md §B.1).
func (p *PoolCore[T]) allocateBlock() (nodes []*Node[T], err error) {
	defer func() {
		if r := recover(); r != nil {
			if p.logger != nil {
				p.logger.Warn("corepool: block allocator panicked", zap.Any("panic", r))
			}
			panic(r)
		}
	}()
	return p.arena.AllocateBlock()
}

func (p *PoolCore[T]) Release(n *Node[T]) {
	n.next = nil
	p.stack.Push(n)
}

func (p *PoolCore[T]) ReleaseChain(head, tail *Node[T]) {
	p.stack.PushChain(head, tail)
}

// Drain detaches the whole free chain at once (used by lease_all / RaceFree iteration
// setup — spec.md §6).
func (p *PoolCore[T]) Drain() *Node[T] {
	return p.stack.Drain()
}

// Size is a debug-only count of currently available (unleased) nodes: it walks the free
// stack, not block capacity. Mirrors object_pool.hpp's real size() (SPEC_FULL.md §E); not
// thread-safe.
func (p *PoolCore[T]) Size() int { return p.stack.Len() }

func (p *PoolCore[T]) BlockCount() int64 { return p.arena.BlockCount() }
func (p *PoolCore[T]) NodeCount() int64  { return p.arena.NodeCount() }

// AllNodes exposes every node the pool's arena has ever allocated. Used by racefree's
// Reset/All, which need to see leased-out slots too, unlike the free-stack-only Drain.
func (p *PoolCore[T]) AllNodes() iter.Seq[*Node[T]] { return p.arena.AllNodes() }

func (p *PoolCore[T]) Lease(ctx context.Context) (*LeaseHandle[T], error) {
	n, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return newLeaseHandle(&p.stack, n), nil
}

func (p *PoolCore[T]) LeaseAll() *SnapshotHandle[T] {
	head := p.Drain()
	if head == nil {
		return nil
	}
	return newSnapshotHandle(&p.stack, head)
}
