package corepool

import (
	"iter"
	"sync/atomic"
)

// noCopy makes `go vet -copylocks` flag accidental copies of a handle — the Go idiom for
// enforcing non-movability where spec.md §9 resolves the source's inconsistent move
// semantics as "single-node and snapshot handles are both non-movable".
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// LeaseHandle is the single-node RAII owner from spec.md §4.5. Release pushes the node
// back to its originating stack exactly once; a second Release is a no-op, not a double
// push, guarded by an idempotent atomic.Bool rather than relying on a caller discipline a
// destructor would otherwise enforce.
type LeaseHandle[T any] struct {
	_        noCopy
	stack    *LockFreeStack[T]
	node     *Node[T]
	released atomic.Bool
}

func newLeaseHandle[T any](stack *LockFreeStack[T], node *Node[T]) *LeaseHandle[T] {
	return &LeaseHandle[T]{stack: stack, node: node}
}

// Get dereferences the leased node (spec.md §4.5's "dereference yields T&").
func (h *LeaseHandle[T]) Get() *T { return &h.node.value }

// Release returns the node to the pool. Safe to call multiple times; only the first call
// has effect.
func (h *LeaseHandle[T]) Release() {
	if h == nil || !h.released.CompareAndSwap(false, true) {
		return
	}
	h.node.next = nil
	h.stack.Push(h.node)
}

// SnapshotHandle owns an entire drained chain (spec.md §4.5's "multi-node handle"). The
// chain is privately owned from Drain until Release, so walking it to find the tail needs
// no synchronization.
type SnapshotHandle[T any] struct {
	_        noCopy
	stack    *LockFreeStack[T]
	head     *Node[T]
	released atomic.Bool
}

func newSnapshotHandle[T any](stack *LockFreeStack[T], head *Node[T]) *SnapshotHandle[T] {
	return &SnapshotHandle[T]{stack: stack, head: head}
}

// All iterates the owned chain. Iterators are invalidated once Release has run (spec.md
// §4.5).
func (h *SnapshotHandle[T]) All() iter.Seq[*T] {
	return func(yield func(*T) bool) {
		for n := h.head; n != nil; n = ptrToNode[T](n.next) {
			if !yield(&n.value) {
				return
			}
		}
	}
}

// Release walks to the tail, then CAS-splices the whole chain back onto the stack in one
// step (spec.md §4.5).
func (h *SnapshotHandle[T]) Release() {
	if h == nil || h.head == nil || !h.released.CompareAndSwap(false, true) {
		return
	}
	tail := h.head
	for ptrToNode[T](tail.next) != nil {
		tail = ptrToNode[T](tail.next)
	}
	h.stack.PushChain(h.head, tail)
}
