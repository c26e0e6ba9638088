package corepool

// LockFreeStack is a lock-free LIFO of Node[T] chains, ABA-safe via the monotonic tag
// carried in its TaggedPointer top (spec.md §4.2). Push/Pop are lock-free; Drain is
// wait-free. Acquire ordering on a successful CAS that will dereference the popped node,
// release ordering on a successful push, both already guaranteed by atomicTaggedPointer's
// spinlock-guarded critical sections.
type LockFreeStack[T any] struct {
	top atomicTaggedPointer
}

// Push prepends a single node.
func (s *LockFreeStack[T]) Push(n *Node[T]) {
	for {
		top := s.top.Load()
		n.next = top.addr
		desired := TaggedPointer{addr: nodeToPtr(n), tag: top.tag + 1}
		if _, ok := s.top.CompareAndSwap(top, desired); ok {
			return
		}
	}
}

// PushChain splices a pre-built chain head..tail (tail.next must already be nil) atop the
// stack in one CAS, per spec.md §4.2's push_chain.
func (s *LockFreeStack[T]) PushChain(head, tail *Node[T]) {
	for {
		top := s.top.Load()
		tail.next = top.addr
		desired := TaggedPointer{addr: nodeToPtr(head), tag: top.tag + 1}
		if _, ok := s.top.CompareAndSwap(top, desired); ok {
			return
		}
	}
}

// Pop removes and returns the top node, or nil if the stack is empty.
func (s *LockFreeStack[T]) Pop() *Node[T] {
	for {
		top := s.top.Load()
		if top.addr == nil {
			return nil
		}
		head := ptrToNode[T](top.addr)
		desired := TaggedPointer{addr: head.next, tag: top.tag + 1}
		if _, ok := s.top.CompareAndSwap(top, desired); ok {
			head.next = nil
			return head
		}
	}
}

// Drain atomically detaches the whole chain and returns its head; insertion order within
// the chain is preserved (spec.md §4.2).
func (s *LockFreeStack[T]) Drain() *Node[T] {
	for {
		top := s.top.Load()
		if top.addr == nil {
			return nil
		}
		desired := TaggedPointer{addr: nil, tag: top.tag + 1}
		if result, ok := s.top.CompareAndSwap(top, desired); ok {
			_ = result
			return ptrToNode[T](top.addr)
		}
	}
}

// Len walks the chain to count it. Debug-only, not thread-safe — the same caveat
// object_pool.hpp documents on size(), which this backs (spec.md §6, ObjectPool.size()).
func (s *LockFreeStack[T]) Len() int {
	n := 0
	for p := ptrToNode[T](s.top.Load().addr); p != nil; p = ptrToNode[T](p.next) {
		n++
	}
	return n
}
