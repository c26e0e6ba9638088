package corepool

import (
	"iter"
	"sync/atomic"
	"unsafe"

	"github.com/benz9527/xpool/lib/infra"
)

// Node is the pool-family node from spec.md §3: a value slot plus one successor link.
// TLS uses its own ownerNode instead (see owner_list.go), since it needs two links.
type Node[T any] struct {
	value T
	next  unsafe.Pointer // *Node[T]; privately owned until published onto a stack
}

// Value and SetValue let a caller outside this package reach a node's payload directly —
// racefree.Container.Reset/All walk every node the arena has ever handed out, not just the
// free-stack chain a Lease/Release pair would give them.
func (n *Node[T]) Value() T     { return n.value }
func (n *Node[T]) SetValue(v T) { n.value = v }

func nodeToPtr[T any](n *Node[T]) unsafe.Pointer { return unsafe.Pointer(n) }
func ptrToNode[T any](p unsafe.Pointer) *Node[T] { return (*Node[T])(p) }

// Block is a fixed-capacity array of Node[T] plus the link forming the arena's block list.
type Block[T any] struct {
	nodes []Node[T]
	next  *Block[T]
}

// nodesPerBlock computes floor((512 - sizeof(pointer)) / sizeof(Node[T])) per spec.md §3,
// panicking if the result would violate the nodes_per_block > 1 invariant — T is too large
// for a 512-byte block.
func nodesPerBlock[T any]() int {
	var n Node[T]
	nodeSize := unsafe.Sizeof(n)
	ptrSize := unsafe.Sizeof(uintptr(0))
	cap := int((512 - ptrSize) / nodeSize)
	if cap <= 1 {
		panic("corepool: nodes_per_block must be > 1; T is too large for a 512-byte block")
	}
	return cap
}

// Allocator supplies the backing storage for a BlockArena's blocks. The default allocator
// is a thin wrapper over Go's own allocator (make()), mirroring spec.md §9's
// "allocator-templated nodes ... the default is a thin wrapper over the system allocator".
type Allocator[T any] interface {
	AllocateBlock(n int) ([]Node[T], error)
}

type defaultAllocator[T any] struct{}

func (defaultAllocator[T]) AllocateBlock(n int) ([]Node[T], error) {
	return make([]Node[T], n), nil
}

// BlockArena owns the arena's block list. One producer allocates at a time, serialized by
// the pool's admission gate (§4.4); arena methods themselves perform no locking.
type BlockArena[T any] struct {
	alloc      Allocator[T]
	nodeCap    int
	blocksHead atomic.Pointer[Block[T]]
	blockCount atomic.Int64
	nodeCount  atomic.Int64
}

// NewBlockArena builds an arena with nodeCap nodes per block. capacityOverride <= 0 or
// above the size-derived maximum uses nodesPerBlock[T]() (spec.md §3's
// floor((512-sizeof(pointer))/sizeof(Node[T])) cap); a smaller override (SPEC_FULL.md §B.3's
// WithBlockCapacity) can only shrink a block, never grow it past the invariant.
func NewBlockArena[T any](alloc Allocator[T], capacityOverride int) *BlockArena[T] {
	if alloc == nil {
		alloc = defaultAllocator[T]{}
	}
	cap := nodesPerBlock[T]()
	if capacityOverride > 0 && capacityOverride < cap {
		cap = capacityOverride
	}
	if cap <= 1 {
		panic("corepool: nodes_per_block must be > 1; T is too large for a 512-byte block")
	}
	return &BlockArena[T]{alloc: alloc, nodeCap: cap}
}

// AllocateBlock requests nodeCap nodes from the allocator, links the new Block at the head
// of the block list, and returns pointers to its nodes for the caller to thread onto a
// stack (spec.md §4.3's allocate_block). On allocator failure the arena is left untouched.
func (a *BlockArena[T]) AllocateBlock() ([]*Node[T], error) {
	raw, err := a.alloc.AllocateBlock(a.nodeCap)
	if err != nil {
		return nil, infra.WrapErrorStackWithMessage(err, "corepool: block allocation failed")
	}
	blk := &Block[T]{nodes: raw}
	nodes := make([]*Node[T], len(raw))
	for i := range raw {
		nodes[i] = &blk.nodes[i]
	}

	for {
		old := a.blocksHead.Load()
		blk.next = old
		if a.blocksHead.CompareAndSwap(old, blk) {
			break
		}
	}
	a.blockCount.Add(1)
	a.nodeCount.Add(int64(len(nodes)))
	return nodes, nil
}

func (a *BlockArena[T]) BlockCount() int64 { return a.blockCount.Load() }
func (a *BlockArena[T]) NodeCount() int64  { return a.nodeCount.Load() }

// All iterates every block the arena currently owns, most-recently-allocated first.
func (a *BlockArena[T]) All() iter.Seq[*Block[T]] {
	return func(yield func(*Block[T]) bool) {
		for b := a.blocksHead.Load(); b != nil; b = b.next {
			if !yield(b) {
				return
			}
		}
	}
}

// AllNodes iterates every node the arena has ever allocated, leased or free. RaceFree uses
// this for reset() and begin()/end() (spec.md §6), which must see every slot's value, not
// just whatever is currently on the free stack.
func (a *BlockArena[T]) AllNodes() iter.Seq[*Node[T]] {
	return func(yield func(*Node[T]) bool) {
		for b := range a.All() {
			for i := range b.nodes {
				if !yield(&b.nodes[i]) {
					return
				}
			}
		}
	}
}
