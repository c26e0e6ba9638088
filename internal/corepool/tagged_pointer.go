package corepool

import (
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/cpu"

	"github.com/benz9527/xpool/lib/infra"
)

// TaggedPointer is the 128-bit value {address, tag} from spec.md §3/§4.1: a stack-top
// snapshot whose tag strictly increases on every successful producer, defeating ABA on a
// plain pointer CAS. Equality is by both fields.
type TaggedPointer struct {
	addr unsafe.Pointer
	tag  uint64
}

func init() {
	if unsafe.Sizeof(TaggedPointer{}) != 16 {
		// The Go-level realization of spec.md §5's "Platform requirement" / §7's
		// "Platform unsupported: compile-time failure" — as close to compile-time as a
		// portability check gets without per-arch build tags.
		panic("corepool: TaggedPointer must be exactly 16 bytes (128-bit tagged pointer)")
	}
}

func (p TaggedPointer) equal(o TaggedPointer) bool {
	return p.addr == o.addr && p.tag == o.tag
}

// atomicTaggedPointer guards a TaggedPointer with a word-sized spinlock instead of a true
// hardware double-width CAS (Go exposes no cmpxchg16b-equivalent). This is the seqlock-style
// fallback SPEC_FULL.md §A calls for: a single atomic.Uint32 flag serializes the 16-byte
// read-modify-write, so Load and CompareAndSwap are each one CAS-guarded critical section.
// The lock lives alongside, not inside, the 16-byte payload so the payload itself keeps the
// exact layout the platform-requirement assertion checks.
type atomicTaggedPointer struct {
	lock atomic.Uint32
	val  TaggedPointer
	_    cpu.CacheLinePad
}

func (c *atomicTaggedPointer) acquire() {
	backoff := uint32(1)
	for !c.lock.CompareAndSwap(0, 1) {
		if backoff < 1024 {
			infra.ProcYield(backoff)
			backoff <<= 1
		} else {
			// Spun past the cap: the holder is likely off-CPU (preempted or blocked), so
			// keep spinning the processor is wasted work. Give the scheduler a real yield
			// instead of another cmpxchg-pause cycle.
			infra.OsYield()
		}
	}
}

func (c *atomicTaggedPointer) release() {
	c.lock.Store(0)
}

// Load returns a consistent snapshot; it never mutates the cell (spec.md §4.1).
func (c *atomicTaggedPointer) Load() TaggedPointer {
	c.acquire()
	v := c.val
	c.release()
	return v
}

// CompareAndSwap writes desired iff the current value equals expected (both address and
// tag). It returns whether the swap succeeded, plus the observed value on failure or desired
// on success, mirroring compare_exchange's "on failure, expected is updated to the observed
// value" (spec.md §4.1).
func (c *atomicTaggedPointer) CompareAndSwap(expected, desired TaggedPointer) (TaggedPointer, bool) {
	c.acquire()
	cur := c.val
	if !cur.equal(expected) {
		c.release()
		return cur, false
	}
	c.val = desired
	c.release()
	return desired, true
}
