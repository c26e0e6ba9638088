package corepool

import (
	"iter"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sys/cpu"

	"github.com/benz9527/xpool/lib/infra"
	"github.com/benz9527/xpool/xlog"
)

// ownerNode is the TLS node from spec.md §3: a value plus the owning goroutine's identity
// and two successor links — one threading its shard, one threading the traversal spine.
type ownerNode[T any] struct {
	owner     uint64
	value     T
	shardNext atomic.Pointer[ownerNode[T]]
	spineNext atomic.Pointer[ownerNode[T]]
}

type shardHead[T any] struct {
	head atomic.Pointer[ownerNode[T]]
	_    cpu.CacheLinePad // avoid false sharing between adjacent shards under concurrent CAS
}

// ShardedOwnerList partitions entries by hashed goroutine identity into N shards, plus a
// secondary spine list threading every inserted node for O(n) iteration (spec.md §4.6).
// Shard-CAS and spine-CAS (steps 4 and 5 of Local's miss path) are deliberately two
// non-atomic steps: a racing iterator that starts between them can miss the new node, which
// spec.md §4.6 permits because iteration is contractually non-concurrent with Local.
type ShardedOwnerList[T any] struct {
	shards    []shardHead[T]
	spineHead atomic.Pointer[ownerNode[T]]
	init      *Initializer[T]
	logger    xlog.XLogger
}

// NewShardedOwnerList builds a ShardedOwnerList from Option[T] values — SPEC_FULL.md §B.3's
// WithShardCount/WithLogger, applied over BuildConfig's DefaultShardCount() default.
func NewShardedOwnerList[T any](init *Initializer[T], opts ...Option[T]) *ShardedOwnerList[T] {
	cfg := BuildConfig(opts...)
	shardCount := cfg.ShardCount()
	if shardCount < 1 {
		shardCount = 1
	}
	return &ShardedOwnerList[T]{
		shards: make([]shardHead[T], shardCount),
		init:   init,
		logger: cfg.Logger(),
	}
}

func (l *ShardedOwnerList[T]) shardFor(owner uint64) *shardHead[T] {
	return &l.shards[owner%uint64(len(l.shards))]
}

// callInitializer recovers a panicking Initializer, logs it, and re-panics — spec.md §4.7
// leaves the construction callable's panic behavior to the caller; SPEC_FULL.md §B.1 asks
// that this boundary at least record what panicked before it unwinds further.
func (l *ShardedOwnerList[T]) callInitializer() (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			if l.logger != nil {
				l.logger.Warn("corepool: TLS initializer panicked", zap.Any("panic", r))
			}
			panic(r)
		}
	}()
	return l.init.New()
}

// Local returns the calling goroutine's entry, creating it via the configured Initializer
// on first access (spec.md §4.6's local()). The second return value is true exactly once
// per goroutine across the container's lifetime, per spec.md §8 scenario 2.
func (l *ShardedOwnerList[T]) Local() (*T, bool, error) {
	owner := GID()
	shard := l.shardFor(owner)

	for n := shard.head.Load(); n != nil; n = n.shardNext.Load() {
		if n.owner == owner {
			return &n.value, false, nil
		}
	}

	v, err := l.callInitializer()
	if err != nil {
		if l.logger != nil {
			l.logger.Warn("corepool: TLS initializer failed", zap.Uint64("owner", owner), zap.Error(err))
		}
		return nil, false, infra.WrapErrorStackWithMessage(err, "corepool: TLS initializer failed")
	}
	node := &ownerNode[T]{owner: owner, value: v}

	for {
		head := shard.head.Load()
		node.shardNext.Store(head)
		if shard.head.CompareAndSwap(head, node) {
			break
		}
	}
	for {
		head := l.spineHead.Load()
		node.spineNext.Store(head)
		if l.spineHead.CompareAndSwap(head, node) {
			break
		}
	}
	return &node.value, true, nil
}

// Insert links a value under a caller-chosen owner key, bypassing both the shard scan and
// the Initializer. It exists for tls.Clone (SPEC_FULL.md §E): a clone's entries don't
// belong to the goroutines that are about to read them via All, so there is no real owner
// GID to key them by — a monotonic synthetic key is enough since Insert's only caller never
// looks entries up by owner through Local.
func (l *ShardedOwnerList[T]) Insert(owner uint64, v T) {
	shard := l.shardFor(owner)
	node := &ownerNode[T]{owner: owner, value: v}
	for {
		head := shard.head.Load()
		node.shardNext.Store(head)
		if shard.head.CompareAndSwap(head, node) {
			break
		}
	}
	for {
		head := l.spineHead.Load()
		node.spineNext.Store(head)
		if l.spineHead.CompareAndSwap(head, node) {
			break
		}
	}
}

// All walks the spine, the single linked-list traversal spec.md §4.6 adds specifically so
// begin()/end() needn't walk N shards. Precondition: no concurrent Local() (spec.md §5).
func (l *ShardedOwnerList[T]) All() iter.Seq[*T] {
	return func(yield func(*T) bool) {
		for n := l.spineHead.Load(); n != nil; n = n.spineNext.Load() {
			if !yield(&n.value) {
				return
			}
		}
	}
}

// Clear empties every shard head and the spine head before any node is freed — the
// resolution spec.md §9 gives to the source's ambiguous clear ordering. Precondition: no
// concurrent access (spec.md §4.6).
func (l *ShardedOwnerList[T]) Clear() {
	if l.logger != nil {
		l.logger.Debug("corepool: TLS owner list cleared", zap.Int("shards", len(l.shards)))
	}
	for i := range l.shards {
		l.shards[i].head.Store(nil)
	}
	l.spineHead.Store(nil)
	// Nodes become unreachable here; Go's GC reclaims them, standing in for the explicit
	// "destroy and free every node" step spec.md §4.6 specifies for a manually-managed
	// language.
}
