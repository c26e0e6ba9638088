// Package tls implements the TLS<T, Alloc> container from spec.md §6: a lock-free,
// per-goroutine value store built directly on internal/corepool.ShardedOwnerList.
package tls

import (
	"context"
	"fmt"
	"iter"

	"github.com/benz9527/xpool/internal/corepool"
	"github.com/benz9527/xpool/observability"
	"github.com/benz9527/xpool/xlog"
)

// Option configures a TLS at construction, per SPEC_FULL.md §B.3. It is a thin re-export of
// corepool.Option[T] so callers need not import internal/corepool for WithShardCount et al.
type Option[T any] func(*corepool.Config[T])

func toCoreOpts[T any](opts []Option[T]) []corepool.Option[T] {
	out := make([]corepool.Option[T], len(opts))
	for i, o := range opts {
		out[i] = corepool.Option[T](o)
	}
	return out
}

// WithShardCount overrides the shard count; defaults to corepool.DefaultShardCount(), sized
// to GOMAXPROCS per spec.md §4.6.
func WithShardCount[T any](n int) Option[T] { return Option[T](corepool.WithShardCount[T](n)) }

// WithLogger attaches a logger for TLS-initializer failures/panics and Clear (SPEC_FULL.md
// §B.1).
func WithLogger[T any](logger xlog.XLogger) Option[T] {
	return Option[T](corepool.WithLogger[T](logger))
}

// WithMetrics enables registering this TLS's entry count with observability.
func WithMetrics[T any](enabled bool) Option[T] { return Option[T](corepool.WithMetrics[T](enabled)) }

// TLS holds one T per goroutine that touches it, created lazily on first Local call.
type TLS[T any] struct {
	owners  *corepool.ShardedOwnerList[T]
	metrics bool
}

// New builds a TLS whose per-goroutine entries are produced by init.
func New[T any](init *corepool.Initializer[T], opts ...Option[T]) *TLS[T] {
	coreOpts := toCoreOpts(opts)
	cfg := corepool.BuildConfig(coreOpts...)
	t := &TLS[T]{
		owners:  corepool.NewShardedOwnerList[T](init, coreOpts...),
		metrics: cfg.Metrics(),
	}
	if t.metrics {
		observability.InitPoolStats(context.Background(), "", observability.ExporterConsole)
		observability.RegisterTLSEntries(fmt.Sprintf("tls-%p", t), t.Len)
	}
	return t
}

// FromValue builds a TLS whose per-goroutine entries are independent copies of v (spec.md
// §6's "value copy" construction overload).
func FromValue[T any](v T, opts ...Option[T]) *TLS[T] {
	return New[T](corepool.FromValue(v), opts...)
}

// FromNullary builds a TLS whose per-goroutine entries come from a factory that cannot fail
// (spec.md §6's "nullary factory returning T" overload).
func FromNullary[T any](factory func() T, opts ...Option[T]) *TLS[T] {
	return New[T](corepool.FromNullary(factory), opts...)
}

// Local returns the calling goroutine's entry, constructing it on first call. The bool
// result is true exactly once per goroutine (spec.md §6's local()).
func (t *TLS[T]) Local() (*T, bool, error) {
	return t.owners.Local()
}

// All iterates every goroutine's entry. Precondition: no concurrent Local (spec.md §6).
func (t *TLS[T]) All() iter.Seq[*T] {
	return t.owners.All()
}

// Clear destroys every entry. Precondition: no concurrent access (spec.md §6).
func (t *TLS[T]) Clear() {
	t.owners.Clear()
}

// Len reports the current entry count, for use with observability.RegisterTLSEntries.
func (t *TLS[T]) Len() int64 {
	var n int64
	for range t.owners.All() {
		n++
	}
	return n
}

// Cloneable is the constraint gating Clone (SPEC_FULL.md §E): the original's
// copy-constructible-T template guard becomes a generic type constraint requiring a Clone
// method, checked at compile time where Clone is instantiated.
type Cloneable[T any] interface {
	Clone() T
}

// Clone deep-copies every goroutine's entry into a fresh TLS built from init and opts (the
// source's initializer and shard count are not carried over), useful for snapshotting
// accumulator state without disturbing the source.
// Cloned entries are keyed by a synthetic counter rather than goroutine identity, since the
// clone's whole purpose is to be read back via All, never looked up via Local by the
// goroutines that contributed the originals. Precondition: no concurrent Local on the
// source (same as Clear/All).
func Clone[T Cloneable[T]](t *TLS[T], init *corepool.Initializer[T], opts ...Option[T]) *TLS[T] {
	dst := New[T](init, opts...)
	var synthetic uint64
	for v := range t.owners.All() {
		dst.owners.Insert(synthetic, (*v).Clone())
		synthetic++
	}
	return dst
}
