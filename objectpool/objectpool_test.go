package objectpool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestPool_DrainRoundTrip mirrors spec.md §8 scenario 4: after N parallel lease/add/release
// cycles, lease_all's snapshot sums to the total contributed, and a second lease_all after
// the snapshot is released yields the same multiset.
func TestPool_DrainRoundTrip(t *testing.T) {
	const workers = 200
	const perWorker = 50

	p := New[int64]()
	var wantSum int64
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				h, err := p.Lease(context.Background())
				require.NoError(t, err)
				v := int64(i*perWorker + j)
				*h.Get() += v
				atomic.AddInt64(&wantSum, v)
				h.Release()
			}
		}(i)
	}
	wg.Wait()

	snap := p.LeaseAll()
	require.NotNil(t, snap)
	var gotSum int64
	var count int
	for v := range snap.All() {
		gotSum += *v
		count++
	}
	require.Equal(t, wantSum, gotSum)
	snap.Release()

	snap2 := p.LeaseAll()
	require.NotNil(t, snap2)
	var gotSum2 int64
	var count2 int
	for v := range snap2.All() {
		gotSum2 += *v
		count2++
	}
	require.Equal(t, gotSum, gotSum2)
	require.Equal(t, count, count2)
	snap2.Release()
}

func TestPool_SizeReflectsAvailability(t *testing.T) {
	p := New[int]()
	require.Equal(t, 0, p.Size())

	h, err := p.Lease(context.Background())
	require.NoError(t, err)
	require.Equal(t, int(p.NodeCount())-1, p.Size())

	h.Release()
	require.Equal(t, int(p.NodeCount()), p.Size())
}
