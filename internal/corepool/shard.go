package corepool

import (
	"runtime"

	"go.uber.org/automaxprocs/maxprocs"
)

func init() {
	// Ignore the error the way lib/hrtime's windows-only init does: a failed cgroup probe
	// just leaves GOMAXPROCS at its pre-call value, which is still a reasonable shard count.
	_, _ = maxprocs.Set()
}

// DefaultShardCount sizes a ShardedOwnerList to hardware parallelism per spec.md §4.6's
// "N shards, sized to hardware parallelism", honoring a container's cgroup CPU quota via
// the automaxprocs Set call above rather than the host's full core count.
func DefaultShardCount() int {
	n := runtime.GOMAXPROCS(0)
	if n < 1 {
		return 1
	}
	return n
}
