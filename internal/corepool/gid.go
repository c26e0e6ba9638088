package corepool

import (
	"runtime"
	"strconv"
	"sync"
)

var stackBufPool = sync.Pool{
	New: func() any { return make([]byte, 64) },
}

// GID returns the runtime-reported id of the calling goroutine, parsed out of the header
// line runtime.Stack prints ("goroutine 42 [running]:"). This is the Go-native substitute
// for std::this_thread::get_id() that SPEC_FULL.md §A calls for — the same technique the
// pack's slab allocators use for diagnostic allocation-stack capture, applied here to
// identify the caller of TLS.Local() instead. The scratch buffer is pooled so a hot-path
// caller doesn't allocate on every call.
func GID() uint64 {
	buf := stackBufPool.Get().([]byte)
	defer stackBufPool.Put(buf)

	n := runtime.Stack(buf, false)
	b := buf[:n]

	const prefix = "goroutine "
	if len(b) <= len(prefix) || string(b[:len(prefix)]) != prefix {
		return 0
	}
	b = b[len(prefix):]

	i := 0
	for i < len(b) && b[i] >= '0' && b[i] <= '9' {
		i++
	}
	id, err := strconv.ParseUint(string(b[:i]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
