// Package unwind captures bounded arrays of program counters from the
// calling goroutine's stack.  The heap-returning flavor stores the
// counters in memory obtained from the dispatch table, terminated by a
// zero sentinel, so the record can live inside a tracked block's header
// without the Go collector ever seeing it.
package unwind

import (
	"runtime"
	"unsafe"

	"github.com/jsteemann/liblouse/dispatch"
)

const ptrSize = unsafe.Sizeof(uintptr(0))

// scratch is sized like the original's on-stack staging buffer: room
// for a generous trace without allocating.
const scratchFrames = 32

// Capture walks up to maxFrames+2 frames (the two extra cover this
// helper and the interposer shim, which are trimmed) and returns a
// dispatch-allocated, zero-terminated counter array.  Returns 0 if
// fewer than two frames were available or the allocation failed.
func Capture(maxFrames int) uintptr {
	var scratch [scratchFrames]uintptr

	frames := maxFrames + 2
	if frames > len(scratch) {
		frames = len(scratch)
	}

	// skip runtime.Callers itself and this function
	n := runtime.Callers(2, scratch[:frames])
	if n < 2 {
		return 0
	}

	pcs := dispatch.Malloc(uintptr(n) * ptrSize)
	if pcs == 0 {
		return 0
	}

	// drop the immediate caller (the shim); terminate with zero
	for i := 1; i < n; i++ {
		store(pcs, i-1, scratch[i])
	}
	store(pcs, n-1, 0)

	return pcs
}

// CaptureInto fills a caller-provided buffer with the same trimming
// convention, writing a zero terminator after the last used slot.  It
// reports whether at least one usable frame was captured.
func CaptureInto(maxFrames int, buf []uintptr) bool {
	frames := maxFrames + 2
	if frames >= len(buf) {
		frames = len(buf) - 1
	}
	if frames < 1 {
		return false
	}

	// one extra raw frame covers the one trimmed below
	var scratch [scratchFrames]uintptr
	raw := frames + 1
	if raw > len(scratch) {
		raw = len(scratch)
	}
	n := runtime.Callers(2, scratch[:raw])

	size := 0
	for i := 1; i < n && size < frames; i++ {
		buf[size] = scratch[i]
		size++
	}
	buf[size] = 0

	return size >= 1
}

// At reads the i-th counter of a zero-terminated array.
func At(pcs uintptr, i int) uintptr {
	return *(*uintptr)(unsafe.Pointer(pcs + uintptr(i)*ptrSize))
}

func store(pcs uintptr, i int, pc uintptr) {
	*(*uintptr)(unsafe.Pointer(pcs + uintptr(i)*ptrSize)) = pc
}
