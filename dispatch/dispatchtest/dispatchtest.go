// Package dispatchtest provides an underlying allocator for tests.  It
// hands out mmap-backed memory, so header overlays and the intrusive
// registry links never alias memory the Go collector might move or
// reclaim.
package dispatchtest

import (
	"sync"
	"testing"
	"unsafe"

	"modernc.org/memory"

	"github.com/jsteemann/liblouse/dispatch"
)

// Allocator wraps modernc.org/memory behind the dispatch table's
// contract.  The modernc allocator is not safe for concurrent use, so
// every entry point takes the mutex.
type Allocator struct {
	mu    sync.Mutex
	alloc memory.Allocator

	// Mallocs counts successful Malloc/Calloc calls, Frees the Free
	// calls; Realloc changes neither.  Tests use the difference to assert
	// the engine really returned every block.
	Mallocs int
	Frees   int

	// FailNext makes the next Malloc or Calloc return 0, for
	// out-of-memory paths.  Realloc ignores it.
	FailNext bool

	// ExitStatus holds the status of the last intercepted Exit/ExitNow
	// call, or -1.
	ExitStatus int
}

func (a *Allocator) Malloc(size uintptr) uintptr {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.FailNext {
		a.FailNext = false
		return 0
	}
	p, err := a.alloc.UintptrMalloc(int(size))
	if err != nil {
		return 0
	}
	a.Mallocs++
	return p
}

func (a *Allocator) Calloc(nmemb, size uintptr) uintptr {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.FailNext {
		a.FailNext = false
		return 0
	}
	p, err := a.alloc.UintptrCalloc(int(nmemb * size))
	if err != nil {
		return 0
	}
	a.Mallocs++
	return p
}

func (a *Allocator) Realloc(p uintptr, size uintptr) uintptr {
	a.mu.Lock()
	defer a.mu.Unlock()
	q, err := a.alloc.UintptrRealloc(p, int(size))
	if err != nil {
		return 0
	}
	return q
}

func (a *Allocator) Free(p uintptr) {
	if p == 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Frees++
	a.alloc.UintptrFree(p)
}

// Live returns the number of blocks handed out and not yet freed.
func (a *Allocator) Live() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Mallocs - a.Frees
}

// Bytes returns a view of the user memory at p, for poking guard bytes.
func Bytes(p uintptr, n int) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(p)), n)
}

// Install wires an Allocator into the dispatch table and restores the
// previous table when the test finishes.  Exit and ExitNow record the
// status instead of terminating.
func Install(tb testing.TB) *Allocator {
	tb.Helper()

	a := &Allocator{ExitStatus: -1}
	saved := dispatch.Current()
	dispatch.Install(dispatch.Table{
		Malloc:  a.Malloc,
		Calloc:  a.Calloc,
		Realloc: a.Realloc,
		Free:    a.Free,
		Exit:    func(status int) { a.ExitStatus = status },
		ExitNow: func(status int) { a.ExitStatus = status },
	})
	tb.Cleanup(func() {
		dispatch.Install(saved)
		a.mu.Lock()
		defer a.mu.Unlock()
		a.alloc.Close()
	})
	return a
}
