// Package louse is the interposer surface of the heap checker.  The
// functions here mirror the C allocation entry points and the two
// operator forms; each one reads the tracker state first and routes to
// the bootstrap pool until tracing has started.
//
// Importing the package arms the tracker: the underlying allocator is
// resolved, the LOUSE_* environment is read, and tracing begins.  The
// leak report runs when the host leaves through Exit or ExitNow.
package louse

import (
	"errors"
	"unsafe"

	"github.com/jsteemann/liblouse/track"
)

// ErrOutOfMemory is the panic value of the throwing allocation forms.
var ErrOutOfMemory = errors.New("out of memory")

func init() {
	track.Configure()
	track.Initialize()
	track.StartTracing()
}

// allocate is the common allocating-shim body.
func allocate(size uintptr, atype track.AccessType) unsafe.Pointer {
	if track.State() == track.StateUninitialized {
		track.Initialize()
	}

	var p uintptr
	if track.State() == track.StateTracing {
		p = track.Allocate(size, atype)
	} else {
		p = track.AllocateInitial(size)
	}
	return unsafe.Pointer(p)
}

// Malloc allocates a tracked block of the given size.  A zero size is
// not treated specially; the returned pointer is valid and carries a
// tail guard.  Returns nil when the underlying allocator fails.
func Malloc(size uintptr) unsafe.Pointer {
	return allocate(size, track.TypeMalloc)
}

// Calloc allocates nmemb*size bytes and zeroes them.
func Calloc(nmemb, size uintptr) unsafe.Pointer {
	total := nmemb * size
	p := allocate(total, track.TypeMalloc)
	if p != nil && total > 0 {
		clear(unsafe.Slice((*byte)(p), total))
	}
	return p
}

// Realloc grows a block.  A nil pointer behaves like Malloc.  When the
// block is already large enough the pointer is returned unchanged; note
// that this keeps the tail guard at its original offset.
func Realloc(p unsafe.Pointer, size uintptr) unsafe.Pointer {
	if track.State() == track.StateUninitialized {
		track.Initialize()
	}

	if p == nil {
		return allocate(size, track.TypeMalloc)
	}

	oldSize := track.MemorySize(uintptr(p))
	if oldSize >= size {
		return p
	}

	mem := allocate(size, track.TypeMalloc)
	if mem == nil {
		return nil
	}

	copy(unsafe.Slice((*byte)(mem), oldSize), unsafe.Slice((*byte)(p), oldSize))
	track.FreeMemory(uintptr(p), track.TypeFree)

	return mem
}

// Free releases a block obtained from Malloc, Calloc or Realloc.  A nil
// pointer is a no-op.
func Free(p unsafe.Pointer) {
	if p == nil {
		return
	}

	if track.State() == track.StateUninitialized {
		track.Initialize()
	}

	if track.State() == track.StateTracing {
		track.FreeMemory(uintptr(p), track.TypeFree)
	} else {
		track.FreeInitial(uintptr(p))
	}
}

// New is the scalar operator-new form; it panics with ErrOutOfMemory
// when the allocation fails.
func New(size uintptr) unsafe.Pointer {
	p := allocate(size, track.TypeNew)
	if p == nil {
		panic(ErrOutOfMemory)
	}
	return p
}

// NewNothrow is the non-throwing scalar form.
func NewNothrow(size uintptr) unsafe.Pointer {
	return allocate(size, track.TypeNew)
}

// NewArray is the array operator-new form.
func NewArray(size uintptr) unsafe.Pointer {
	p := allocate(size, track.TypeNewArray)
	if p == nil {
		panic(ErrOutOfMemory)
	}
	return p
}

// NewArrayNothrow is the non-throwing array form.
func NewArrayNothrow(size uintptr) unsafe.Pointer {
	return allocate(size, track.TypeNewArray)
}

// Delete releases a block obtained from New.
func Delete(p unsafe.Pointer) {
	track.FreeMemory(uintptr(p), track.TypeDelete)
}

// DeleteArray releases a block obtained from NewArray.
func DeleteArray(p unsafe.Pointer) {
	track.FreeMemory(uintptr(p), track.TypeDeleteArray)
}

// SizeOf returns the requested size of a pointer the checker handed
// out, or 0 for an unknown pointer.
func SizeOf(p unsafe.Pointer) uintptr {
	return track.MemorySize(uintptr(p))
}

// PosixMemalign is not handled; calling it terminates the process.
func PosixMemalign(memptr *unsafe.Pointer, alignment, size uintptr) int {
	track.ImmediateAbort("assertion", "posix_memalign() is not handled")
	return 0
}

// AlignedAlloc is not handled; calling it terminates the process.
func AlignedAlloc(alignment, size uintptr) unsafe.Pointer {
	track.ImmediateAbort("assertion", "aligned_alloc() is not handled")
	return nil
}

// Exit runs the termination report and delegates to the underlying
// exit primitive.
func Exit(status int) {
	if track.State() == track.StateUninitialized {
		track.Initialize()
	}
	if track.State() == track.StateTracing {
		track.Finalize()
	}
	track.Exit(status, false)
}

// ExitNow is the immediate form, interposing _exit and _Exit.
func ExitNow(status int) {
	if track.State() == track.StateUninitialized {
		track.Initialize()
	}
	if track.State() == track.StateTracing {
		track.Finalize()
	}
	track.Exit(status, true)
}
