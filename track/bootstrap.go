package track

import (
	"unsafe"

	"github.com/jsteemann/liblouse/dispatch"
)

// The bootstrap pool records allocations served before the dispatch
// table is populated and before the tracker reaches the tracing state.
// Entries carry an 8-byte prefix holding the requested size.  The pool
// is only ever touched before the dynamic linker hands control to
// application code, so it needs no locking, and a linear scan is fine:
// occupancy is typically a handful of entries.

const initialPoolCapacity = 4096

var (
	initialPointers       [initialPoolCapacity]uintptr
	initialPointersLength int
)

const sizePrefix = unsafe.Sizeof(uintptr(0))

// AllocateInitial serves an allocation request during startup.  Pool
// exhaustion is unrecoverable.
func AllocateInitial(size uintptr) uintptr {
	if initialPointersLength == initialPoolCapacity {
		ImmediateAbort("allocation", "malloc: out of initialization memory")
	}

	mem := dispatch.Malloc(size + sizePrefix)
	if mem == 0 {
		return 0
	}

	*(*uintptr)(unsafe.Pointer(mem)) = size
	user := mem + sizePrefix
	initialPointers[initialPointersLength] = user
	initialPointersLength++

	return user
}

// FreeInitial releases a pool entry if p belongs to the pool, and
// reports whether it did.
func FreeInitial(p uintptr) bool {
	for i := 0; i < initialPointersLength; i++ {
		if initialPointers[i] != p {
			continue
		}
		dispatch.Free(p - sizePrefix)
		initialPointersLength--
		for j := i; j < initialPointersLength; j++ {
			initialPointers[j] = initialPointers[j+1]
		}
		return true
	}
	return false
}

// initialMemorySize returns the recorded size of a pool entry.
func initialMemorySize(p uintptr) (uintptr, bool) {
	for i := 0; i < initialPointersLength; i++ {
		if initialPointers[i] == p {
			return *(*uintptr)(unsafe.Pointer(p - sizePrefix)), true
		}
	}
	return 0, false
}
