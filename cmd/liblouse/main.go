// liblouse is the preloadable build of the checker.  Build it with
//
//	go build -buildmode=c-shared -o liblouse.so ./cmd/liblouse
//
// and run the target program with LD_PRELOAD pointing at the result
// (the louse launcher does exactly that).  The exported symbols match
// the C names, so dynamic linking resolves them ahead of libc; the
// engine fetches the underlying definitions through the dispatch
// table.
package main

/*
#include <stddef.h>

extern void louse_set_enomem(void);
*/
import "C"

import (
	"unsafe"

	louse "github.com/jsteemann/liblouse"
)

//export malloc
func malloc(size C.size_t) unsafe.Pointer {
	p := louse.Malloc(uintptr(size))
	if p == nil {
		setENOMEM()
	}
	return p
}

//export calloc
func calloc(nmemb, size C.size_t) unsafe.Pointer {
	p := louse.Calloc(uintptr(nmemb), uintptr(size))
	if p == nil {
		setENOMEM()
	}
	return p
}

//export realloc
func realloc(p unsafe.Pointer, size C.size_t) unsafe.Pointer {
	q := louse.Realloc(p, uintptr(size))
	if q == nil {
		setENOMEM()
	}
	return q
}

//export free
func free(p unsafe.Pointer) {
	louse.Free(p)
}

//export posix_memalign
func posix_memalign(memptr *unsafe.Pointer, alignment, size C.size_t) C.int {
	louse.PosixMemalign(memptr, uintptr(alignment), uintptr(size))
	return 0
}

//export aligned_alloc
func aligned_alloc(alignment, size C.size_t) unsafe.Pointer {
	return louse.AlignedAlloc(uintptr(alignment), uintptr(size))
}

// the Itanium-mangled operator forms; a throw cannot cross the cgo
// boundary, so the throwing forms do not throw: like the C ones they
// return nil and set errno to ENOMEM.

//export _Znwm
func _Znwm(size C.size_t) unsafe.Pointer {
	p := louse.NewNothrow(uintptr(size))
	if p == nil {
		setENOMEM()
	}
	return p
}

//export _Znam
func _Znam(size C.size_t) unsafe.Pointer {
	p := louse.NewArrayNothrow(uintptr(size))
	if p == nil {
		setENOMEM()
	}
	return p
}

//export _ZdlPv
func _ZdlPv(p unsafe.Pointer) {
	louse.Delete(p)
}

//export _ZdaPv
func _ZdaPv(p unsafe.Pointer) {
	louse.DeleteArray(p)
}

//export exit
func exit(status C.int) {
	louse.Exit(int(status))
}

//export _exit
func _exit(status C.int) {
	louse.ExitNow(int(status))
}

//export _Exit
func _Exit(status C.int) {
	louse.ExitNow(int(status))
}

func main() {}
