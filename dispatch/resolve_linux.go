//go:build linux

package dispatch

import (
	"fmt"

	"github.com/ebitengine/purego"
)

// Resolve looks up the underlying malloc, calloc, realloc, free, exit
// and _exit in libc and installs them.  purego has no RTLD_NEXT
// pseudo-handle, so the "next object in the link chain" lookup is
// expressed as an explicit dlopen of libc; for a preloaded checker the
// two resolve to the same definitions.
func Resolve() error {
	libc, err := purego.Dlopen("libc.so.6", purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return fmt.Errorf("cannot open libc: %w", err)
	}

	sym := func(name string) (uintptr, error) {
		addr, err := purego.Dlsym(libc, name)
		if err != nil || addr == 0 {
			return 0, fmt.Errorf("cannot find %s()", name)
		}
		return addr, nil
	}

	malloc, err := sym("malloc")
	if err != nil {
		return err
	}
	calloc, err := sym("calloc")
	if err != nil {
		return err
	}
	realloc, err := sym("realloc")
	if err != nil {
		return err
	}
	free, err := sym("free")
	if err != nil {
		return err
	}
	exit, err := sym("exit")
	if err != nil {
		return err
	}
	exitNow, err := sym("_exit")
	if err != nil {
		return err
	}

	Install(Table{
		Malloc: func(size uintptr) uintptr {
			r, _, _ := purego.SyscallN(malloc, size)
			return r
		},
		Calloc: func(nmemb, size uintptr) uintptr {
			r, _, _ := purego.SyscallN(calloc, nmemb, size)
			return r
		},
		Realloc: func(p uintptr, size uintptr) uintptr {
			r, _, _ := purego.SyscallN(realloc, p, size)
			return r
		},
		Free: func(p uintptr) {
			purego.SyscallN(free, p)
		},
		Exit: func(status int) {
			purego.SyscallN(exit, uintptr(status))
		},
		ExitNow: func(status int) {
			purego.SyscallN(exitNow, uintptr(status))
		},
	})
	return nil
}
