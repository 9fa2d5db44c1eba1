// Package dispatch holds the resolved entry points of the underlying
// allocator and termination primitives.  The tracker routes every
// engine-internal allocation through this table, never back through the
// interposer surface.
//
// Until Resolve has run, the table contains stubs that refuse to
// allocate.  An allocation arriving while resolution is still underway
// therefore fails over to the tracker's bootstrap pool instead of
// re-entering the resolution machinery.
package dispatch

// Table is the set of underlying primitives.  The pointers are written
// once, by Resolve (or by Install in tests); after that they are only
// read.
type Table struct {
	Malloc  func(size uintptr) uintptr
	Calloc  func(nmemb, size uintptr) uintptr
	Realloc func(p uintptr, size uintptr) uintptr
	Free    func(p uintptr)
	Exit    func(status int)
	ExitNow func(status int)
}

var (
	Malloc  = nullMalloc
	Calloc  = nullCalloc
	Realloc = nullRealloc
	Free    = nullFree
	Exit    = nullExit
	ExitNow = nullExit
)

// InstallStubs resets the table to the refuse-to-allocate stubs.
func InstallStubs() {
	Install(Table{})
}

// Install replaces the table.  Nil entries fall back to the stubs.
func Install(t Table) {
	Malloc = t.Malloc
	if Malloc == nil {
		Malloc = nullMalloc
	}
	Calloc = t.Calloc
	if Calloc == nil {
		Calloc = nullCalloc
	}
	Realloc = t.Realloc
	if Realloc == nil {
		Realloc = nullRealloc
	}
	Free = t.Free
	if Free == nil {
		Free = nullFree
	}
	Exit = t.Exit
	if Exit == nil {
		Exit = nullExit
	}
	ExitNow = t.ExitNow
	if ExitNow == nil {
		ExitNow = nullExit
	}
}

// Current returns the installed table, for save/restore in tests.
func Current() Table {
	return Table{
		Malloc:  Malloc,
		Calloc:  Calloc,
		Realloc: Realloc,
		Free:    Free,
		Exit:    Exit,
		ExitNow: ExitNow,
	}
}

// startup replacements; they refuse to allocate so that early callers
// fall back to the bootstrap pool.

func nullMalloc(uintptr) uintptr { return 0 }

func nullCalloc(uintptr, uintptr) uintptr { return 0 }

func nullRealloc(uintptr, uintptr) uintptr { return 0 }

func nullFree(uintptr) {}

func nullExit(int) {}
