package track

import (
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/jsteemann/liblouse/dispatch"
	"github.com/jsteemann/liblouse/msg"
	"github.com/jsteemann/liblouse/resolve"
	"github.com/jsteemann/liblouse/unwind"
)

// Tracker states.  Transitions run strictly forward; every interposer
// entry point reads the state before picking its path.
const (
	StateUninitialized uint32 = iota
	StateInitializing
	StateHooked
	StateTracing
)

var (
	state     atomic.Uint32
	finalized atomic.Bool

	allocations heap
	config      = defaultConfiguration()
	printer     = msg.NewPrinter()

	resolverMu sync.Mutex
	resolver   stackResolver
)

// stackResolver is what the diagnostic paths need from the resolve
// package; the indirection lets tests substitute a deterministic one.
type stackResolver interface {
	ResolveStack(maxFrames int, useColors bool, buf []byte, stack uintptr) []byte
}

var newResolver = func() stackResolver {
	return resolve.New()
}

// osAbort is split out so the fatal paths can be observed in tests.
var osAbort = func() {
	unix.Kill(unix.Getpid(), unix.SIGABRT)
	os.Exit(134)
}

func State() uint32 {
	return state.Load()
}

// Configure reads the LOUSE_* environment variables.  Called once at
// library load, before tracing starts.
func Configure() {
	config.fromEnvironment()
}

// Initialize drives UNINITIALIZED -> INITIALIZING -> HOOKED.  It is
// idempotent and safe to call from any interposer entry point that
// observes the uninitialized state.  While resolution is underway the
// dispatch table holds stubs that refuse to allocate, so allocations
// made by the loader itself land in the bootstrap pool.
func Initialize() {
	if state.Load() != StateUninitialized {
		return
	}
	state.Store(StateInitializing)

	dispatch.InstallStubs()
	if err := dispatch.Resolve(); err != nil {
		ImmediateAbort("init", err.Error())
	}

	state.Store(StateHooked)
}

// StartTracing enters the tracing state.  Called once, after
// Initialize, when the tracker is fully constructed.
func StartTracing() {
	state.Store(StateTracing)
}

// ImmediateAbort prints a single error line and terminates the process.
func ImmediateAbort(kind string, message string) {
	printer.Error(kind, "%s", message)
	osAbort()
}

// Allocate reserves a guarded, tracked block and returns its user
// region.  If the underlying allocator fails, or tracing has not
// started, the raw result is handed back untouched and the caller is
// responsible for errno or for raising an allocation failure.
func Allocate(size uintptr, atype AccessType) uintptr {
	actual := size + totalOverhead()
	mem := dispatch.Malloc(actual)

	if mem == 0 || state.Load() != StateTracing {
		return mem
	}

	a := asAllocation(mem)
	a.init(size, atype)

	if config.withTraces {
		a.stack = unwind.Capture(config.maxFrames)
	}

	allocations.add(a)

	return a.memory()
}

// FreeMemory validates and releases a block.  Diagnostics are printed
// for an invalid pointer, a release tag that does not pair with the
// origin, and a tripped tail guard; the block is released regardless so
// the host can proceed.
func FreeMemory(p uintptr, atype AccessType) {
	if p == 0 {
		return
	}

	if initialPointersLength > 0 {
		if FreeInitial(p) {
			return
		}
	}

	if state.Load() != StateTracing {
		dispatch.Free(p)
		return
	}

	a := headerOf(p)

	if !a.isOwnSignatureValid() {
		printer.Error("runtime",
			"%s called with invalid memory pointer %#x", atype, p)
		printCurrentStack()
	} else {
		if atype != matchingFreeType(a.atype) {
			printer.Error("runtime",
				"trying to %s memory pointer %#x that was originally allocated via %s",
				atype, p, a.atype)
			printCurrentStack()
			printAllocationSite(a, p)
		}

		if !a.isTailSignatureValid() {
			printer.Error("runtime",
				"buffer overrun after memory pointer %#x of size %d that was originally allocated via %s",
				p, a.size, a.atype)
			printCurrentStack()
			printAllocationSite(a, p)
		}
	}

	allocations.remove(a)

	a.wipeSignature()

	if a.stack != 0 {
		dispatch.Free(a.stack)
	}
	dispatch.Free(a.base())
}

// MemorySize returns the requested size of a pointer the engine handed
// out, or 0 for an unknown pointer.
func MemorySize(p uintptr) uintptr {
	if size, ok := initialMemorySize(p); ok {
		return size
	}

	a := headerOf(p)
	if a.isOwnSignatureValid() {
		return a.size
	}

	// unknown memory
	return 0
}

// Exit hands control to the underlying termination primitive.  The
// immediate form must not return; if it does, something is badly wrong
// and we abort.
func Exit(status int, immediately bool) {
	if !immediately {
		dispatch.Exit(status)
	}
	dispatch.ExitNow(status)
	ImmediateAbort("exit", "underlying exit did not terminate")
}

func printAllocationSite(a *allocation, p uintptr) {
	if a.stack == 0 {
		return
	}
	printer.Line("")
	printer.Line("original allocation site of memory pointer %#x via %s:", p, a.atype)
	printStack(a.stack)
}

// printCurrentStack resolves and prints the caller's stack without
// going through the interposed heap for the counter array.
func printCurrentStack() {
	var pcs [unwindBufferSlots]uintptr
	if !unwind.CaptureInto(config.maxFrames, pcs[:]) {
		return
	}
	printStack(uintptr(unsafe.Pointer(&pcs[0])))
	runtime.KeepAlive(&pcs)
}

const unwindBufferSlots = 64

func printStack(stack uintptr) {
	if stack == 0 {
		return
	}

	resolverMu.Lock()
	defer resolverMu.Unlock()

	if resolver == nil {
		resolver = newResolver()
	}

	buf := make([]byte, 0, 4096)
	out := resolver.ResolveStack(config.maxFrames, printer.Colors(), buf, stack)
	if out != nil {
		printer.Line("%s", out)
	}
}
