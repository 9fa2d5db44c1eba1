package track

import (
	"fmt"
	"os"
	"runtime"
	"testing"

	"github.com/jsteemann/liblouse/dispatch"
	"github.com/jsteemann/liblouse/dispatch/dispatchtest"
	"github.com/jsteemann/liblouse/unwind"
)

// resetDispatchToStubs swaps the refuse-to-allocate stubs in, restoring
// the previous table afterwards.
func resetDispatchToStubs(t *testing.T) dispatch.Table {
	t.Helper()
	saved := dispatch.Current()
	dispatch.InstallStubs()
	t.Cleanup(func() { dispatch.Install(saved) })
	return saved
}

// resetEngine puts the engine into a fresh tracing state backed by the
// test allocator and a deterministic resolver, and restores everything
// when the test ends.
func resetEngine(t *testing.T) *dispatchtest.Allocator {
	t.Helper()

	alloc := dispatchtest.Install(t)

	state.Store(StateTracing)
	finalized.Store(false)
	allocations = heap{}
	config = defaultConfiguration()
	leakRegex = nil
	resolver = nil
	initialPointersLength = 0

	savedNew := newResolver
	savedAbort := osAbort
	newResolver = func() stackResolver { return symResolver{} }
	osAbort = func() {}
	t.Cleanup(func() {
		newResolver = savedNew
		osAbort = savedAbort
		resolver = nil
		state.Store(StateUninitialized)
	})

	return alloc
}

// captureOutput runs fn with the printer redirected into a temp file
// and returns what was written.
func captureOutput(t *testing.T, fn func()) string {
	t.Helper()

	f, err := os.CreateTemp(t.TempDir(), "louse-out-*")
	if err != nil {
		t.Fatalf("%v", err)
	}
	defer f.Close()

	saved := printer.Output()
	printer.SetOutput(f)
	defer printer.SetOutput(saved)

	fn()

	data, err := os.ReadFile(f.Name())
	if err != nil {
		t.Fatalf("%v", err)
	}
	return string(data)
}

// symResolver resolves counters from the runtime's own tables, so the
// tests neither spawn subprocesses nor depend on an addr2line binary.
type symResolver struct{}

func (symResolver) ResolveStack(maxFrames int, useColors bool, buf []byte, stack uintptr) []byte {
	if stack == 0 {
		return nil
	}

	start := len(buf)
	for i := 0; unwind.At(stack, i) != 0 && i < maxFrames; i++ {
		pc := unwind.At(stack, i)
		name := "??"
		if fn := runtime.FuncForPC(pc); fn != nil {
			name = fn.Name()
		}
		buf = append(buf, fmt.Sprintf("  # %s (test:0)\n", name)...)
	}
	if len(buf) > start {
		buf = buf[:len(buf)-1]
	}
	return buf
}
