package track

import (
	"hash/fnv"
	"os"
	"regexp"

	"golang.org/x/sys/unix"
)

var leakRegex *regexp.Regexp

// Finalize runs the termination report exactly once; later calls are
// no-ops.  It compiles the suppression filter, makes sure the output
// stream is still usable, and walks the registry for leaks.
func Finalize() {
	if !finalized.CompareAndSwap(false, true) {
		return
	}

	leakRegex = nil
	if config.suppressFilter != "" {
		if re, err := regexp.CompilePOSIX(config.suppressFilter); err == nil {
			leakRegex = re
		}
	}

	reopenOutput()
	printResults(allocations.begin())

	leakRegex = nil
}

// reopenOutput falls back to the controlling terminal when the
// configured stream has already been torn down underneath us.
func reopenOutput() {
	fd := int(printer.Output().Fd())
	if _, err := unix.FcntlInt(uintptr(fd), unix.F_GETFL, 0); err == nil {
		return
	}
	if tty, err := os.OpenFile("/dev/tty", os.O_WRONLY, 0); err == nil {
		printer.SetOutput(tty)
	}
}

func printResults(heapStart uintptr) {
	printer.Line("")
	printer.Line("RESULTS --------------------------------------------------------")
	printer.Line("")

	num, size := allocations.totals()

	printer.Line("# total number of allocations: %d", num)
	printer.Line("# total size of allocations: %d", size)

	if allocations.isCorrupted(heapStart) {
		printer.Error("check", "heap is corrupted - leak checking is not possible")
		return
	}

	if config.withLeaks {
		printLeaks(heapStart)
	}

	printer.Line("")
}

func suppressLeak(text []byte) bool {
	if leakRegex == nil || len(text) == 0 {
		return false
	}
	return leakRegex.Match(text)
}

// printLeaks walks the registry from the saved head.  Leaks whose
// resolved trace was already reported are only counted; the walk stops
// once maxLeaks distinct call sites have been printed.
func printLeaks(heapStart uintptr) {
	r := newResolver()
	seen := make(map[uint64]struct{})
	buf := make([]byte, 0, 16384)

	var numLeaks, numDuplicates, sizeLeaks uint64
	truncated := false

	for mem := heapStart; mem != 0; {
		a := asAllocation(mem)

		stack := r.ResolveStack(config.maxFrames, printer.Colors(), buf[:0], a.stack)

		if suppressLeak(stack) {
			mem = a.next
			continue
		}

		h := fnv.New64a()
		h.Write(stack)
		key := h.Sum64()

		if _, dup := seen[key]; dup {
			numDuplicates++
			sizeLeaks += uint64(a.size)
			mem = a.next
			continue
		}
		seen[key] = struct{}{}

		printer.Error("check",
			"leak of size %d byte(s), allocated with via %s:", a.size, a.atype)
		if stack != nil {
			printer.Line("%s", stack)
		} else {
			printer.Line("  # no stack available")
		}

		numLeaks++
		sizeLeaks += uint64(a.size)

		if numLeaks >= uint64(config.maxLeaks) {
			truncated = true
			break
		}

		mem = a.next
	}

	if truncated {
		printer.Error("check",
			"too many leaks - reporting stopped after %d unique leak(s)", config.maxLeaks)
		return
	}

	if sizeLeaks == 0 {
		printer.Line("# no leaks found")
	} else {
		printer.Error("check",
			"found %d unique leaks(s), %d duplicates, with total size of %d byte(s)",
			numLeaks, numDuplicates, sizeLeaks)
	}
}
