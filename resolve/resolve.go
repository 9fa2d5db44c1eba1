// Package resolve turns captured counter arrays into human-readable,
// source-located stack text.  Each counter is fed to an external
// addr2line, with the preload environment scrubbed so the child's own
// allocations are not intercepted.  Results are memoized per resolver,
// which is why the reporter keeps a single resolver for the whole walk.
package resolve

import (
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/jsteemann/liblouse/msg"
	"github.com/jsteemann/liblouse/unwind"
)

// addr2linePath is fixed; there is deliberately no configuration knob
// for it.
var addr2linePath = "/usr/bin/addr2line"

// ownFrameMarkers name functions that belong to the checker itself (or
// to the C runtime below main); frames resolving to them are elided.
var ownFrameMarkers = []string{
	"jsteemann/liblouse",
	"__libc_start_main",
}

// headroom is the minimum free space the output buffer must retain for
// another frame; resolution stops early below it.
const headroom = 1024

type Resolver struct {
	cache     map[uintptr]string
	progname  string
	directory string
	modules   []module
	haveMaps  bool
}

func New() *Resolver {
	r := &Resolver{
		cache: make(map[uintptr]string),
	}
	r.determineProgname()
	r.determineDirectory()
	return r
}

// ResolveStack appends the formatted frames of a zero-terminated
// counter array to buf and returns the result, with the final newline
// trimmed.  A nil return means the stack was absent or a frame could
// not be resolved at all.
func (r *Resolver) ResolveStack(maxFrames int, useColors bool, buf []byte, stack uintptr) []byte {
	if stack == 0 {
		return nil
	}

	start := len(buf)
	frames := 0

	for i := 0; unwind.At(stack, i) != 0; i++ {
		if frames >= maxFrames {
			break
		}
		frames++

		pc := unwind.At(stack, i)

		line, ok := r.cache[pc]
		if !ok {
			line, ok = r.resolve(useColors, pc)
			if !ok {
				return nil
			}
			r.cache[pc] = line
		}
		buf = append(buf, line...)

		if cap(buf)-len(buf) < headroom {
			// about to run out of buffer space
			break
		}
	}

	if frames > 0 && len(buf) > start {
		buf = buf[:len(buf)-1]
	}
	return buf
}

// resolve produces the formatted line for one counter: look the module
// up, then ask addr2line.  Elided frames yield an empty line.
func (r *Resolver) resolve(useColors bool, pc uintptr) (string, bool) {
	mod, base := r.lookupModule(pc)
	if mod == "" || mod == r.progname {
		return r.addr2line(useColors, r.progname, pc)
	}
	return r.addr2line(useColors, mod, pc-base)
}

// addr2line runs the resolver binary for a single address and formats
// its output as "  # function (file:line)\n".  The second return is
// false if the child could not be run or produced nothing.
func (r *Resolver) addr2line(useColors bool, prog string, pc uintptr) (string, bool) {
	cmd := exec.Command(addr2linePath, "0x"+strconv.FormatUint(uint64(pc), 16), "-C", "-f", "-e", prog)
	// do not pass the preload environment to the child
	cmd.Env = []string{"LD_PRELOAD="}

	out, _ := cmd.CombinedOutput()
	if len(out) == 0 {
		return "", false
	}

	text := string(out)
	for _, marker := range ownFrameMarkers {
		if strings.Contains(text, marker) {
			return "", true
		}
	}

	function := text
	location := ""
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		function = text[:nl]
		location = strings.TrimSuffix(text[nl+1:], "\n")
	}

	if location == "" {
		return "  # " + function + "\n", true
	}

	location = strings.TrimPrefix(location, r.directory)

	var b strings.Builder
	b.WriteString("  # ")
	b.WriteString(function)
	if useColors {
		b.WriteString(" (" + msg.Cyellow + location + msg.Cnorm + ")\n")
	} else {
		b.WriteString(" (" + location + ")\n")
	}
	return b.String(), true
}

func (r *Resolver) determineProgname() {
	name, err := os.Readlink("/proc/self/exe")
	if err != nil {
		name = ""
	}
	r.progname = name
}

func (r *Resolver) determineDirectory() {
	dir, err := os.Getwd()
	if err != nil {
		dir = ""
	}
	r.directory = dir + "/"
}
