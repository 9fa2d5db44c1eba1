package resolve

import (
	"os"
	"strconv"
	"strings"
)

// module is one mapped object from /proc/self/maps; base is the lowest
// mapping start seen for its path.
type module struct {
	start, end uintptr
	path       string
	base       uintptr
}

// lookupModule finds the mapped object containing pc.  It returns an
// empty path when the mapping is unknown or anonymous, which makes the
// caller fall back to the main executable with the raw address.
func (r *Resolver) lookupModule(pc uintptr) (string, uintptr) {
	if !r.haveMaps {
		r.modules = readMaps("/proc/self/maps")
		r.haveMaps = true
	}

	for _, m := range r.modules {
		if pc >= m.start && pc < m.end {
			return m.path, m.base
		}
	}
	return "", 0
}

func readMaps(path string) []module {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var mods []module
	bases := make(map[string]uintptr)

	for _, line := range strings.Split(string(data), "\n") {
		// start-end perms offset dev inode path
		fields := strings.Fields(line)
		if len(fields) < 6 {
			continue
		}
		name := fields[5]
		if !strings.HasPrefix(name, "/") {
			continue
		}

		dash := strings.IndexByte(fields[0], '-')
		if dash < 0 {
			continue
		}
		start, err1 := strconv.ParseUint(fields[0][:dash], 16, 64)
		end, err2 := strconv.ParseUint(fields[0][dash+1:], 16, 64)
		if err1 != nil || err2 != nil {
			continue
		}

		if _, seen := bases[name]; !seen {
			bases[name] = uintptr(start)
		}
		mods = append(mods, module{
			start: uintptr(start),
			end:   uintptr(end),
			path:  name,
			base:  bases[name],
		})
	}
	return mods
}
