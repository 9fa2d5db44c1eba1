package track

import (
	"os"
	"strconv"
)

// configuration mirrors the louse command line: --with-leaks,
// --with-traces, --suppress, --max-frames, --max-leaks.  Inside the
// host process everything arrives through LOUSE_* environment
// variables.
type configuration struct {
	suppressFilter string
	withLeaks      bool
	withTraces     bool
	maxFrames      int
	maxLeaks       int
}

func defaultConfiguration() configuration {
	return configuration{
		withLeaks:  true,
		withTraces: true,
		maxFrames:  16,
		maxLeaks:   100,
	}
}

func (c *configuration) fromEnvironment() {
	if value, ok := os.LookupEnv("LOUSE_WITHLEAKS"); ok {
		c.withLeaks = toBoolean(value, c.withLeaks)
	}
	if value, ok := os.LookupEnv("LOUSE_WITHTRACES"); ok {
		c.withTraces = toBoolean(value, c.withTraces)
	}
	if value, ok := os.LookupEnv("LOUSE_FILTER"); ok {
		c.suppressFilter = value
	}
	if value, ok := os.LookupEnv("LOUSE_MAXFRAMES"); ok {
		c.maxFrames = toNumber(value, c.maxFrames)
	}
	if value, ok := os.LookupEnv("LOUSE_MAXLEAKS"); ok {
		c.maxLeaks = toNumber(value, c.maxLeaks)
	}
}

func toBoolean(value string, defaultValue bool) bool {
	switch value {
	case "on", "1", "true", "yes":
		return true
	case "off", "0", "false", "no":
		return false
	}
	return defaultValue
}

func toNumber(value string, defaultValue int) int {
	v, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	if v < 1 {
		v = 1
	}
	return v
}
