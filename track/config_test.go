package track

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigurationDefaults(t *testing.T) {
	c := defaultConfiguration()
	require.True(t, c.withLeaks)
	require.True(t, c.withTraces)
	require.Equal(t, 16, c.maxFrames)
	require.Equal(t, 100, c.maxLeaks)
	require.Equal(t, "", c.suppressFilter)
}

func TestConfigurationBooleans(t *testing.T) {
	tests := []struct {
		value string
		def   bool
		want  bool
	}{
		{"on", false, true},
		{"1", false, true},
		{"true", false, true},
		{"yes", false, true},
		{"off", true, false},
		{"0", true, false},
		{"false", true, false},
		{"no", true, false},
		{"bogus", true, true},
		{"bogus", false, false},
		{"", true, true},
		{"ON", false, false}, // case-sensitive, like the original
	}
	for _, test := range tests {
		require.Equal(t, test.want, toBoolean(test.value, test.def),
			"toBoolean(%q, %v)", test.value, test.def)
	}
}

func TestConfigurationNumbers(t *testing.T) {
	tests := []struct {
		value string
		want  int
	}{
		{"5", 5},
		{"1", 1},
		{"0", 1},
		{"-3", 1},
		{"junk", 42},
		{"", 42},
	}
	for _, test := range tests {
		require.Equal(t, test.want, toNumber(test.value, 42),
			"toNumber(%q)", test.value)
	}
}

func TestConfigurationFromEnvironment(t *testing.T) {
	t.Setenv("LOUSE_WITHLEAKS", "off")
	t.Setenv("LOUSE_WITHTRACES", "no")
	t.Setenv("LOUSE_FILTER", "noise.*")
	t.Setenv("LOUSE_MAXFRAMES", "7")
	t.Setenv("LOUSE_MAXLEAKS", "3")

	c := defaultConfiguration()
	c.fromEnvironment()

	require.False(t, c.withLeaks)
	require.False(t, c.withTraces)
	require.Equal(t, "noise.*", c.suppressFilter)
	require.Equal(t, 7, c.maxFrames)
	require.Equal(t, 3, c.maxLeaks)
}

func TestConfigurationBadValues(t *testing.T) {
	// unparseable values keep the defaults; out-of-range numbers are
	// clamped to 1
	t.Setenv("LOUSE_WITHLEAKS", "maybe")
	t.Setenv("LOUSE_MAXFRAMES", "many")
	t.Setenv("LOUSE_MAXLEAKS", "-1")

	c := defaultConfiguration()
	c.fromEnvironment()

	require.True(t, c.withLeaks)
	require.Equal(t, 16, c.maxFrames)
	require.Equal(t, 1, c.maxLeaks)
}
