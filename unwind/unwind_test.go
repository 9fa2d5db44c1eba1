package unwind

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jsteemann/liblouse/dispatch"
	"github.com/jsteemann/liblouse/dispatch/dispatchtest"
)

//go:noinline
func captureHere(maxFrames int) uintptr {
	return Capture(maxFrames)
}

func TestCaptureReturnsTerminatedArray(t *testing.T) {
	dispatchtest.Install(t)

	pcs := captureHere(16)
	require.NotZero(t, pcs)
	defer dispatch.Free(pcs)

	n := 0
	for At(pcs, n) != 0 {
		n++
		require.Less(t, n, 64)
	}
	require.GreaterOrEqual(t, n, 1)
}

func TestCaptureHonorsFrameLimit(t *testing.T) {
	dispatchtest.Install(t)

	pcs := captureHere(1)
	require.NotZero(t, pcs)
	defer dispatch.Free(pcs)

	n := 0
	for At(pcs, n) != 0 {
		n++
	}
	// one requested frame plus the two trimmed helpers, minus the
	// dropped leading frame
	require.LessOrEqual(t, n, 2)
}

func TestCaptureFailsWithoutAllocator(t *testing.T) {
	saved := dispatch.Current()
	dispatch.InstallStubs()
	defer dispatch.Install(saved)

	require.Zero(t, captureHere(16))
}

func TestCaptureInto(t *testing.T) {
	var buf [32]uintptr

	require.True(t, CaptureInto(16, buf[:]))
	require.NotZero(t, buf[0])

	n := 0
	for buf[n] != 0 {
		n++
	}
	require.Less(t, n, len(buf))
}

func TestCaptureIntoTinyBuffer(t *testing.T) {
	var buf [2]uintptr

	require.True(t, CaptureInto(16, buf[:]))
	require.NotZero(t, buf[0])
	require.Zero(t, buf[1])
}
