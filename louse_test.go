package louse_test

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	louse "github.com/jsteemann/liblouse"
	"github.com/jsteemann/liblouse/dispatch/dispatchtest"
)

func TestMallocFreeRoundtrip(t *testing.T) {
	alloc := dispatchtest.Install(t)

	p := louse.Malloc(100)
	require.NotNil(t, p)
	require.Equal(t, uintptr(100), louse.SizeOf(p))
	require.Zero(t, uintptr(p)%16)

	louse.Free(p)
	require.Zero(t, alloc.Live())
}

func TestMallocZero(t *testing.T) {
	dispatchtest.Install(t)

	p := louse.Malloc(0)
	require.NotNil(t, p)
	require.Zero(t, louse.SizeOf(p))
	louse.Free(p)
}

func TestFreeNil(t *testing.T) {
	dispatchtest.Install(t)
	louse.Free(nil)
}

func TestCallocZeroes(t *testing.T) {
	alloc := dispatchtest.Install(t)

	p := louse.Calloc(4, 8)
	require.NotNil(t, p)
	for _, b := range dispatchtest.Bytes(uintptr(p), 32) {
		require.Zero(t, b)
	}

	louse.Free(p)
	require.Zero(t, alloc.Live())
}

func TestReallocNilIsMalloc(t *testing.T) {
	alloc := dispatchtest.Install(t)

	p := louse.Realloc(nil, 40)
	require.NotNil(t, p)
	require.Equal(t, uintptr(40), louse.SizeOf(p))

	louse.Free(p)
	require.Zero(t, alloc.Live())
}

func TestReallocShrinkKeepsPointer(t *testing.T) {
	alloc := dispatchtest.Install(t)

	p := louse.Malloc(100)
	require.NotNil(t, p)

	require.Equal(t, p, louse.Realloc(p, 50))
	require.Equal(t, p, louse.Realloc(p, 100))
	// the recorded size stays at the original request
	require.Equal(t, uintptr(100), louse.SizeOf(p))

	louse.Free(p)
	require.Zero(t, alloc.Live())
}

func TestReallocGrowCopies(t *testing.T) {
	alloc := dispatchtest.Install(t)

	p := louse.Malloc(100)
	require.NotNil(t, p)

	buf := dispatchtest.Bytes(uintptr(p), 100)
	for i := range buf {
		buf[i] = byte(i)
	}

	q := louse.Realloc(p, 200)
	require.NotNil(t, q)
	require.NotEqual(t, p, q)
	require.Equal(t, uintptr(200), louse.SizeOf(q))

	moved := dispatchtest.Bytes(uintptr(q), 100)
	for i := range moved {
		require.Equal(t, byte(i), moved[i], "byte %d", i)
	}

	louse.Free(q)
	require.Zero(t, alloc.Live())
}

func TestOperatorForms(t *testing.T) {
	alloc := dispatchtest.Install(t)

	p := louse.New(32)
	require.NotNil(t, p)
	louse.Delete(p)

	q := louse.NewArray(32)
	require.NotNil(t, q)
	louse.DeleteArray(q)

	require.Zero(t, alloc.Live())
}

func TestNewPanicsOnFailure(t *testing.T) {
	alloc := dispatchtest.Install(t)

	alloc.FailNext = true
	require.PanicsWithValue(t, louse.ErrOutOfMemory, func() {
		louse.New(16)
	})

	alloc.FailNext = true
	require.Nil(t, louse.NewNothrow(16))
}

func TestSizeOfUnknownPointer(t *testing.T) {
	dispatchtest.Install(t)

	// keep the probed header bytes inside the buffer; they are zeroed,
	// which is not a valid signature
	var local [64]byte
	require.Zero(t, louse.SizeOf(unsafe.Pointer(&local[56])))
}
