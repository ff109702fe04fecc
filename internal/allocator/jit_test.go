package allocator

import (
	"testing"

	"github.com/wasmforge/wasmforge/internal/testing/require"
)

func TestAllocateChunk_panicsOnZeroLength(t *testing.T) {
	captured := require.CapturePanic(func() {
		_, _ = AllocateChunk(0)
	})
	require.EqualError(t, captured, "BUG: AllocateChunk with zero length")
}

func TestChunk_writeThenExecutePermissions(t *testing.T) {
	c, err := AllocateChunk(4096)
	require.NoError(t, err)
	defer c.Release()

	copy(c.Bytes(), []byte{0x90, 0x90, 0x90, 0x90}) // NOP sled; RW at this point.
	require.NoError(t, c.SetReadableExecutable())
	require.NoError(t, c.SetReadableWritable()) // flip back, e.g. to patch a relocation.
	copy(c.Bytes(), []byte{0xc3})                // RET
	require.NoError(t, c.SetReadableExecutable())
}

func TestChunk_releaseTwicePanics(t *testing.T) {
	c, err := AllocateChunk(4096)
	require.NoError(t, err)
	require.NoError(t, c.Release())

	captured := require.CapturePanic(func() {
		_ = c.Release()
	})
	require.EqualError(t, captured, "BUG: Chunk released twice")
}
