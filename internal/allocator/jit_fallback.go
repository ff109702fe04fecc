//go:build !(linux || darwin || freebsd || windows)

package allocator

// plainChunk backs AllocateChunk on platforms without an mmap/VirtualAlloc
// binding in this package. It never actually becomes non-writable: callers
// still get a correct W^X *protocol* (SetReadableExecutable must be called
// before the engine treats the chunk as runnable) but no hardware
// enforcement, matching the "Fallback" trade-off spec §4.6 describes for
// linear memories, here applied to JIT chunks.
type plainChunk struct {
	mem []byte
}

func newChunkImpl(n int) (chunkImpl, error) {
	return &plainChunk{mem: make([]byte, n)}, nil
}

func (c *plainChunk) Bytes() []byte             { return c.mem }
func (c *plainChunk) SetReadableWritable() error   { return nil }
func (c *plainChunk) SetReadableExecutable() error { return nil }
func (c *plainChunk) Release() error               { c.mem = nil; return nil }
