package allocator

// Chunk is an executable-memory region for AOT-compiled code, transitioned
// through RW -> RX and never simultaneously writable and executable (spec
// §4.6, §9 "JIT permission model"). The engine always writes code under RW,
// flips to RX before any execution, and a chunk transition invalidates any
// existing writable mapping (so callers must not retain a slice obtained
// before the most recent SetReadableExecutable/SetReadableWritable call).
type Chunk struct {
	impl chunkImpl
	// released guards against double-release, mirroring the teacher's
	// MunmapCodeSegment contract (internal/platform/mmap_test.go:
	// "Double munmap should fail").
	released bool
}

type chunkImpl interface {
	// Bytes returns the chunk's current mapping. Valid only in the
	// permission mode most recently requested.
	Bytes() []byte
	SetReadableWritable() error
	SetReadableExecutable() error
	Release() error
}

// AllocateChunk reserves n bytes of memory for JIT code, initially mapped
// RW so the caller can write the compiled body before flipping it
// executable. n must be nonzero.
func AllocateChunk(n int) (*Chunk, error) {
	if n == 0 {
		panic("BUG: AllocateChunk with zero length")
	}
	impl, err := newChunkImpl(n)
	if err != nil {
		return nil, err
	}
	return &Chunk{impl: impl}, nil
}

// Bytes returns the chunk's memory in its current permission mode.
func (c *Chunk) Bytes() []byte { return c.impl.Bytes() }

// SetReadableWritable flips the chunk back to RW, e.g. to patch a
// relocation after a grow. Never coexists with execute permission (W^X).
func (c *Chunk) SetReadableWritable() error { return c.impl.SetReadableWritable() }

// SetReadableExecutable flips the chunk to RX. The engine must call this,
// and its accompanying cache-flush barrier, before executing any code
// written into the chunk.
func (c *Chunk) SetReadableExecutable() error { return c.impl.SetReadableExecutable() }

// Release frees the chunk. A Chunk must not be released twice.
func (c *Chunk) Release() error {
	if c.released {
		panic("BUG: Chunk released twice")
	}
	c.released = true
	return c.impl.Release()
}
