//go:build linux || darwin || freebsd

package allocator

import (
	"fmt"

	"golang.org/x/sys/unix"
)

type unixChunk struct {
	mem []byte
}

func newChunkImpl(n int) (chunkImpl, error) {
	mem, err := unix.Mmap(-1, 0, n, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("allocator: mmap %d byte chunk: %w", n, err)
	}
	return &unixChunk{mem: mem}, nil
}

func (c *unixChunk) Bytes() []byte { return c.mem }

func (c *unixChunk) SetReadableWritable() error {
	return unix.Mprotect(c.mem, unix.PROT_READ|unix.PROT_WRITE)
}

func (c *unixChunk) SetReadableExecutable() error {
	return unix.Mprotect(c.mem, unix.PROT_READ|unix.PROT_EXEC)
}

func (c *unixChunk) Release() error {
	return unix.Munmap(c.mem)
}
