//go:build windows

package allocator

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

type windowsChunk struct {
	base uintptr
	size int
}

func newChunkImpl(n int) (chunkImpl, error) {
	base, err := windows.VirtualAlloc(0, uintptr(n), windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return nil, fmt.Errorf("allocator: VirtualAlloc %d byte chunk: %w", n, err)
	}
	return &windowsChunk{base: base, size: n}, nil
}

func (c *windowsChunk) Bytes() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(c.base)), c.size)
}

func (c *windowsChunk) SetReadableWritable() error {
	var old uint32
	return windows.VirtualProtect(c.base, uintptr(c.size), windows.PAGE_READWRITE, &old)
}

func (c *windowsChunk) SetReadableExecutable() error {
	var old uint32
	return windows.VirtualProtect(c.base, uintptr(c.size), windows.PAGE_EXECUTE_READ, &old)
}

func (c *windowsChunk) Release() error {
	return windows.VirtualFree(c.base, 0, windows.MEM_RELEASE)
}
