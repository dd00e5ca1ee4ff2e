//go:build windows

package buffer

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

// allocArena reserves and commits an anonymous, page-aligned region of size
// bytes via VirtualAlloc to back the PageBuffer's frame pool.
func allocArena(size int) ([]byte, error) {
	addr, err := windows.VirtualAlloc(0, uintptr(size), windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return nil, err
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size), nil
}

// freeArena releases a region created by allocArena.
func freeArena(data []byte) error {
	if data == nil {
		return nil
	}
	addr := uintptr(unsafe.Pointer(&data[0]))
	return windows.VirtualFree(addr, 0, windows.MEM_RELEASE)
}
