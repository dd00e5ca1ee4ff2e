//go:build unix || darwin || linux || freebsd || openbsd || netbsd

package buffer

import "golang.org/x/sys/unix"

// allocArena reserves an anonymous, page-aligned mapping of size bytes to
// back the PageBuffer's frame pool.
func allocArena(size int) ([]byte, error) {
	return unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
}

// freeArena releases a mapping created by allocArena.
func freeArena(data []byte) error {
	if data == nil {
		return nil
	}
	return unix.Munmap(data)
}
