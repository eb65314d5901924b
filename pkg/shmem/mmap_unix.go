//go:build !windows

package shmem

import (
	"golang.org/x/sys/unix"
)

func mmap(size int) ([]byte, error) {
	return unix.Mmap(-1, 0, size,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_SHARED|unix.MAP_ANONYMOUS)
}

func munmap(data []byte) error {
	return unix.Munmap(data)
}
