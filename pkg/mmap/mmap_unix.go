//go:build linux || darwin

package mmap

import (
	"os"

	"golang.org/x/sys/unix"
)

const (
	adviceSequential = unix.MADV_SEQUENTIAL
	adviceWillNeed   = unix.MADV_WILLNEED
)

func mapFile(f *os.File, size int) ([]byte, error) {
	return unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
}

func unmapFile(b []byte) error {
	return unix.Munmap(b)
}

func advise(b []byte, advice int) error {
	if len(b) == 0 {
		return nil
	}
	return unix.Madvise(b, advice)
}
