//go:build !linux && !darwin

package mmap

import (
	"io"
	"os"
)

const (
	adviceSequential = 0
	adviceWillNeed   = 0
)

// mapFile falls back to reading the file into memory.
func mapFile(f *os.File, size int) ([]byte, error) {
	b := make([]byte, size)
	if _, err := io.ReadFull(f, b); err != nil {
		return nil, err
	}
	return b, nil
}

func unmapFile([]byte) error { return nil }

func advise([]byte, int) error { return nil }
