//go:build windows

package mmap

import (
	"io"
	"os"
)

// Windows gets a plain read fallback instead of a real mapping.
func mapFile(f *os.File, size int) ([]byte, error) {
	data := make([]byte, size)
	if _, err := io.ReadFull(f, data); err != nil {
		return nil, err
	}
	return data, nil
}

func unmapFile([]byte) error { return nil }
