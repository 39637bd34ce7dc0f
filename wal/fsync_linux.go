//go:build linux

package wal

import (
	"os"

	"golang.org/x/sys/unix"
)

// fdatasync flushes file data without forcing a metadata write where the
// platform distinguishes the two.
func fdatasync(f *os.File) error {
	return unix.Fdatasync(int(f.Fd()))
}
