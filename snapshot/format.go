// Package snapshot implements the canonical binary encoding of full kernel
// state: little-endian throughout, no padding, no pointers, every pool slot
// present whether occupied or empty, and a BLAKE3-256 trailer over the
// decoded state. File IO is atomic-by-rename with a single rolled-back
// generation kept as ".prev".
package snapshot

import "errors"

const (
	// Magic identifies Valori snapshot files.
	Magic = "VALO"

	// FormatVersion is the snapshot layout version.
	FormatVersion uint32 = 1

	// slot tags in the pool sections
	slotEmpty    = 0x00
	slotOccupied = 0x01
)

var (
	// ErrBadMagic is wrapped into a CorruptError when the file does not
	// start with the snapshot magic.
	ErrBadMagic = errors.New("bad snapshot magic")

	// ErrConfigMismatch is returned when encode or decode is attempted
	// against a kernel configuration with different dimensions or
	// capacities. There is no implicit truncation.
	ErrConfigMismatch = errors.New("snapshot capacities do not match kernel configuration")
)

// DefaultFileName is the live snapshot file name.
const DefaultFileName = "snapshot.val"

// PrevSuffix is appended to the previous generation kept for rollback.
const PrevSuffix = ".prev"
