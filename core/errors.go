package core

import (
	"errors"
	"fmt"
)

// Sentinel errors for conditions that carry no further detail.
//
// Errors with structured detail (capacity, lookup, dimension, corruption)
// are typed below; all of them can be matched with errors.Is / errors.As.
var (
	// ErrValueOutOfRange is returned when a boundary conversion would leave
	// the Q16.16 safe range.
	ErrValueOutOfRange = errors.New("value out of Q16.16 range")

	// ErrVersionMismatch is returned when a snapshot or log carries an
	// unsupported format version.
	ErrVersionMismatch = errors.New("unsupported format version")

	// ErrHashMismatch is returned when verified state does not match the
	// claimed hash.
	ErrHashMismatch = errors.New("state hash mismatch")
)

// Resource names a pool for CapacityExceededError.
type Resource string

const (
	ResourceRecords Resource = "records"
	ResourceNodes   Resource = "nodes"
	ResourceEdges   Resource = "edges"
)

// CapacityExceededError is returned when a fixed-capacity pool is full.
// The attempted mutation leaves all state untouched.
type CapacityExceededError struct {
	Resource Resource
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("capacity exceeded: %s pool full", e.Resource)
}

// NotFoundError is returned for a reference to a nonexistent or freed entity.
type NotFoundError struct {
	Kind Resource
	ID   uint32
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("not found: %s id %d", e.Kind, e.ID)
}

// DimMismatchError is returned when a vector has the wrong length.
type DimMismatchError struct {
	Expected int
	Actual   int
}

func (e *DimMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// InvariantViolationError is returned when a command would break a kernel
// invariant, e.g. deleting a node that still has edges.
type InvariantViolationError struct {
	Detail string
}

func (e *InvariantViolationError) Error() string {
	return "invariant violation: " + e.Detail
}

// CorruptError is returned on snapshot or log framing/checksum failure.
type CorruptError struct {
	Location string
	Err      error
}

func (e *CorruptError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("corrupt %s: %v", e.Location, e.Err)
	}
	return "corrupt " + e.Location
}

func (e *CorruptError) Unwrap() error { return e.Err }

// IsCapacityExceeded reports whether err is a CapacityExceededError.
func IsCapacityExceeded(err error) bool {
	var e *CapacityExceededError
	return errors.As(err, &e)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

// IsInvariantViolation reports whether err is an InvariantViolationError.
func IsInvariantViolation(err error) bool {
	var e *InvariantViolationError
	return errors.As(err, &e)
}

// IsCorrupt reports whether err is a CorruptError.
func IsCorrupt(err error) bool {
	var e *CorruptError
	return errors.As(err, &e)
}
