// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"errors"
	"fmt"
)

var (
	// ErrAllocation reports that memory for a buffer could not be
	// reserved. Failing to lock or protect memory never produces it.
	ErrAllocation = errors.New("secret: allocation failed")

	// ErrBounds reports an access outside the buffer capacity. The
	// access is rejected, never truncated.
	ErrBounds = errors.New("secret: access out of bounds")

	// ErrClosed reports an operation on a buffer after Close.
	ErrClosed = errors.New("secret: buffer is closed")

	// ErrSealed reports a write to a buffer made read-only by Seal.
	ErrSealed = errors.New("secret: buffer is sealed")

	// ErrAllocatorClosed reports an allocation from an allocator after
	// Close. It is delivered inside an *AllocationError.
	ErrAllocatorClosed = errors.New("secret: allocator is closed")
)

// AllocationError describes a failed allocation. It matches both
// ErrAllocation and the underlying cause under errors.Is.
type AllocationError struct {
	Capacity int
	Err      error
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("secret: allocating %d bytes: %v", e.Capacity, e.Err)
}

func (e *AllocationError) Unwrap() []error {
	return []error{ErrAllocation, e.Err}
}

// BoundsError describes a rejected access of Length bytes at Offset in a
// buffer of the given Capacity. It matches ErrBounds under errors.Is.
type BoundsError struct {
	Offset   int
	Length   int
	Capacity int
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("secret: %d bytes at offset %d exceed capacity %d", e.Length, e.Offset, e.Capacity)
}

func (e *BoundsError) Is(target error) bool {
	return target == ErrBounds
}
