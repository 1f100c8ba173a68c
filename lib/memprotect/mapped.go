// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build unix || windows

package memprotect

import (
	"fmt"

	"github.com/awnumar/memcall"
)

// mappedOps holds the allocation half of the native implementations:
// memory comes from the kernel (mmap or VirtualAlloc), never from the Go
// heap, so the garbage collector cannot copy or relocate it.
type mappedOps struct{}

func (mappedOps) Allocate(size int) ([]byte, error) {
	if size < 0 {
		return nil, fmt.Errorf("memprotect: negative allocation size %d", size)
	}
	if size == 0 {
		return []byte{}, nil
	}
	region, err := memcall.Alloc(size)
	if err != nil {
		return nil, fmt.Errorf("memprotect: allocating %d bytes: %w", size, err)
	}
	return region, nil
}

func (mappedOps) Release(region []byte) error {
	if len(region) == 0 {
		return nil
	}
	if err := memcall.Free(region); err != nil {
		return fmt.Errorf("memprotect: releasing %d bytes: %w", len(region), err)
	}
	return nil
}

func (mappedOps) Protect(region []byte, readOnly bool) error {
	if len(region) == 0 {
		return nil
	}
	flag := memcall.ReadWrite()
	if readOnly {
		flag = memcall.ReadOnly()
	}
	if err := memcall.Protect(region, flag); err != nil {
		return fmt.Errorf("%w: protect: %w", ErrUnsupported, err)
	}
	return nil
}

// DisableCoreDumps sets the process core dump limit to zero. It is a
// process-wide setting left to the caller to request; failure is
// informational. On Windows it does nothing.
func DisableCoreDumps() error {
	if err := memcall.DisableCoreDumps(); err != nil {
		return fmt.Errorf("%w: core dump limit: %w", ErrUnsupported, err)
	}
	return nil
}
