// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package memprotect

import (
	"fmt"
	"runtime"
)

// Portable returns Ops backed by the Go heap with no hardening. Every
// control reports ErrUnsupported; Allocate never fails for a
// non-negative size.
func Portable() Ops { return portableOps{} }

type portableOps struct{}

func (portableOps) Name() string { return "portable" }

func (portableOps) Allocate(size int) ([]byte, error) {
	if size < 0 {
		return nil, fmt.Errorf("memprotect: negative allocation size %d", size)
	}
	return make([]byte, size), nil
}

// Release leaves the region to the garbage collector. Callers wipe
// before releasing.
func (portableOps) Release([]byte) error { return nil }

func (portableOps) Lock([]byte) error { return ErrLockUnsupported }

func (portableOps) Unlock([]byte) error { return nil }

func (portableOps) MarkNonInheritable([]byte) error { return ErrUnsupported }

func (portableOps) ExcludeFromDump([]byte) error { return ErrUnsupported }

func (portableOps) Protect([]byte, bool) error { return ErrUnsupported }

// Discard zeroes the region. Heap memory is never made read-only here,
// so it is always writable.
func (portableOps) Discard(region []byte) error {
	clear(region)
	runtime.KeepAlive(region)
	return nil
}
