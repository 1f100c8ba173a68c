// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build unix && !linux

package memprotect

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Native returns the implementation for non-Linux unix systems. Page
// locking is available; fork inheritance and core dump exclusion are
// not exposed portably and report ErrUnsupported.
func Native() Ops { return unixOps{} }

type unixOps struct{ mappedOps }

func (unixOps) Name() string { return "unix" }

func (unixOps) Lock(region []byte) error {
	if len(region) == 0 {
		return nil
	}
	if err := unix.Mlock(region); err != nil {
		return fmt.Errorf("%w: mlock: %w", ErrLockUnsupported, err)
	}
	return nil
}

func (unixOps) Unlock(region []byte) error {
	if len(region) == 0 {
		return nil
	}
	if err := unix.Munlock(region); err != nil {
		return fmt.Errorf("memprotect: munlock: %w", err)
	}
	return nil
}

func (unixOps) MarkNonInheritable([]byte) error { return ErrUnsupported }

func (unixOps) ExcludeFromDump([]byte) error { return ErrUnsupported }
