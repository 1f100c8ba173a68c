// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package memprotect

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Native returns the Linux implementation.
func Native() Ops { return linuxOps{} }

type linuxOps struct{ mappedOps }

func (linuxOps) Name() string { return "linux" }

func (linuxOps) Lock(region []byte) error {
	if len(region) == 0 {
		return nil
	}
	if err := unix.Mlock(region); err != nil {
		return fmt.Errorf("%w: mlock: %w", ErrLockUnsupported, err)
	}
	return nil
}

func (linuxOps) Unlock(region []byte) error {
	if len(region) == 0 {
		return nil
	}
	if err := unix.Munlock(region); err != nil {
		return fmt.Errorf("memprotect: munlock: %w", err)
	}
	return nil
}

// MarkNonInheritable uses MADV_DONTFORK: the pages are not mapped into a
// forked child at all.
func (linuxOps) MarkNonInheritable(region []byte) error {
	if len(region) == 0 {
		return nil
	}
	if err := unix.Madvise(region, unix.MADV_DONTFORK); err != nil {
		return fmt.Errorf("%w: madvise(MADV_DONTFORK): %w", ErrUnsupported, err)
	}
	return nil
}

// ExcludeFromDump uses MADV_DONTDUMP. Older kernels reject it with
// EINVAL.
func (linuxOps) ExcludeFromDump(region []byte) error {
	if len(region) == 0 {
		return nil
	}
	if err := unix.Madvise(region, unix.MADV_DONTDUMP); err != nil {
		return fmt.Errorf("%w: madvise(MADV_DONTDUMP): %w", ErrUnsupported, err)
	}
	return nil
}
