// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package memprotect

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Native returns the Windows implementation.
func Native() Ops { return windowsOps{} }

type windowsOps struct{ mappedOps }

func (windowsOps) Name() string { return "windows" }

func (windowsOps) Lock(region []byte) error {
	if len(region) == 0 {
		return nil
	}
	if err := windows.VirtualLock(regionAddress(region), uintptr(len(region))); err != nil {
		return fmt.Errorf("%w: VirtualLock: %w", ErrLockUnsupported, err)
	}
	return nil
}

func (windowsOps) Unlock(region []byte) error {
	if len(region) == 0 {
		return nil
	}
	if err := windows.VirtualUnlock(regionAddress(region), uintptr(len(region))); err != nil {
		return fmt.Errorf("memprotect: VirtualUnlock: %w", err)
	}
	return nil
}

// MarkNonInheritable succeeds unconditionally: Windows has no fork, and
// private VirtualAlloc pages are never shared with child processes.
func (windowsOps) MarkNonInheritable([]byte) error { return nil }

func (windowsOps) ExcludeFromDump([]byte) error { return ErrUnsupported }

// Discard releases the whole VirtualAlloc reservation without first
// restoring write access.
func (mappedOps) Discard(region []byte) error {
	if len(region) == 0 {
		return nil
	}
	if err := windows.VirtualFree(regionAddress(region), 0, windows.MEM_RELEASE); err != nil {
		return fmt.Errorf("memprotect: VirtualFree: %w", err)
	}
	return nil
}

func regionAddress(region []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(region)))
}
