// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package memprotect

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrUnsupported reports that a hardening control is not available on
// this platform. It is never fatal.
var ErrUnsupported = errors.New("memprotect: not supported on this platform")

// ErrLockUnsupported reports that page locking is unavailable, either
// because the platform lacks it or because the OS refused the request
// (for example RLIMIT_MEMLOCK exhausted). It matches ErrUnsupported.
var ErrLockUnsupported = fmt.Errorf("%w: memory locking", ErrUnsupported)

// Ops is the set of memory primitives a secure buffer needs from the
// operating system. Implementations must accept empty regions: Lock,
// Unlock, and the advisory calls treat them as no-ops, and Release of an
// empty region succeeds.
type Ops interface {
	// Name identifies the implementation ("linux", "unix", "windows",
	// "portable").
	Name() string

	// Allocate reserves a zero-filled region of exactly size bytes.
	// A failure here is the only fatal error in this package.
	Allocate(size int) ([]byte, error)

	// Release returns a region obtained from Allocate. The region must
	// not be used afterwards.
	Release(region []byte) error

	// Lock pins the region in physical memory so it is never written
	// to swap. Returns an error matching ErrLockUnsupported on failure.
	Lock(region []byte) error

	// Unlock reverts Lock.
	Unlock(region []byte) error

	// MarkNonInheritable keeps the region out of child processes
	// created by fork.
	MarkNonInheritable(region []byte) error

	// ExcludeFromDump keeps the region out of core dumps.
	ExcludeFromDump(region []byte) error

	// Protect switches the region between read-only and read-write.
	Protect(region []byte, readOnly bool) error

	// Discard returns a region to the system without touching its page
	// protection, for a region left read-only that Release cannot
	// reopen. Regions that stay on the Go heap are zeroed instead.
	Discard(region []byte) error
}

// LockSupported probes whether ops can lock memory right now by locking
// and unlocking a single page.
func LockSupported(ops Ops) bool {
	region, err := ops.Allocate(os.Getpagesize())
	if err != nil {
		return false
	}
	defer ops.Release(region)

	if err := ops.Lock(region); err != nil {
		return false
	}
	ops.Unlock(region)
	return true
}

// Level grades how much hardening was applied to a region.
type Level int

const (
	// ProtectionNone means no hardening control took effect.
	ProtectionNone Level = iota
	// ProtectionPartial means some, but not all, controls took effect.
	ProtectionPartial
	// ProtectionFull means every requested control took effect.
	ProtectionFull
)

func (l Level) String() string {
	switch l {
	case ProtectionNone:
		return "none"
	case ProtectionPartial:
		return "partial"
	case ProtectionFull:
		return "full"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

// Capabilities records which hardening controls succeeded for a region.
// A false field means the control was unavailable or not requested.
type Capabilities struct {
	MemoryLocked   bool
	NonInheritable bool
	DumpExcluded   bool
}

// Level summarizes the capabilities. Page locking carries the most
// weight: without it the level is never Full.
func (c Capabilities) Level() Level {
	switch {
	case c.MemoryLocked && c.NonInheritable && c.DumpExcluded:
		return ProtectionFull
	case c.MemoryLocked || c.NonInheritable || c.DumpExcluded:
		return ProtectionPartial
	default:
		return ProtectionNone
	}
}

// Intersect returns the controls present in both c and other. Used to
// summarize many regions as the weakest common guarantee.
func (c Capabilities) Intersect(other Capabilities) Capabilities {
	return Capabilities{
		MemoryLocked:   c.MemoryLocked && other.MemoryLocked,
		NonInheritable: c.NonInheritable && other.NonInheritable,
		DumpExcluded:   c.DumpExcluded && other.DumpExcluded,
	}
}

func (c Capabilities) String() string {
	var parts []string
	if c.MemoryLocked {
		parts = append(parts, "locked")
	}
	if c.NonInheritable {
		parts = append(parts, "noinherit")
	}
	if c.DumpExcluded {
		parts = append(parts, "nodump")
	}
	if len(parts) == 0 {
		return c.Level().String()
	}
	return c.Level().String() + " (" + strings.Join(parts, ",") + ")"
}
