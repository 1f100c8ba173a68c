// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !unix && !windows

package memprotect

// Native falls back to Portable on platforms without mmap or
// VirtualAlloc. Only this package builds there: lib/secret depends on
// memguard, which requires a unix or Windows kernel.
func Native() Ops { return Portable() }

// DisableCoreDumps is not available without a unix or Windows kernel.
func DisableCoreDumps() error { return ErrUnsupported }
