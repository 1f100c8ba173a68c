// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package memprotect provides the per-OS memory hardening primitives that
// lib/secret builds on.
//
// Every primitive sits behind the [Ops] interface. [Native] returns the
// implementation selected at build time for the target OS:
//
//   - linux: anonymous mmap outside the Go heap, mlock,
//     madvise(MADV_DONTFORK) and madvise(MADV_DONTDUMP), mprotect
//   - other unix: anonymous mmap, mlock, mprotect
//   - windows: VirtualAlloc, VirtualLock, VirtualProtect
//   - everything else: [Portable] (this package only; lib/secret does
//     not build without a unix or Windows kernel)
//
// [Portable] allocates on the Go heap and answers every hardening request
// with [ErrUnsupported]. It exists so that callers keep working, with
// reduced hardening, on platforms that expose none of these controls.
//
// Hardening failures are informational. Callers record them in a
// [Capabilities] value instead of failing the surrounding operation; only
// [Ops.Allocate] failing is fatal.
//
// This package has no dependencies on other Bureau packages.
package memprotect
