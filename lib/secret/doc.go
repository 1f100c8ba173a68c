// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret provides memory-safe containers for sensitive data such
// as passwords, access tokens, and private keys.
//
// A [Buffer] has a fixed capacity chosen at allocation and never grows,
// so the secret is never copied by a reallocation. On the native
// platform the region is allocated outside the Go heap, locked into
// physical RAM where the OS allows it, kept out of forked children, and
// excluded from core dumps (see lib/memprotect). When a control is
// unavailable the buffer is still usable; [Buffer.Capabilities] reports
// what took effect.
//
// Every exit path wipes the full capacity with zeros before the region
// is released:
//
//   - [Buffer.Close], normally via defer, which also runs while a panic
//     unwinds
//   - [Allocator.Close], which wipes every buffer the allocator still
//     tracks
//   - [Allocator.Exit] and [Allocator.CatchInterrupt] on the way out of
//     the process
//   - a runtime cleanup for buffers that become unreachable unclosed
//
// Constructors:
//
//   - [New], [Allocator.Allocate] -- empty, zero-filled buffer
//   - [NewFromBytes], [Allocator.AllocateFrom] -- copy, then zero the source
//   - [NewRandom], [Allocator.AllocateRandom] -- cryptographically random fill
//   - [NewFromReader], [Allocator.AllocateFromReader] -- read with a size limit
//   - [ReadFromPath], [Allocator.ReadFromPath] -- file or stdin, trimmed
//   - [PromptPassword] -- terminal entry with echo disabled
//
// [ProtectedValue] keeps a long-lived secret encrypted in memory between
// uses and decrypts it into a Buffer on Open.
//
// After Close, [Buffer.Bytes] and [Buffer.String] panic and every other
// operation returns [ErrClosed]. Close is idempotent.
package secret
