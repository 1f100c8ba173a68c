// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [RequireReceive], [RequireNoReceive], and [RequireClosed] wrap the
// select-with-timeout pattern so tests of blocking calls (lock
// acquisition in particular) do not need their own time.After calls.
// They are the only place in the test suite where wall-clock timeouts
// are used; code under test takes a lib/clock Clock instead.
//
// [UniqueID] and [TempPath] generate distinct names for lock files and
// other per-test fixtures.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no dependencies on other Bureau packages.
package testutil
