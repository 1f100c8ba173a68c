// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source so that code which
// waits (lock acquisition retries in lib/filelock) can be tested without
// real sleeps.
//
// Production code holds a [Clock] and is given [Real]. Tests give it a
// [FakeClock] from [Fake], wait for the code under test to register a
// timer with [FakeClock.WaitForTimers], then move time with
// [FakeClock.Advance]:
//
//	fakeClock := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	locker := filelock.NewLocker(filelock.Config{Clock: fakeClock})
//	// ... start the blocking call in a goroutine ...
//	fakeClock.WaitForTimers(1)
//	fakeClock.Advance(5 * time.Second)
//
// This package has no dependencies on other Bureau packages.
package clock
