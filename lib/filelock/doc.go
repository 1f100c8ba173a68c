// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package filelock provides advisory exclusive and shared locks bound to
// filesystem paths, for coordinating access to shared files (wallet
// databases, key stores) between cooperating processes.
//
// A [Locker] acquires locks with a timeout: [NoWait] makes one attempt,
// [Forever] waits indefinitely, and anything else retries on the
// Locker's clock until the deadline. Contention past the deadline is
// [ErrTimeout]; an unusable path is [ErrIO] and is reported immediately.
// The lock is dropped by [Lock.Release] or by the operating system when
// the holding process exits. Locking is advisory: processes that do not
// use this package are not excluded.
//
// Locks belong to the handle, not the process. Two Acquire calls in one
// process on the same path contend like two processes would, and a
// process that re-acquires a path it holds exclusively waits on itself.
// (On AIX and Solaris the fcntl backend locks per process instead.)
// There is no upgrade or downgrade; release and acquire again.
//
// [SharedFile] layers reader and writer guards over a data file and its
// sibling lock file (see [LockPath]).
//
// The backend is github.com/gofrs/flock: flock(2) on most Unix systems,
// fcntl on AIX and Solaris, and LockFileEx on Windows.
package filelock
