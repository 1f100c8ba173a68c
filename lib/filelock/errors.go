// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package filelock

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout reports that the lock was still held by someone else
	// when the acquisition deadline passed. Nothing is left open.
	ErrTimeout = errors.New("filelock: timed out waiting for lock")

	// ErrIO reports that the lock file could not be opened, locked,
	// unlocked, or inspected. It is never reported for contention.
	ErrIO = errors.New("filelock: lock file I/O failed")

	// ErrReleased reports an operation on a lock after Release.
	ErrReleased = errors.New("filelock: lock already released")
)

// LockError describes a failed lock operation. It matches its Kind
// (ErrTimeout, ErrIO, or ErrReleased) and its cause under errors.Is.
type LockError struct {
	Op   string
	Path string
	Kind error
	Err  error
}

func (e *LockError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s %s", e.Kind, e.Op, e.Path)
	}
	return fmt.Sprintf("%s: %s %s: %v", e.Kind, e.Op, e.Path, e.Err)
}

func (e *LockError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func ioError(op, path string, err error) error {
	return &LockError{Op: op, Path: path, Kind: ErrIO, Err: err}
}
