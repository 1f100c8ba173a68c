// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package filelock

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/keyguard/lib/config"
)

// NameBuilder maps a data file to the lock file that guards it.
type NameBuilder interface {
	LockPath(target string) string
}

// DefaultNameBuilder places the lock file beside its target as a hidden
// sibling: "dir/wallet.dat" is guarded by "dir/.wallet.dat.lock~".
type DefaultNameBuilder struct{}

func (DefaultNameBuilder) LockPath(target string) string {
	directory, name := filepath.Split(target)
	return filepath.Join(directory, "."+name+".lock~")
}

// DirectoryNameBuilder keeps every lock file in one directory, for data
// that lives on read-only or network filesystems. The file name carries
// a digest of the target's absolute path so that equal base names in
// different directories get different locks.
type DirectoryNameBuilder struct {
	Directory string
}

func (b DirectoryNameBuilder) LockPath(target string) string {
	absolute, err := filepath.Abs(target)
	if err != nil {
		absolute = filepath.Clean(target)
	}
	digest := blake3.Sum256([]byte(absolute))
	name := filepath.Base(absolute) + "." + hex.EncodeToString(digest[:8]) + ".lock~"
	return filepath.Join(b.Directory, name)
}

// NameBuilderFromConfig returns DirectoryNameBuilder when the policy
// names a lock directory, and DefaultNameBuilder otherwise.
func NameBuilderFromConfig(cfg config.LockConfig) NameBuilder {
	if cfg.Directory == "" {
		return DefaultNameBuilder{}
	}
	return DirectoryNameBuilder{Directory: cfg.Directory}
}

// LockPath returns the default lock file path for target.
func LockPath(target string) string {
	return DefaultNameBuilder{}.LockPath(target)
}

// SharedFile is a data file shared between processes and guarded by an
// advisory lock file. Read hands out shared access and Write exclusive
// access; the lock layer never interprets the file's contents.
type SharedFile struct {
	file     *os.File
	lockPath string
	locker   *Locker
}

// OpenShared opens (creating if needed) the data file at path for
// reading and writing and binds it to its lock file. A nil names uses
// DefaultNameBuilder. No lock is taken until Read or Write.
func OpenShared(path string, locker *Locker, names NameBuilder) (*SharedFile, error) {
	if names == nil {
		names = DefaultNameBuilder{}
	}
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, locker.permissions)
	if err != nil {
		return nil, ioError("open", path, err)
	}
	return &SharedFile{
		file:     file,
		lockPath: names.LockPath(path),
		locker:   locker,
	}, nil
}

// Name returns the data file path.
func (s *SharedFile) Name() string { return s.file.Name() }

// LockPath returns the lock file guarding the data file.
func (s *SharedFile) LockPath() string { return s.lockPath }

// Read acquires a shared lock within timeout and returns a reader
// positioned at the start of the file. Close the guard to release.
func (s *SharedFile) Read(timeout time.Duration) (*ReadGuard, error) {
	lock, err := s.locker.Acquire(s.lockPath, Shared, timeout)
	if err != nil {
		return nil, err
	}
	return &ReadGuard{guard{file: s.file, lock: lock}}, nil
}

// Write acquires an exclusive lock within timeout and returns a
// read-write handle positioned at the start of the file. Close the guard
// to release.
func (s *SharedFile) Write(timeout time.Duration) (*WriteGuard, error) {
	lock, err := s.locker.Acquire(s.lockPath, Exclusive, timeout)
	if err != nil {
		return nil, err
	}
	return &WriteGuard{guard{file: s.file, lock: lock}}, nil
}

// Close closes the data file. Outstanding guards become unusable.
func (s *SharedFile) Close() error {
	return s.file.Close()
}

// guard is the positioned view shared by both guard kinds. Each guard
// keeps its own offset so concurrent guards in one process do not move
// each other.
type guard struct {
	file   *os.File
	lock   *Lock
	offset int64
}

func (g *guard) Read(data []byte) (int, error) {
	if g.lock.State() == Released {
		return 0, &LockError{Op: "read", Path: g.lock.Path(), Kind: ErrReleased}
	}
	count, err := g.file.ReadAt(data, g.offset)
	g.offset += int64(count)
	if errors.Is(err, io.EOF) && count > 0 {
		err = nil
	}
	return count, err
}

func (g *guard) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = g.offset
	case io.SeekEnd:
		info, err := g.file.Stat()
		if err != nil {
			return 0, err
		}
		base = info.Size()
	default:
		return 0, fmt.Errorf("filelock: invalid whence %d", whence)
	}
	if base+offset < 0 {
		return 0, fmt.Errorf("filelock: negative position %d", base+offset)
	}
	g.offset = base + offset
	return g.offset, nil
}

// Lock returns the lock held by the guard.
func (g *guard) Lock() *Lock { return g.lock }

// Close releases the lock. The data file stays open.
func (g *guard) Close() error {
	return g.lock.Release()
}

// ReadGuard is shared, read-only access to a SharedFile.
type ReadGuard struct {
	guard
}

// WriteGuard is exclusive read-write access to a SharedFile.
type WriteGuard struct {
	guard
}

func (w *WriteGuard) Write(data []byte) (int, error) {
	if w.lock.State() == Released {
		return 0, &LockError{Op: "write", Path: w.lock.Path(), Kind: ErrReleased}
	}
	count, err := w.file.WriteAt(data, w.offset)
	w.offset += int64(count)
	return count, err
}

// Truncate changes the file size. The guard's position is unchanged.
func (w *WriteGuard) Truncate(size int64) error {
	if w.lock.State() == Released {
		return &LockError{Op: "truncate", Path: w.lock.Path(), Kind: ErrReleased}
	}
	return w.file.Truncate(size)
}

// Sync commits the file contents to stable storage.
func (w *WriteGuard) Sync() error {
	return w.file.Sync()
}
