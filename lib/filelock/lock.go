// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package filelock

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/bureau-foundation/keyguard/lib/clock"
	"github.com/bureau-foundation/keyguard/lib/config"
)

const (
	// NoWait makes Acquire try exactly once.
	NoWait time.Duration = 0
	// Forever makes Acquire retry until the lock is granted.
	Forever time.Duration = -1

	// DefaultRetryInterval is the pause between attempts when Config
	// leaves RetryInterval unset.
	DefaultRetryInterval = 50 * time.Millisecond
	// DefaultPermissions is the mode of newly created lock files when
	// Config leaves Permissions unset.
	DefaultPermissions fs.FileMode = 0o600
)

// Mode selects exclusive or shared locking.
type Mode int

const (
	// Exclusive admits one holder and no shared holders.
	Exclusive Mode = iota
	// Shared admits any number of shared holders and no exclusive one.
	Shared
)

func (m Mode) String() string {
	switch m {
	case Exclusive:
		return "exclusive"
	case Shared:
		return "shared"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// State is the lifecycle position of a lock handle. Acquire only ever
// returns handles in Held, so callers observe Held and Released;
// Unacquired and Acquiring name the stages before a handle exists.
type State int

const (
	// Unacquired is the zero State: no lock file has been opened.
	Unacquired State = iota
	// Acquiring covers the attempts inside Acquire. A timeout or I/O
	// error returns to Unacquired and no handle is returned.
	Acquiring
	// Held means the OS lock is granted.
	Held
	// Released is final; the lock file is closed.
	Released
)

func (s State) String() string {
	switch s {
	case Unacquired:
		return "unacquired"
	case Acquiring:
		return "acquiring"
	case Held:
		return "held"
	case Released:
		return "released"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Config configures a Locker. The zero value is usable.
type Config struct {
	// Clock drives retry waits and deadlines. Nil means clock.Real().
	Clock clock.Clock

	// RetryInterval is the pause between attempts while the lock is
	// contended. Zero means DefaultRetryInterval.
	RetryInterval time.Duration

	// DefaultTimeout is returned by Locker.DefaultTimeout for callers
	// that take their timeout from policy. Zero means NoWait.
	DefaultTimeout time.Duration

	// Permissions is the mode of lock files the Locker creates. Zero
	// means DefaultPermissions.
	Permissions fs.FileMode

	// Logger receives contention events at Debug. Nil discards.
	Logger *slog.Logger
}

// Locker acquires advisory file locks. A Locker holds no per-path state
// and is safe for concurrent use.
type Locker struct {
	clock          clock.Clock
	retryInterval  time.Duration
	defaultTimeout time.Duration
	permissions    fs.FileMode
	logger         *slog.Logger
}

// NewLocker creates a Locker, filling unset Config fields with defaults.
func NewLocker(cfg Config) *Locker {
	locker := &Locker{
		clock:          cfg.Clock,
		retryInterval:  cfg.RetryInterval,
		defaultTimeout: cfg.DefaultTimeout,
		permissions:    cfg.Permissions,
		logger:         cfg.Logger,
	}
	if locker.clock == nil {
		locker.clock = clock.Real()
	}
	if locker.retryInterval <= 0 {
		locker.retryInterval = DefaultRetryInterval
	}
	if locker.permissions == 0 {
		locker.permissions = DefaultPermissions
	}
	if locker.logger == nil {
		locker.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return locker
}

// NewLockerFromConfig builds a Locker from the lock section of a
// hardening policy.
func NewLockerFromConfig(cfg config.LockConfig, logger *slog.Logger) *Locker {
	return NewLocker(Config{
		RetryInterval:  time.Duration(cfg.RetryInterval),
		DefaultTimeout: time.Duration(cfg.DefaultTimeout),
		Permissions:    fs.FileMode(cfg.Permissions),
		Logger:         logger,
	})
}

// DefaultTimeout returns the timeout configured for callers that do not
// choose their own.
func (l *Locker) DefaultTimeout() time.Duration {
	return l.defaultTimeout
}

// Acquire locks path with a default Locker. See Locker.Acquire.
func Acquire(path string, mode Mode, timeout time.Duration) (*Lock, error) {
	return NewLocker(Config{}).Acquire(path, mode, timeout)
}

// Acquire opens (creating if needed) the lock file at path and locks it
// in the given mode.
//
// A timeout of NoWait makes a single attempt; Forever retries until the
// lock is granted; any other positive timeout retries every
// RetryInterval until the deadline measured on the Locker's clock.
// Contention past the deadline returns ErrTimeout. A path that cannot be
// opened (missing directory, permissions) returns ErrIO at once and is
// never reported as a timeout.
//
// Locks are held per handle: two Acquire calls in the same process on
// the same path contend exactly like two processes, so a process that
// acquires a lock it already holds exclusively will wait on itself.
//
// The lock is released by Lock.Release, or by the operating system when
// the process exits.
func (l *Locker) Acquire(path string, mode Mode, timeout time.Duration) (*Lock, error) {
	if path == "" {
		return nil, ioError("acquire", path, fmt.Errorf("empty path: %w", fs.ErrInvalid))
	}
	if mode != Exclusive && mode != Shared {
		return nil, ioError("acquire", path, fmt.Errorf("%s: %w", mode, fs.ErrInvalid))
	}

	handle := flock.New(path, flock.SetPermissions(l.permissions))

	try := handle.TryLock
	if mode == Shared {
		try = handle.TryRLock
	}

	deadline := clock.Deadline(l.clock, timeout)
	contended := false
	for {
		acquired, err := try()
		if err != nil {
			return nil, ioError("acquire", path, err)
		}
		if acquired {
			break
		}

		wait := l.retryInterval
		switch {
		case timeout == NoWait:
			return nil, &LockError{Op: "acquire", Path: path, Kind: ErrTimeout}
		case timeout > 0:
			remaining := clock.Remaining(l.clock, deadline)
			if remaining == 0 {
				return nil, &LockError{Op: "acquire", Path: path, Kind: ErrTimeout}
			}
			wait = min(wait, remaining)
		}

		if !contended {
			contended = true
			l.logger.Debug("lock contended, waiting",
				"path", path,
				"mode", mode.String(),
				"timeout", timeout,
			)
		}
		<-l.clock.After(wait)
	}

	info, err := os.Stat(path)
	if err != nil {
		handle.Close()
		return nil, ioError("acquire", path, err)
	}
	return &Lock{path: path, mode: mode, handle: handle, info: info, state: Held}, nil
}

// Lock is a held advisory lock. Its methods are safe for concurrent use.
type Lock struct {
	path   string
	mode   Mode
	handle *flock.Flock
	info   os.FileInfo

	mu    sync.Mutex
	state State
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }

// Mode returns the mode the lock was acquired in.
func (l *Lock) Mode() Mode { return l.mode }

// State returns Held until Release, then Released.
func (l *Lock) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Release unlocks and closes the lock file. The lock is Released
// afterwards even when the unlock reports an error, which is returned
// as ErrIO. Calling Release again does nothing.
func (l *Lock) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == Released {
		return nil
	}
	l.state = Released
	if err := l.handle.Unlock(); err != nil {
		return ioError("release", l.path, err)
	}
	return nil
}

// Close is Release, for use with defer and io.Closer.
func (l *Lock) Close() error {
	return l.Release()
}

// Check verifies that the lock file still exists and is the file that
// was locked. A lock file removed or replaced behind the holder's back
// no longer excludes anyone, so Check reports ErrIO. After Release it
// reports ErrReleased.
func (l *Lock) Check() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == Released {
		return &LockError{Op: "check", Path: l.path, Kind: ErrReleased}
	}
	current, err := os.Stat(l.path)
	if err != nil {
		return ioError("check", l.path, err)
	}
	if !os.SameFile(l.info, current) {
		return ioError("check", l.path, fmt.Errorf("lock file was replaced"))
	}
	return nil
}
