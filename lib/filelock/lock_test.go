// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package filelock

import (
	"bytes"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/keyguard/lib/clock"
	"github.com/bureau-foundation/keyguard/lib/config"
	"github.com/bureau-foundation/keyguard/lib/testutil"
)

type acquireResult struct {
	lock *Lock
	err  error
}

func acquireAsync(locker *Locker, path string, mode Mode, timeout time.Duration) <-chan acquireResult {
	results := make(chan acquireResult, 1)
	go func() {
		lock, err := locker.Acquire(path, mode, timeout)
		results <- acquireResult{lock: lock, err: err}
	}()
	return results
}

func mustAcquire(t *testing.T, locker *Locker, path string, mode Mode) *Lock {
	t.Helper()
	lock, err := locker.Acquire(path, mode, NoWait)
	if err != nil {
		t.Fatalf("Acquire(%s, %s) failed: %v", path, mode, err)
	}
	return lock
}

func fastLocker() *Locker {
	return NewLocker(Config{RetryInterval: 5 * time.Millisecond})
}

func TestAcquire_ExclusiveExcludesExclusive(t *testing.T) {
	path := testutil.TempPath(t, "exclusive")
	locker := fastLocker()

	first := mustAcquire(t, locker, path, Exclusive)
	if first.State() != Held {
		t.Fatalf("expected Held, got %s", first.State())
	}

	_, err := locker.Acquire(path, Exclusive, 50*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout while held, got %v", err)
	}
	if errors.Is(err, ErrIO) {
		t.Errorf("contention must not be reported as ErrIO: %v", err)
	}
	var lockError *LockError
	if !errors.As(err, &lockError) || lockError.Path != path || lockError.Op != "acquire" {
		t.Errorf("expected *LockError for %s, got %#v", path, err)
	}

	if err := first.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	second := mustAcquire(t, locker, path, Exclusive)
	second.Release()
}

func TestAcquire_SharedAdmitsShared(t *testing.T) {
	path := testutil.TempPath(t, "shared")
	locker := fastLocker()

	first := mustAcquire(t, locker, path, Shared)
	defer first.Release()
	second := mustAcquire(t, locker, path, Shared)
	defer second.Release()

	if first.Mode() != Shared || second.Mode() != Shared {
		t.Errorf("unexpected modes %s and %s", first.Mode(), second.Mode())
	}
}

func TestAcquire_LaterModeBlocksUntilRelease(t *testing.T) {
	tests := []struct {
		name  string
		first Mode
		later Mode
	}{
		{name: "exclusive then shared", first: Exclusive, later: Shared},
		{name: "shared then exclusive", first: Shared, later: Exclusive},
		{name: "exclusive then exclusive", first: Exclusive, later: Exclusive},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			path := testutil.TempPath(t, "order")
			locker := fastLocker()

			holder := mustAcquire(t, locker, path, test.first)
			results := acquireAsync(locker, path, test.later, Forever)

			testutil.RequireNoReceive(t, results, 100*time.Millisecond, "%s acquire should wait", test.later)

			if err := holder.Release(); err != nil {
				t.Fatalf("Release failed: %v", err)
			}
			result := testutil.RequireReceive(t, results, 5*time.Second, "%s acquire after release", test.later)
			if result.err != nil {
				t.Fatalf("later Acquire failed: %v", result.err)
			}
			result.lock.Release()
		})
	}
}

func TestAcquire_MissingParentIsIOError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "dir", "lock")
	locker := fastLocker()

	for _, timeout := range []time.Duration{NoWait, time.Second, Forever} {
		_, err := locker.Acquire(path, Exclusive, timeout)
		if !errors.Is(err, ErrIO) {
			t.Fatalf("timeout %v: expected ErrIO, got %v", timeout, err)
		}
		if errors.Is(err, ErrTimeout) {
			t.Errorf("timeout %v: missing directory reported as timeout", timeout)
		}
		if !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("timeout %v: expected the OS cause to be preserved, got %v", timeout, err)
		}
	}
}

func TestAcquire_DirectoryPathIsIOError(t *testing.T) {
	path := t.TempDir()
	locker := fastLocker()

	for _, mode := range []Mode{Exclusive, Shared} {
		_, err := locker.Acquire(path, mode, 50*time.Millisecond)
		if !errors.Is(err, ErrIO) {
			t.Errorf("%s: expected ErrIO for a directory, got %v", mode, err)
		}
		if errors.Is(err, ErrTimeout) {
			t.Errorf("%s: directory reported as timeout", mode)
		}
	}
}

func TestAcquire_PermissionDeniedIsIOError(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("Unix permission bits")
	}
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	directory := t.TempDir()
	if err := os.Chmod(directory, 0o500); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	t.Cleanup(func() { os.Chmod(directory, 0o700) })

	_, err := fastLocker().Acquire(filepath.Join(directory, "lock"), Exclusive, time.Second)
	if !errors.Is(err, ErrIO) {
		t.Fatalf("expected ErrIO, got %v", err)
	}
	if errors.Is(err, ErrTimeout) {
		t.Errorf("permission failure reported as timeout")
	}
	if !errors.Is(err, fs.ErrPermission) {
		t.Errorf("expected the OS cause to be preserved, got %v", err)
	}
}

func TestAcquire_InvalidArguments(t *testing.T) {
	locker := fastLocker()

	if _, err := locker.Acquire("", Exclusive, NoWait); !errors.Is(err, ErrIO) || !errors.Is(err, fs.ErrInvalid) {
		t.Errorf("empty path: expected ErrIO and fs.ErrInvalid, got %v", err)
	}
	path := testutil.TempPath(t, "mode")
	if _, err := locker.Acquire(path, Mode(7), NoWait); !errors.Is(err, ErrIO) || !errors.Is(err, fs.ErrInvalid) {
		t.Errorf("bad mode: expected ErrIO and fs.ErrInvalid, got %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("rejected acquire created the lock file")
	}
}

func TestAcquire_FakeClockTimeout(t *testing.T) {
	path := testutil.TempPath(t, "deadline")
	fakeClock := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	locker := NewLocker(Config{Clock: fakeClock, RetryInterval: 100 * time.Millisecond})

	holder := mustAcquire(t, locker, path, Exclusive)
	defer holder.Release()

	results := acquireAsync(locker, path, Exclusive, time.Second)
	for range 10 {
		fakeClock.WaitForTimers(1)
		fakeClock.Advance(100 * time.Millisecond)
	}

	result := testutil.RequireReceive(t, results, 5*time.Second, "acquire at deadline")
	if !errors.Is(result.err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout at deadline, got %v", result.err)
	}
	if fakeClock.PendingCount() != 0 {
		t.Errorf("timed out acquire left %d timers", fakeClock.PendingCount())
	}
}

func TestAcquire_FakeClockReleaseBeforeDeadline(t *testing.T) {
	path := testutil.TempPath(t, "handoff")
	fakeClock := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	locker := NewLocker(Config{Clock: fakeClock, RetryInterval: 100 * time.Millisecond})

	holder := mustAcquire(t, locker, path, Exclusive)
	results := acquireAsync(locker, path, Shared, time.Second)

	fakeClock.WaitForTimers(1)
	holder.Release()
	fakeClock.Advance(100 * time.Millisecond)

	result := testutil.RequireReceive(t, results, 5*time.Second, "acquire after handoff")
	if result.err != nil {
		t.Fatalf("expected acquire after release, got %v", result.err)
	}
	result.lock.Release()
}

func TestAcquire_RetryCappedAtDeadline(t *testing.T) {
	path := testutil.TempPath(t, "cap")
	fakeClock := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	locker := NewLocker(Config{Clock: fakeClock, RetryInterval: time.Hour})

	holder := mustAcquire(t, locker, path, Exclusive)
	defer holder.Release()

	results := acquireAsync(locker, path, Exclusive, 300*time.Millisecond)
	fakeClock.WaitForTimers(1)
	fakeClock.Advance(300 * time.Millisecond)

	result := testutil.RequireReceive(t, results, 5*time.Second, "acquire with long retry interval")
	if !errors.Is(result.err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", result.err)
	}
}

func TestAcquire_LogsContention(t *testing.T) {
	var output bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&output, &slog.HandlerOptions{Level: slog.LevelDebug}))
	locker := NewLocker(Config{RetryInterval: 5 * time.Millisecond, Logger: logger})
	path := testutil.TempPath(t, "logged")

	holder := mustAcquire(t, locker, path, Exclusive)
	defer holder.Release()

	locker.Acquire(path, Exclusive, 30*time.Millisecond)
	if count := strings.Count(output.String(), "lock contended"); count != 1 {
		t.Errorf("expected one contention log line, got %d:\n%s", count, output.String())
	}
}

func TestLock_ReleaseIdempotent(t *testing.T) {
	path := testutil.TempPath(t, "release")
	lock := mustAcquire(t, fastLocker(), path, Exclusive)

	if err := lock.Release(); err != nil {
		t.Fatalf("first Release failed: %v", err)
	}
	if err := lock.Close(); err != nil {
		t.Fatalf("second Release failed: %v", err)
	}
	if lock.State() != Released {
		t.Errorf("expected Released, got %s", lock.State())
	}
	if lock.Path() != path {
		t.Errorf("Path() = %q, want %q", lock.Path(), path)
	}
}

func TestLock_Check(t *testing.T) {
	path := testutil.TempPath(t, "check")
	locker := fastLocker()

	lock := mustAcquire(t, locker, path, Exclusive)
	if err := lock.Check(); err != nil {
		t.Fatalf("Check on fresh lock failed: %v", err)
	}

	if err := os.Remove(path); err != nil {
		t.Fatalf("removing lock file: %v", err)
	}
	if err := lock.Check(); !errors.Is(err, ErrIO) {
		t.Errorf("expected ErrIO after removal, got %v", err)
	}

	// A new file at the same path is a different lock.
	if err := os.WriteFile(path, nil, 0600); err != nil {
		t.Fatalf("recreating lock file: %v", err)
	}
	if err := lock.Check(); !errors.Is(err, ErrIO) {
		t.Errorf("expected ErrIO after replacement, got %v", err)
	}

	lock.Release()
	if err := lock.Check(); !errors.Is(err, ErrReleased) {
		t.Errorf("expected ErrReleased, got %v", err)
	}
}

func TestLock_FilePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("Unix permission bits")
	}
	path := testutil.TempPath(t, "mode")
	lock := mustAcquire(t, NewLocker(Config{}), path, Exclusive)
	defer lock.Release()

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != DefaultPermissions {
		t.Errorf("expected lock file mode %04o, got %04o", DefaultPermissions, info.Mode().Perm())
	}
}

func TestPackageAcquire(t *testing.T) {
	path := testutil.TempPath(t, "package")
	lock, err := Acquire(path, Exclusive, NoWait)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer lock.Release()

	if _, err := Acquire(path, Shared, NoWait); !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
}

func TestModeAndStateStrings(t *testing.T) {
	tests := []struct {
		value    interface{ String() string }
		expected string
	}{
		{Exclusive, "exclusive"},
		{Shared, "shared"},
		{Mode(9), "Mode(9)"},
		{Unacquired, "unacquired"},
		{Acquiring, "acquiring"},
		{Held, "held"},
		{Released, "released"},
		{State(9), "State(9)"},
	}
	for _, test := range tests {
		if got := test.value.String(); got != test.expected {
			t.Errorf("String() = %q, want %q", got, test.expected)
		}
	}
}

func TestNewLockerFromConfig(t *testing.T) {
	cfg := config.Default().Lock
	cfg.DefaultTimeout = config.Duration(2 * time.Second)
	cfg.Permissions = config.FileMode(0o640)

	locker := NewLockerFromConfig(cfg, nil)
	if locker.DefaultTimeout() != 2*time.Second {
		t.Errorf("DefaultTimeout() = %v, want 2s", locker.DefaultTimeout())
	}
	if locker.retryInterval != time.Duration(cfg.RetryInterval) {
		t.Errorf("retry interval = %v, want %v", locker.retryInterval, time.Duration(cfg.RetryInterval))
	}
	if locker.permissions != 0o640 {
		t.Errorf("permissions = %04o, want 0640", locker.permissions)
	}
	if NewLocker(Config{}).DefaultTimeout() != NoWait {
		t.Error("zero Config should default to NoWait")
	}
}
