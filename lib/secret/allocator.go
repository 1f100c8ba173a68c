// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"syscall"

	"github.com/awnumar/memguard"

	"github.com/bureau-foundation/keyguard/lib/config"
	"github.com/bureau-foundation/keyguard/lib/memprotect"
)

// Options selects the platform and the hardening requested for every
// buffer an Allocator hands out.
type Options struct {
	// Platform provides the memory primitives. Nil means
	// memprotect.Native().
	Platform memprotect.Ops

	// LockMemory pins regions in physical memory.
	LockMemory bool

	// ExcludeFromDumps keeps regions out of core dumps.
	ExcludeFromDumps bool

	// NonInheritable keeps regions out of forked children.
	NonInheritable bool

	// Logger receives the degradation warning and teardown summary.
	// Nil discards.
	Logger *slog.Logger
}

// DefaultOptions requests every hardening control on the native
// platform.
func DefaultOptions() Options {
	return Options{
		Platform:         memprotect.Native(),
		LockMemory:       true,
		ExcludeFromDumps: true,
		NonInheritable:   true,
	}
}

func (o Options) platform() memprotect.Ops {
	if o.Platform == nil {
		return memprotect.Native()
	}
	return o.Platform
}

func (o Options) requested() memprotect.Capabilities {
	return memprotect.Capabilities{
		MemoryLocked:   o.LockMemory,
		NonInheritable: o.NonInheritable,
		DumpExcluded:   o.ExcludeFromDumps,
	}
}

// Allocator owns the process-wide lifecycle of secure buffers. It tracks
// every live buffer it created so that Close (or Exit on the way out of
// the process) wipes all of them, including buffers whose owners never
// got the chance to close them.
//
// An Allocator is safe for concurrent use. The buffers it returns are
// not.
type Allocator struct {
	options Options
	logger  *slog.Logger

	mu           sync.Mutex
	live         map[*region]struct{}
	closed       bool
	degraded     bool
	capabilities memprotect.Capabilities
	hardened     bool
}

// NewAllocator creates an allocator. Hardening failures never fail an
// allocation: the buffer is returned with whatever protection the
// platform could apply, the allocator is marked degraded, and the first
// degradation is logged once at Warn.
func NewAllocator(options Options) *Allocator {
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	options.Platform = options.platform()
	return &Allocator{
		options:      options,
		logger:       logger,
		live:         make(map[*region]struct{}),
		capabilities: options.requested(),
	}
}

// NewAllocatorFromConfig builds an allocator from the memory section of
// a hardening policy. When the policy asks for it, process core dumps
// are disabled first; a failure there is logged and otherwise ignored.
func NewAllocatorFromConfig(cfg *config.Config, logger *slog.Logger) *Allocator {
	options := Options{
		LockMemory:       cfg.Memory.Lock,
		ExcludeFromDumps: cfg.Memory.ExcludeFromDumps,
		NonInheritable:   cfg.Memory.NonInheritable,
		Logger:           logger,
	}
	if cfg.Memory.Platform == config.PlatformPortable {
		options.Platform = memprotect.Portable()
	} else {
		options.Platform = memprotect.Native()
	}

	allocator := NewAllocator(options)
	if cfg.Memory.DisableCoreDumps {
		if err := memprotect.DisableCoreDumps(); err != nil {
			allocator.logger.Warn("core dumps remain enabled", "error", err)
		}
	}
	return allocator
}

// Allocate returns an empty, zero-filled buffer of the given capacity.
// The buffer must be closed by the caller; if it is not, Close on the
// allocator wipes it.
func (a *Allocator) Allocate(capacity int) (*Buffer, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil, &AllocationError{Capacity: capacity, Err: ErrAllocatorClosed}
	}

	buffer, degraded, err := allocate(a.options, a, capacity)
	if err != nil {
		return nil, err
	}
	a.live[buffer.region] = struct{}{}

	if capacity > 0 {
		a.capabilities = a.capabilities.Intersect(buffer.capabilities)
		a.hardened = true
	}
	if len(degraded) > 0 && !a.degraded {
		a.degraded = true
		a.logger.Warn("secure memory hardening degraded",
			"platform", a.options.Platform.Name(),
			"applied", buffer.capabilities.String(),
			"error", errors.Join(degraded...),
		)
	}
	return buffer, nil
}

// AllocateFrom returns a buffer holding a copy of source and zeroes the
// source in place.
func (a *Allocator) AllocateFrom(source []byte) (*Buffer, error) {
	buffer, err := a.Allocate(len(source))
	if err != nil {
		return nil, err
	}
	fill(buffer, source)
	return buffer, nil
}

// AllocateRandom returns a buffer whose full capacity is filled with
// cryptographically random bytes.
func (a *Allocator) AllocateRandom(capacity int) (*Buffer, error) {
	buffer, err := a.Allocate(capacity)
	if err != nil {
		return nil, err
	}
	randomize(buffer)
	return buffer, nil
}

// forget drops a destroyed region from the live set.
func (a *Allocator) forget(r *region) {
	a.mu.Lock()
	delete(a.live, r)
	a.mu.Unlock()
}

// Live returns the number of buffers allocated and not yet closed.
func (a *Allocator) Live() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.live)
}

// Degraded reports whether any requested hardening control failed for
// any buffer this allocator created.
func (a *Allocator) Degraded() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.degraded
}

// Capabilities returns the controls that took effect on every non-empty
// buffer allocated so far. Before the first such allocation it returns
// the requested controls.
func (a *Allocator) Capabilities() memprotect.Capabilities {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.capabilities
}

// Platform returns the memory primitives in use.
func (a *Allocator) Platform() memprotect.Ops {
	return a.options.Platform
}

// Close wipes and releases every live buffer and rejects further
// allocation. Buffers closed by their owners afterwards are no-ops, but
// their Bytes panics. Returns the first release error, after every
// buffer has been wiped. Idempotent.
func (a *Allocator) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	regions := make([]*region, 0, len(a.live))
	for r := range a.live {
		regions = append(regions, r)
	}
	a.mu.Unlock()

	var first error
	for _, r := range regions {
		if err := r.destroy(); err != nil && first == nil {
			first = err
		}
	}
	a.logger.Debug("secure allocator closed", "wiped", len(regions))
	return first
}

// Exit closes the allocator, purges memguard's own protected state, and
// terminates the process with the given code. Use it instead of os.Exit
// so that no live secret survives into process teardown.
func (a *Allocator) Exit(code int) {
	a.Close()
	memguard.SafeExit(code)
}

// CatchInterrupt installs a handler that closes the allocator and exits
// with status 1 when the process receives SIGINT or SIGTERM.
func (a *Allocator) CatchInterrupt() {
	memguard.CatchSignal(func(signal os.Signal) {
		a.logger.Info("wiping secure memory on signal", "signal", signal.String())
		a.Close()
	}, os.Interrupt, syscall.SIGTERM)
}
