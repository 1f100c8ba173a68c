// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"crypto/subtle"
	"fmt"
	"io"
	"runtime"
	"sync"

	"github.com/bureau-foundation/keyguard/lib/memprotect"
)

// Buffer holds sensitive data in a fixed-capacity region that is wiped
// with zeros before it is released. With the native platform the region
// lives outside the Go heap, is locked against swapping where the OS
// allows it, is kept out of forked children, and is excluded from core
// dumps.
//
// The capacity is fixed at allocation and the region is never resized,
// so no stale copy of the secret is ever left behind by a reallocation.
// Bytes between Len and Capacity are always zero.
//
// A Buffer has a single owner. Passing the pointer transfers ownership;
// Clone is the only way to duplicate the contents, and the clone is
// wiped independently. Buffer does not synchronize concurrent mutation.
//
// Always pair an allocation with a deferred Close: deferred calls run
// during a panic unwind, so the wipe happens on every exit path. A
// Buffer that becomes unreachable without Close is wiped by a runtime
// cleanup, but that is a backstop with no timing guarantee.
type Buffer struct {
	region       *region
	length       int
	capacity     int
	capabilities memprotect.Capabilities
	options      Options
	allocator    *Allocator
	cleanup      runtime.Cleanup
}

// region is the part of a Buffer the cleanup and the allocator can reach
// without keeping the Buffer itself alive.
type region struct {
	mu       sync.Mutex
	data     []byte
	ops      memprotect.Ops
	locked   bool
	sealed   bool
	released bool
	owner    *Allocator
}

// unsealAttempts bounds how often destroy retries lifting the read-only
// protection before it discards the region unwiped.
const unsealAttempts = 3

// destroy wipes the region, drops its page lock, and returns it to the
// platform. A sealed region is made writable first; if that keeps
// failing, the region is discarded without the wipe, which a read-only
// page would fault on. Unlock failures are swallowed. Idempotent.
func (r *region) destroy() error {
	r.mu.Lock()
	if r.released {
		r.mu.Unlock()
		return nil
	}
	r.released = true

	discard := false
	if r.sealed && len(r.data) > 0 {
		var err error
		for range unsealAttempts {
			if err = r.ops.Protect(r.data, false); err == nil {
				break
			}
		}
		if err != nil {
			discard = true
		} else {
			r.sealed = false
		}
	}
	if !discard {
		Zero(r.data)
	}
	if r.locked {
		_ = r.ops.Unlock(r.data)
		r.locked = false
	}

	var releaseErr error
	if discard {
		if err := r.ops.Discard(r.data); err != nil {
			releaseErr = fmt.Errorf("secret: discarding sealed region: %w", err)
		}
	} else if err := r.ops.Release(r.data); err != nil {
		releaseErr = fmt.Errorf("secret: releasing region: %w", err)
	}
	r.data = nil
	owner := r.owner
	r.mu.Unlock()

	if owner != nil {
		owner.forget(r)
	}
	return releaseErr
}

// New allocates an empty buffer with the given capacity on the native
// platform using DefaultOptions. The buffer is not tracked by any
// Allocator. Capacity zero is valid.
//
// New fails only when memory cannot be reserved. If the region cannot be
// locked or protected the buffer is still returned; inspect
// Capabilities to see what was applied.
//
// The caller must call Close when the secret is no longer needed.
func New(capacity int) (*Buffer, error) {
	buffer, _, err := allocate(DefaultOptions(), nil, capacity)
	return buffer, err
}

// NewFromBytes creates a buffer holding a copy of source. The source
// bytes are zeroed in place once copied, so the caller's original slice
// no longer holds the secret.
func NewFromBytes(source []byte) (*Buffer, error) {
	buffer, err := New(len(source))
	if err != nil {
		return nil, err
	}
	fill(buffer, source)
	return buffer, nil
}

// fill copies source into a freshly allocated buffer of the same
// capacity and wipes source.
func fill(buffer *Buffer, source []byte) {
	copy(buffer.region.data, source)
	buffer.length = len(source)
	Zero(source)
}

// allocate reserves and hardens a region. The returned error slice lists
// hardening requests that failed; they never fail the allocation.
func allocate(options Options, owner *Allocator, capacity int) (*Buffer, []error, error) {
	if capacity < 0 {
		return nil, nil, &AllocationError{Capacity: capacity, Err: fmt.Errorf("negative capacity")}
	}
	ops := options.platform()
	data, err := ops.Allocate(capacity)
	if err != nil {
		return nil, nil, &AllocationError{Capacity: capacity, Err: err}
	}

	state := &region{data: data, ops: ops, owner: owner}
	var capabilities memprotect.Capabilities
	var degraded []error

	// An empty region has nothing to protect and is not a degradation.
	if capacity > 0 {
		if options.LockMemory {
			if err := ops.Lock(data); err != nil {
				degraded = append(degraded, err)
			} else {
				state.locked = true
				capabilities.MemoryLocked = true
			}
		}
		if options.NonInheritable {
			if err := ops.MarkNonInheritable(data); err != nil {
				degraded = append(degraded, err)
			} else {
				capabilities.NonInheritable = true
			}
		}
		if options.ExcludeFromDumps {
			if err := ops.ExcludeFromDump(data); err != nil {
				degraded = append(degraded, err)
			} else {
				capabilities.DumpExcluded = true
			}
		}
	}

	buffer := &Buffer{
		region:       state,
		capacity:     capacity,
		capabilities: capabilities,
		options:      options,
		allocator:    owner,
	}
	buffer.cleanup = runtime.AddCleanup(buffer, func(leaked *region) {
		_ = leaked.destroy()
	}, state)
	return buffer, degraded, nil
}

// Capacity returns the fixed size of the buffer.
func (b *Buffer) Capacity() int {
	return b.capacity
}

// Len returns the logical size of the secret data.
func (b *Buffer) Len() int {
	return b.length
}

// Capabilities reports which hardening controls were applied to the
// region when it was allocated.
func (b *Buffer) Capabilities() memprotect.Capabilities {
	return b.capabilities
}

// Locked reports whether the region is locked into physical memory.
func (b *Buffer) Locked() bool {
	return b.capabilities.MemoryLocked
}

// Bytes returns the secret data. The returned slice points directly into
// the protected region: do not retain it beyond the lifetime of the
// Buffer and do not modify it (use Write). Panics if the buffer has been
// closed.
func (b *Buffer) Bytes() []byte {
	b.region.mu.Lock()
	defer b.region.mu.Unlock()

	if b.region.released {
		panic("secret: read from closed buffer")
	}
	return b.region.data[:b.length]
}

// String returns the secret data as a string. The string is a heap copy
// (Go strings are immutable), so use it only at API boundaries that
// require one. Prefer Bytes. Panics if the buffer has been closed.
func (b *Buffer) String() string {
	return string(b.Bytes())
}

// Write copies data into the buffer at offset. The write is rejected
// with a *BoundsError when offset+len(data) exceeds the capacity. The
// logical length grows to cover the written bytes and never shrinks. An
// empty write in bounds changes nothing.
func (b *Buffer) Write(offset int, data []byte) error {
	b.region.mu.Lock()
	defer b.region.mu.Unlock()

	if err := b.writableLocked(); err != nil {
		return err
	}
	if offset < 0 || len(data) > b.capacity || offset > b.capacity-len(data) {
		return &BoundsError{Offset: offset, Length: len(data), Capacity: b.capacity}
	}

	if len(data) == 0 {
		return nil
	}
	copy(b.region.data[offset:], data)
	if end := offset + len(data); end > b.length {
		b.length = end
	}
	return nil
}

// SetLen changes the logical size. Growing exposes zero bytes; shrinking
// wipes the bytes that fall outside the new length.
func (b *Buffer) SetLen(length int) error {
	b.region.mu.Lock()
	defer b.region.mu.Unlock()

	if err := b.writableLocked(); err != nil {
		return err
	}
	if length < 0 || length > b.capacity {
		return &BoundsError{Offset: 0, Length: length, Capacity: b.capacity}
	}
	if length < b.length {
		Zero(b.region.data[length:b.length])
	}
	b.length = length
	return nil
}

// Clear wipes the whole capacity and resets the length to zero without
// releasing the region, so the buffer can hold a new secret.
func (b *Buffer) Clear() error {
	b.region.mu.Lock()
	defer b.region.mu.Unlock()

	if err := b.writableLocked(); err != nil {
		return err
	}
	Zero(b.region.data)
	b.length = 0
	return nil
}

func (b *Buffer) writableLocked() error {
	if b.region.released {
		return ErrClosed
	}
	if b.region.sealed {
		return ErrSealed
	}
	return nil
}

// Seal makes the region read-only, so a stray write through a slice
// returned by Bytes faults instead of corrupting the secret. Returns an
// error matching memprotect.ErrUnsupported when the platform cannot
// change page protection; the buffer then stays writable.
func (b *Buffer) Seal() error {
	b.region.mu.Lock()
	defer b.region.mu.Unlock()

	if b.region.released {
		return ErrClosed
	}
	if b.region.sealed {
		return nil
	}
	// An empty region has no pages to protect.
	if b.capacity == 0 {
		b.region.sealed = true
		return nil
	}
	if err := b.region.ops.Protect(b.region.data, true); err != nil {
		return err
	}
	b.region.sealed = true
	return nil
}

// Unseal restores write access after Seal.
func (b *Buffer) Unseal() error {
	b.region.mu.Lock()
	defer b.region.mu.Unlock()

	if b.region.released {
		return ErrClosed
	}
	if !b.region.sealed {
		return nil
	}
	if b.capacity > 0 {
		if err := b.region.ops.Protect(b.region.data, false); err != nil {
			return err
		}
	}
	b.region.sealed = false
	return nil
}

// Sealed reports whether the buffer is currently read-only.
func (b *Buffer) Sealed() bool {
	b.region.mu.Lock()
	defer b.region.mu.Unlock()
	return b.region.sealed
}

// Clone allocates a new buffer with the same capacity, length, and
// contents. The clone comes from the same allocator (or the same options
// for untracked buffers) and must be closed separately.
func (b *Buffer) Clone() (*Buffer, error) {
	var clone *Buffer
	var err error
	if b.allocator != nil {
		clone, err = b.allocator.Allocate(b.capacity)
	} else {
		clone, _, err = allocate(b.options, nil, b.capacity)
	}
	if err != nil {
		return nil, err
	}

	b.region.mu.Lock()
	defer b.region.mu.Unlock()
	if b.region.released {
		clone.Close()
		return nil, ErrClosed
	}
	copy(clone.region.data, b.region.data[:b.length])
	clone.length = b.length
	return clone, nil
}

// Equal reports whether the secret equals other in constant time.
// Panics if the buffer has been closed.
func (b *Buffer) Equal(other []byte) bool {
	return subtle.ConstantTimeCompare(b.Bytes(), other) == 1
}

// WriteTo writes the secret to writer without an intermediate heap copy.
// Implements io.WriterTo.
func (b *Buffer) WriteTo(writer io.Writer) (int64, error) {
	b.region.mu.Lock()
	defer b.region.mu.Unlock()

	if b.region.released {
		return 0, ErrClosed
	}
	written, err := writer.Write(b.region.data[:b.length])
	return int64(written), err
}

// Close zeros the whole capacity, unlocks the region, and releases it.
// The wipe always happens first; a failure to unlock is ignored and a
// failure to release is returned after the wipe. A sealed buffer whose
// pages cannot be made writable again is discarded by the platform
// instead of wiped. After Close, Bytes and
// String panic and other operations return ErrClosed. Close is
// idempotent.
func (b *Buffer) Close() error {
	b.cleanup.Stop()
	err := b.region.destroy()
	b.length = 0
	return err
}
