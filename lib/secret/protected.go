// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"errors"
	"fmt"

	"github.com/awnumar/memguard"
)

// ProtectedValue keeps a long-lived secret encrypted while it is not in
// use. The ciphertext lives in an enclave sealed with a per-process key,
// so a memory disclosure between uses reveals nothing. Open decrypts
// into a fresh Buffer for the duration of one use.
//
// A ProtectedValue is immutable and safe for concurrent Open calls.
type ProtectedValue struct {
	enclave *memguard.Enclave
}

// Protect encrypts source into a new ProtectedValue and wipes source.
// An empty source is rejected with ErrAllocation.
func Protect(source []byte) (*ProtectedValue, error) {
	if len(source) == 0 {
		return nil, &AllocationError{Capacity: 0, Err: errors.New("empty protected value")}
	}
	enclave := memguard.NewEnclave(source)
	if enclave == nil {
		return nil, &AllocationError{Capacity: len(source), Err: errors.New("enclave creation failed")}
	}
	return &ProtectedValue{enclave: enclave}, nil
}

// Size returns the plaintext length.
func (p *ProtectedValue) Size() int {
	return p.enclave.Size()
}

// Open decrypts the value into a new buffer from allocator (or an
// untracked native buffer when allocator is nil). The caller owns the
// buffer and must close it.
func (p *ProtectedValue) Open(allocator *Allocator) (*Buffer, error) {
	plaintext, err := p.enclave.Open()
	if err != nil {
		return nil, fmt.Errorf("secret: opening protected value: %w", err)
	}
	defer plaintext.Destroy()

	var buffer *Buffer
	if allocator != nil {
		buffer, err = allocator.Allocate(plaintext.Size())
	} else {
		buffer, err = New(plaintext.Size())
	}
	if err != nil {
		return nil, err
	}
	copy(buffer.region.data, plaintext.Bytes())
	buffer.length = plaintext.Size()
	return buffer, nil
}
