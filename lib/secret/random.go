// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"github.com/awnumar/memguard"
)

// NewRandom returns an untracked buffer of the given capacity filled
// with cryptographically random bytes, suitable for generated keys.
// Len equals Capacity.
func NewRandom(capacity int) (*Buffer, error) {
	buffer, err := New(capacity)
	if err != nil {
		return nil, err
	}
	randomize(buffer)
	return buffer, nil
}

func randomize(buffer *Buffer) {
	memguard.ScrambleBytes(buffer.region.data)
	buffer.length = buffer.capacity
}
