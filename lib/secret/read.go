// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
)

// NewFromReader reads at most limit bytes from reader straight into a
// buffer of capacity limit, with no intermediate heap copy of the data.
// If the reader holds more than limit bytes the partially filled buffer
// is wiped and a *BoundsError is returned.
func NewFromReader(reader io.Reader, limit int) (*Buffer, error) {
	return readInto(reader, limit, New)
}

// AllocateFromReader is NewFromReader for a buffer tracked by the
// allocator.
func (a *Allocator) AllocateFromReader(reader io.Reader, limit int) (*Buffer, error) {
	return readInto(reader, limit, a.Allocate)
}

// maxEmptyReads is how many consecutive (0, nil) reads are accepted
// before giving up, matching bufio.
const maxEmptyReads = 100

func readInto(reader io.Reader, limit int, allocate func(int) (*Buffer, error)) (*Buffer, error) {
	buffer, err := allocate(limit)
	if err != nil {
		return nil, err
	}

	filled := 0
	for filled < limit {
		count, err := readProgress(reader, buffer.region.data[filled:])
		filled += count
		if errors.Is(err, io.EOF) {
			buffer.length = filled
			return buffer, nil
		}
		if err != nil {
			buffer.Close()
			return nil, fmt.Errorf("secret: reading: %w", err)
		}
	}
	buffer.length = filled

	var probe [1]byte
	count, err := readProgress(reader, probe[:])
	Zero(probe[:])
	if count > 0 {
		buffer.Close()
		return nil, &BoundsError{Offset: limit, Length: 1, Capacity: limit}
	}
	if err != nil && !errors.Is(err, io.EOF) {
		buffer.Close()
		return nil, fmt.Errorf("secret: reading: %w", err)
	}
	return buffer, nil
}

// readProgress calls Read until it returns data or an error, failing
// with io.ErrNoProgress after maxEmptyReads empty results.
func readProgress(reader io.Reader, data []byte) (int, error) {
	for range maxEmptyReads {
		count, err := reader.Read(data)
		if count > 0 || err != nil {
			return count, err
		}
	}
	return 0, io.ErrNoProgress
}

// ReadFromPath reads a secret from a file path, or from the first line
// of stdin if path is "-". Leading and trailing whitespace is trimmed
// before storing and the intermediate heap copy is zeroed. Returns an
// error if the source is empty after trimming. The caller must close the
// returned buffer.
func ReadFromPath(path string) (*Buffer, error) {
	return readPath(path, NewFromBytes)
}

// ReadFromPath is the package-level ReadFromPath for a buffer tracked by
// the allocator.
func (a *Allocator) ReadFromPath(path string) (*Buffer, error) {
	return readPath(path, a.AllocateFrom)
}

func readPath(path string, store func([]byte) (*Buffer, error)) (*Buffer, error) {
	var data []byte

	if path == "-" {
		scanner := bufio.NewScanner(os.Stdin)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return nil, fmt.Errorf("secret: reading stdin: %w", err)
			}
			return nil, fmt.Errorf("secret: stdin is empty")
		}
		data = scanner.Bytes()
	} else {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, err
		}
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		Zero(data)
		return nil, fmt.Errorf("secret: %s is empty", path)
	}

	// store zeroes trimmed; the surrounding whitespace is zeroed here.
	buffer, err := store(trimmed)
	Zero(data)
	if err != nil {
		return nil, err
	}
	return buffer, nil
}
