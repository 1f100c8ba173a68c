// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/bureau-foundation/keyguard/lib/memprotect"
)

func TestReadFromPath_File(t *testing.T) {
	tempDir := t.TempDir()

	tests := []struct {
		name     string
		content  string
		expected string
	}{
		{
			name:     "plain value",
			content:  "my-secret-token",
			expected: "my-secret-token",
		},
		{
			name:     "trailing newline",
			content:  "my-secret-token\n",
			expected: "my-secret-token",
		},
		{
			name:     "surrounding whitespace",
			content:  "\t my-secret-token  \n",
			expected: "my-secret-token",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			path := filepath.Join(tempDir, test.name)
			if err := os.WriteFile(path, []byte(test.content), 0600); err != nil {
				t.Fatalf("writing test file: %v", err)
			}

			result, err := ReadFromPath(path)
			if err != nil {
				t.Fatalf("ReadFromPath() error: %v", err)
			}
			defer result.Close()
			if result.String() != test.expected {
				t.Errorf("ReadFromPath() = %q, want %q", result.String(), test.expected)
			}
		})
	}
}

func TestReadFromPath_Rejected(t *testing.T) {
	tempDir := t.TempDir()
	tests := []struct {
		name    string
		create  bool
		content string
	}{
		{name: "missing"},
		{name: "empty", create: true},
		{name: "whitespace only", create: true, content: "   \n\t\n"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			path := filepath.Join(tempDir, test.name)
			if test.create {
				if err := os.WriteFile(path, []byte(test.content), 0600); err != nil {
					t.Fatalf("writing test file: %v", err)
				}
			}
			if _, err := ReadFromPath(path); err == nil {
				t.Error("ReadFromPath() should return error")
			}
		})
	}
}

func TestAllocator_ReadFromPath(t *testing.T) {
	allocator := NewAllocator(Options{Platform: memprotect.Portable()})
	defer allocator.Close()

	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte("tracked-token\n"), 0600); err != nil {
		t.Fatalf("writing test file: %v", err)
	}
	buffer, err := allocator.ReadFromPath(path)
	if err != nil {
		t.Fatalf("ReadFromPath failed: %v", err)
	}
	if buffer.String() != "tracked-token" || allocator.Live() != 1 {
		t.Errorf("got %q with %d live buffers", buffer.String(), allocator.Live())
	}
}

func TestNewFromReader(t *testing.T) {
	tests := []struct {
		name     string
		reader   io.Reader
		limit    int
		expected string
		bounds   bool
	}{
		{name: "shorter than limit", reader: strings.NewReader("abc"), limit: 8, expected: "abc"},
		{name: "exactly limit", reader: strings.NewReader("abcdefgh"), limit: 8, expected: "abcdefgh"},
		{name: "one byte at a time", reader: iotest.OneByteReader(strings.NewReader("slow")), limit: 8, expected: "slow"},
		{name: "data with EOF", reader: iotest.DataErrReader(strings.NewReader("eof")), limit: 4, expected: "eof"},
		{name: "empty reader", reader: strings.NewReader(""), limit: 4, expected: ""},
		{name: "over limit", reader: strings.NewReader("abcdefghi"), limit: 8, bounds: true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			buffer, err := NewFromReader(test.reader, test.limit)
			if test.bounds {
				if !errors.Is(err, ErrBounds) {
					t.Fatalf("expected ErrBounds, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewFromReader failed: %v", err)
			}
			defer buffer.Close()
			if buffer.String() != test.expected {
				t.Errorf("got %q, want %q", buffer.String(), test.expected)
			}
			if buffer.Capacity() != test.limit {
				t.Errorf("expected capacity %d, got %d", test.limit, buffer.Capacity())
			}
		})
	}
}

func TestNewFromReader_ReadError(t *testing.T) {
	failure := errors.New("disk on fire")
	_, err := NewFromReader(iotest.ErrReader(failure), 16)
	if !errors.Is(err, failure) {
		t.Fatalf("expected reader error, got %v", err)
	}
}

func TestAllocator_AllocateFromReader_OverLimitWipes(t *testing.T) {
	allocator := NewAllocator(Options{Platform: memprotect.Portable()})
	defer allocator.Close()

	_, err := allocator.AllocateFromReader(strings.NewReader("0123456789"), 4)
	if !errors.Is(err, ErrBounds) {
		t.Fatalf("expected ErrBounds, got %v", err)
	}
	if allocator.Live() != 0 {
		t.Errorf("rejected read left %d live buffers", allocator.Live())
	}
}

// stalledReader returns its data and then (0, nil) forever.
type stalledReader struct {
	data  []byte
	reads int
}

func (r *stalledReader) Read(data []byte) (int, error) {
	r.reads++
	count := copy(data, r.data)
	r.data = r.data[count:]
	return count, nil
}

func TestNewFromReader_NoProgress(t *testing.T) {
	tests := []struct {
		name  string
		data  string
		limit int
	}{
		{name: "stalls before limit", data: "abc", limit: 8},
		{name: "stalls after limit", data: "abcd", limit: 4},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			reader := &stalledReader{data: []byte(test.data)}
			_, err := NewFromReader(reader, test.limit)
			if !errors.Is(err, io.ErrNoProgress) {
				t.Fatalf("expected io.ErrNoProgress, got %v", err)
			}
			if reader.reads > maxEmptyReads+1 {
				t.Errorf("expected at most %d reads, got %d", maxEmptyReads+1, reader.reads)
			}
		})
	}
}
