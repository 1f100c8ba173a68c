// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build unix

package memprotect

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Discard unmaps the region without first restoring write access. The
// kernel drops the pages; nothing is written to them.
func (mappedOps) Discard(region []byte) error {
	if len(region) == 0 {
		return nil
	}
	if err := unix.Munmap(region); err != nil {
		return fmt.Errorf("memprotect: munmap: %w", err)
	}
	return nil
}
