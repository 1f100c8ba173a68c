// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"path/filepath"
	"testing"
)

// TempPath returns a path inside t.TempDir() named after prefix that no
// other call in this test binary returns. Nothing is created at the
// path. The directory is removed when the test completes.
func TempPath(t testing.TB, prefix string) string {
	t.Helper()
	return filepath.Join(t.TempDir(), UniqueID(prefix))
}
