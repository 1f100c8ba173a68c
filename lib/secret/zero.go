// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"runtime"

	"github.com/awnumar/memguard"
)

// Zero overwrites data with zeros. Use it for heap copies of secret
// material that cannot live in a Buffer (decoded API responses, scanner
// buffers). The store is performed by memguard and kept alive past the
// write so the compiler cannot discard it as dead.
func Zero(data []byte) {
	if len(data) == 0 {
		return
	}
	memguard.WipeBytes(data)
	runtime.KeepAlive(data)
}
