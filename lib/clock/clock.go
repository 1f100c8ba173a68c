// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock is the time source for code that waits. Production code injects
// Real(); tests inject Fake() and move time forward explicitly.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the current time once d has
	// elapsed. If d <= 0 the channel is ready immediately.
	After(d time.Duration) <-chan time.Time

	// Sleep blocks for at least d.
	Sleep(d time.Duration)
}

// Deadline returns the instant timeout after now on c.
func Deadline(c Clock, timeout time.Duration) time.Time {
	return c.Now().Add(timeout)
}

// Remaining returns how long is left until deadline on c, never less
// than zero.
func Remaining(c Clock, deadline time.Time) time.Duration {
	remaining := deadline.Sub(c.Now())
	if remaining < 0 {
		return 0
	}
	return remaining
}
