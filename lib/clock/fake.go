// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"slices"
	"sync"
	"time"
)

// FakeClock is a deterministic Clock. Time stands still until Advance is
// called; pending After and Sleep calls fire once the clock reaches
// their deadline. Safe for concurrent use.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
	pending []*fakeTimer
	changed *sync.Cond
}

type fakeTimer struct {
	deadline time.Time
	channel  chan time.Time
}

// Fake returns a FakeClock set to initial.
func Fake(initial time.Time) *FakeClock {
	clock := &FakeClock{current: initial}
	clock.changed = sync.NewCond(&clock.mu)
	return clock
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// After registers a timer that fires when the clock reaches now+d. If
// d <= 0 the returned channel is ready immediately and nothing is
// registered.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	channel := make(chan time.Time, 1)
	if d <= 0 {
		channel <- c.current
		return channel
	}

	timer := &fakeTimer{deadline: c.current.Add(d), channel: channel}
	// Keep pending sorted by deadline so Advance fires in order.
	index, _ := slices.BinarySearchFunc(c.pending, timer, func(existing, target *fakeTimer) int {
		if existing.deadline.After(target.deadline) {
			return 1
		}
		return -1
	})
	c.pending = slices.Insert(c.pending, index, timer)
	c.changed.Broadcast()
	return channel
}

// Sleep blocks until the clock is advanced past now+d.
func (c *FakeClock) Sleep(d time.Duration) {
	<-c.After(d)
}

// Advance moves the clock forward by d and fires, in deadline order,
// every timer whose deadline is at or before the new time.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.current = c.current.Add(d)
	fired := 0
	for _, timer := range c.pending {
		if timer.deadline.After(c.current) {
			break
		}
		timer.channel <- c.current
		fired++
	}
	c.pending = slices.Delete(c.pending, 0, fired)
	c.changed.Broadcast()
}

// WaitForTimers blocks until at least n timers are pending. Call it
// before Advance to close the race between a goroutine registering its
// timer and the test moving time:
//
//	go func() { result <- locker.Acquire(path, filelock.Exclusive, time.Second) }()
//	fakeClock.WaitForTimers(1)
//	fakeClock.Advance(time.Second)
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.pending) < n {
		c.changed.Wait()
	}
}

// PendingCount returns the number of registered timers that have not
// fired.
func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
