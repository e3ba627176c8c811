// Package clock holds a node's Lamport logical clock.
//
// The clock starts at zero and only ever moves through Merge, which applies
// the receive rule max(local, remote) + 1. Reads never block.
package clock

import "sync/atomic"

// Clock is a Lamport clock. The zero value is ready to use and reads 0.
type Clock struct {
	v atomic.Int64
}

// Merge folds a remote clock value into the local one and returns the new
// local value.
func (c *Clock) Merge(remote int64) int64 {
	for {
		cur := c.v.Load()
		next := max(cur, remote) + 1
		if c.v.CompareAndSwap(cur, next) {
			return next
		}
	}
}

// Current returns the latest merged value.
func (c *Clock) Current() int64 {
	return c.v.Load()
}

// IsInitial reports whether the clock has never been merged.
func (c *Clock) IsInitial() bool {
	return c.v.Load() == 0
}
