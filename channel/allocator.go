// Copyright 2026 The Client Agent Authors
// SPDX-License-Identifier: Apache-2.0

// Package channel implements the message director channel allocator
// (client agent design §4.1, component C1): a fixed numeric range
// handed out to sessions as their identity channel.
package channel

import (
	"errors"
	"sync"
)

// ErrExhausted is returned by Alloc when no channel remains: the
// monotonic cursor has passed max and the free list is empty.
var ErrExhausted = errors.New("channel: allocator exhausted")

// Allocator hands out u64 channel numbers from a fixed [min, max]
// range and recycles freed ones through a FIFO free list. Freed
// channels never re-enter circulation via the cursor, only via the
// free list, so a channel is never handed out twice concurrently.
//
// Safe for concurrent use; the agent supervisor shares one Allocator
// across every session it spawns.
type Allocator struct {
	mu   sync.Mutex
	next uint64
	max  uint64
	// cursorLive is false once next has passed max; the range may be
	// empty from construction (min > max), so this can't be derived
	// from next <= max alone without risking uint64 wraparound.
	cursorLive bool
	free       []uint64
}

// NewAllocator constructs an Allocator over the inclusive range
// [min, max].
func NewAllocator(min, max uint64) *Allocator {
	return &Allocator{next: min, max: max, cursorLive: min <= max}
}

// Alloc returns the next available channel, drawing from the
// monotonic cursor until it passes max, then from the free list.
func (a *Allocator) Alloc() (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cursorLive {
		c := a.next
		if c == a.max {
			a.cursorLive = false
		} else {
			a.next++
		}
		return c, nil
	}
	if len(a.free) == 0 {
		return 0, ErrExhausted
	}
	c := a.free[0]
	a.free = a.free[1:]
	return c, nil
}

// Free returns a channel to the free list for later reuse.
func (a *Allocator) Free(c uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.free = append(a.free, c)
}

// FreeListLen reports the number of channels currently available for
// reuse via the free list, used by tests to verify P6 teardown
// cleanliness.
func (a *Allocator) FreeListLen() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.free)
}
