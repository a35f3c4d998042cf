// Copyright 2026 The Client Agent Authors
// SPDX-License-Identifier: Apache-2.0

package mdbus

import (
	"sync"
)

// subscriptionBuffer bounds how many undelivered datagrams a single
// subscription holds before Publish blocks. The production message
// director is expected to apply its own backpressure; this in-process
// bus only needs enough slack to decouple one publisher from one slow
// subscriber within a test or a single-process deployment.
const subscriptionBuffer = 256

// MemoryBus is an in-process Bus: Publish snapshots the subscriptions
// registered on the datagram's To channel under a lock, then delivers
// to each in turn outside it, so datagrams one publisher sends to a
// channel arrive in the order sent (client agent design §5).
type MemoryBus struct {
	mu   sync.Mutex
	subs map[uint64][]*memorySubscription
}

// NewMemoryBus constructs an empty MemoryBus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[uint64][]*memorySubscription)}
}

type memorySubscription struct {
	channel uint64
	ch      chan Datagram
	closeMu sync.Mutex
	closed  bool
}

func (s *memorySubscription) Channel() uint64             { return s.channel }
func (s *memorySubscription) Datagrams() <-chan Datagram { return s.ch }

func (s *memorySubscription) close() {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// Subscribe registers a new subscription for channel. Distinct calls
// for the same channel each get their own independent delivery stream
// — a session that (incorrectly) subscribes twice would receive the
// datagram twice, which is why sessions track their own subscribed-set
// to subscribe at most once per channel (client agent design §4.5).
func (b *MemoryBus) Subscribe(channel uint64) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub := &memorySubscription{channel: channel, ch: make(chan Datagram, subscriptionBuffer)}
	b.subs[channel] = append(b.subs[channel], sub)
	return sub
}

// Unsubscribe removes sub from delivery and closes its stream.
// Idempotent, and safe to call even if sub was never returned by this
// bus (a no-op in that case).
func (b *MemoryBus) Unsubscribe(sub Subscription) {
	ms, ok := sub.(*memorySubscription)
	if !ok {
		return
	}
	b.mu.Lock()
	list := b.subs[ms.channel]
	for i, s := range list {
		if s == ms {
			b.subs[ms.channel] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(b.subs[ms.channel]) == 0 {
		delete(b.subs, ms.channel)
	}
	b.mu.Unlock()
	ms.close()
}

// Publish delivers dg to every subscription currently registered on
// dg.To. Delivery blocks while a subscriber's buffer is full, which is
// the bus's suspension point (client agent design §5) — callers on the
// single-threaded session loop must not hold any lock across Publish.
func (b *MemoryBus) Publish(dg Datagram) {
	b.mu.Lock()
	// Copy the slice under the lock so a concurrent Subscribe/Unsubscribe
	// doesn't race the delivery loop below.
	recipients := append([]*memorySubscription(nil), b.subs[dg.To]...)
	b.mu.Unlock()

	for _, sub := range recipients {
		sub.send(dg)
	}
}

// send delivers dg unless the subscription has already been closed,
// preventing a send-on-closed-channel panic when Publish races an
// Unsubscribe from another session's goroutine.
func (s *memorySubscription) send(dg Datagram) {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return
	}
	s.ch <- dg
}
