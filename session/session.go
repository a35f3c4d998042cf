// Copyright 2026 The Client Agent Authors
// SPDX-License-Identifier: Apache-2.0

// Package session implements the per-connection client session state
// machine (client agent design §4.4, component C4): handshake,
// inbound/outbound protocol translation, and the interest engine it
// drives.
package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"

	"github.com/opendog-project/clientagent/channel"
	"github.com/opendog-project/clientagent/disconnect"
	"github.com/opendog-project/clientagent/interest"
	"github.com/opendog-project/clientagent/mdbus"
	"github.com/opendog-project/clientagent/schema"
	"github.com/opendog-project/clientagent/uberdog"
	"github.com/opendog-project/clientagent/visibility"
	"github.com/opendog-project/clientagent/wire"
)

// State is one of the three points in the client session's handshake
// state machine (client agent design §4.4).
type State int

const (
	StateNew State = iota
	StateAnonymous
	StateEstablished
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateAnonymous:
		return "ANONYMOUS"
	case StateEstablished:
		return "ESTABLISHED"
	default:
		return "UNKNOWN"
	}
}

// errTeardown signals the main loop to tear the session down without
// a client-facing error: either the bus told it to drop silently, or
// it already sent its own notice (CLIENTAGENT_DISCONNECT).
var errTeardown = errors.New("session: teardown requested")

// busInBuffer bounds how many bus datagrams a session's fan-in channel
// holds before a forwarding goroutine blocks, decoupling the main loop
// from momentary bursts across many subscriptions.
const busInBuffer = 64

// Session is one client connection's state: the handshake FSM, its
// identity and subscription channels, owned objects, and the interest
// engine that derives its visibility.
type Session struct {
	conn    net.Conn
	log     *slog.Logger
	bus     mdbus.Bus
	vis     *visibility.Table
	uberdogs *uberdog.Registry
	schema  *schema.Registry
	alloc   *channel.Allocator

	dcHash  uint32
	version string

	state State

	identityChannel     uint64
	allocatedChannel     uint64
	identityIsAllocated  bool
	hadReassignment      bool
	allocatedReleased    bool

	ownedObjects map[uint32]struct{}
	interests    *interest.Engine
	postRemove   []mdbus.Datagram

	subs  map[uint64]mdbus.Subscription
	busIn chan mdbus.Datagram
	done  chan struct{}
}

// NewSession allocates an identity channel and constructs a Session
// for an accepted connection. Returns channel.ErrExhausted unchanged
// if the allocator has no channel left — the caller (the agent
// supervisor) is responsible for the capacity-reached disconnect
// notice (client agent design §4.1), since no Session exists yet to
// send it through.
func NewSession(
	conn net.Conn,
	alloc *channel.Allocator,
	bus mdbus.Bus,
	vis *visibility.Table,
	uberdogs *uberdog.Registry,
	schemaReg *schema.Registry,
	dcHash uint32,
	version string,
	log *slog.Logger,
) (*Session, error) {
	ch, err := alloc.Alloc()
	if err != nil {
		return nil, err
	}

	s := &Session{
		conn:                conn,
		log:                 log,
		bus:                 bus,
		vis:                 vis,
		uberdogs:            uberdogs,
		schema:              schemaReg,
		alloc:               alloc,
		dcHash:              dcHash,
		version:             version,
		state:               StateNew,
		identityChannel:     ch,
		allocatedChannel:    ch,
		identityIsAllocated: true,
		ownedObjects:        make(map[uint32]struct{}),
		subs:                make(map[uint64]mdbus.Subscription),
		busIn:               make(chan mdbus.Datagram, busInBuffer),
		done:                make(chan struct{}),
	}
	s.interests = interest.NewEngine(s, vis)
	s.Subscribe(ch)
	return s, nil
}

// Run drives the session until the connection closes, a protocol
// violation terminates it, or ctx is cancelled. It always tears the
// session down (releasing channels and visibility refcounts) before
// returning, matching the lifecycle in client agent design §3.
func (s *Session) Run(ctx context.Context) error {
	defer s.teardown()

	clientIn := make(chan []byte)
	readErr := make(chan error, 1)
	go s.readLoop(clientIn, readErr)

	for {
		select {
		case body := <-clientIn:
			if err := s.handleClientFrame(body); err != nil {
				s.handleFatal(err)
				return nil
			}
		case dg := <-s.busIn:
			if err := s.handleBusDatagram(dg); err != nil {
				if errors.Is(err, errTeardown) {
					return nil
				}
				s.log.Error("malformed message director datagram, dropping", "err", err)
			}
		case err := <-readErr:
			if err != nil && err != io.EOF {
				s.log.Debug("client connection read error", "err", err)
			}
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		}
	}
}

// handleFatal reports a terminal error from the client-frame handler:
// a *disconnect.Error gets translated into CLIENT_GO_GET_LOST (and
// logged only if internal); anything else is treated as internal.
func (s *Session) handleFatal(err error) {
	var derr *disconnect.Error
	if !errors.As(err, &derr) {
		derr = disconnect.Internal("%v", err)
	}
	if derr.Internal {
		s.log.Error("terminating session", "reason", derr.Reason, "err", derr.Message)
	}
	s.writeClient(wire.EncodeGoGetLost(derr.Reason, derr.Message))
}

func (s *Session) readLoop(clientIn chan<- []byte, errCh chan<- error) {
	for {
		body, err := wire.ReadFrame(s.conn)
		if err != nil {
			select {
			case errCh <- err:
			case <-s.done:
			}
			return
		}
		select {
		case clientIn <- body:
		case <-s.done:
			return
		}
	}
}

// writeClient encodes and sends a frame to the client socket. Write
// failures are logged and otherwise swallowed — the connection is
// already in trouble and the read loop will observe its own error and
// trigger teardown shortly.
func (s *Session) writeClient(body []byte) {
	if err := wire.WriteFrame(s.conn, body); err != nil {
		s.log.Debug("write to client failed", "err", err)
	}
}

// teardown releases every resource the session held: interest-derived
// subscriptions and their visibility refcounts, owned-object
// refcounts, ad-hoc subscriptions, the allocated channel, and finally
// publishes post-remove datagrams in append order (client agent design
// §3, §5, P6).
func (s *Session) teardown() {
	close(s.done)

	s.interests.RemoveAll()

	for id := range s.ownedObjects {
		s.vis.Release(id)
	}

	channels := make([]uint64, 0, len(s.subs))
	for ch := range s.subs {
		channels = append(channels, ch)
	}
	for _, ch := range channels {
		s.Unsubscribe(ch)
	}

	s.alloc.Free(s.allocatedChannel)

	for _, dg := range s.postRemove {
		s.bus.Publish(dg)
	}

	s.conn.Close()
}

// --- interest.Deps ---

// Subscribe registers channel with the bus exactly once, idempotent on
// repeat calls so callers (the interest engine, CLIENTAGENT_OPEN_CHANNEL)
// never double-subscribe the same channel (client agent design P2).
func (s *Session) Subscribe(ch uint64) {
	if _, ok := s.subs[ch]; ok {
		return
	}
	sub := s.bus.Subscribe(ch)
	s.subs[ch] = sub
	go s.forward(sub)
}

// Unsubscribe drops channel. Idempotent.
func (s *Session) Unsubscribe(ch uint64) {
	sub, ok := s.subs[ch]
	if !ok {
		return
	}
	delete(s.subs, ch)
	s.bus.Unsubscribe(sub)
	if ch == s.allocatedChannel {
		s.allocatedReleased = true
	}
}

func (s *Session) forward(sub mdbus.Subscription) {
	for dg := range sub.Datagrams() {
		select {
		case s.busIn <- dg:
		case <-s.done:
			return
		}
	}
}

// QueryZoneAll emits STATESERVER_OBJECT_QUERY_ZONE_ALL to the parent's
// own channel (a distributed object's channel is its do_id, the same
// convention used to address field updates).
func (s *Session) QueryZoneAll(parent uint32, zones []uint32) {
	s.bus.Publish(mdbus.Datagram{
		To:   uint64(parent),
		From: s.identityChannel,
		Body: mdbus.EncodeQueryZoneAll(parent, zones),
	})
}

// EmitDoneInterestResp sends CLIENT_DONE_INTEREST_RESP.
func (s *Session) EmitDoneInterestResp(interestID uint16, context uint32) {
	s.writeClient(wire.EncodeDoneInterestResp(interestID, context))
}

// EmitObjectDisable sends CLIENT_OBJECT_DISABLE.
func (s *Session) EmitObjectDisable(doID uint32) {
	s.writeClient(wire.EncodeObjectDisable(doID))
}

// IsOwned reports whether doID is in this session's owned_objects set.
func (s *Session) IsOwned(doID uint32) bool {
	_, ok := s.ownedObjects[doID]
	return ok
}
