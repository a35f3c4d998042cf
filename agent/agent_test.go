// Copyright 2026 The Client Agent Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/opendog-project/clientagent/channel"
	"github.com/opendog-project/clientagent/mdbus"
	"github.com/opendog-project/clientagent/schema"
	"github.com/opendog-project/clientagent/uberdog"
	"github.com/opendog-project/clientagent/visibility"
	"github.com/opendog-project/clientagent/wire"
)

// pipeListener is a fake netio.Listener that hands out one side of a
// net.Pipe per Dial call, letting tests drive an Agent's accept loop
// without binding a real socket.
type pipeListener struct {
	conns  chan net.Conn
	closed chan struct{}
}

func newPipeListener() *pipeListener {
	return &pipeListener{conns: make(chan net.Conn), closed: make(chan struct{})}
}

func (l *pipeListener) Accept() (net.Conn, error) {
	select {
	case c := <-l.conns:
		return c, nil
	case <-l.closed:
		return nil, io.EOF
	}
}

func (l *pipeListener) Address() string { return "pipe:0" }

func (l *pipeListener) Close() error {
	select {
	case <-l.closed:
	default:
		close(l.closed)
	}
	return nil
}

// dial creates a connected pair and hands the agent-facing side to the
// listener, returning the client-facing side to the test.
func (l *pipeListener) dial(t *testing.T) net.Conn {
	t.Helper()
	return l.dialFrom(t, "pipe")
}

// dialFrom is like dial, but the agent-facing connection reports addr
// as its RemoteAddr — letting tests simulate distinct source
// addresses over the otherwise address-less net.Pipe transport.
func (l *pipeListener) dialFrom(t *testing.T, addr string) net.Conn {
	t.Helper()
	clientConn, agentConn := net.Pipe()
	select {
	case l.conns <- fakeAddrConn{agentConn, addr}:
	case <-time.After(2 * time.Second):
		t.Fatal("agent never called Accept")
	}
	return clientConn
}

// fakeAddrConn overrides RemoteAddr on top of a net.Pipe connection,
// which otherwise reports an address shared by every pipe endpoint.
type fakeAddrConn struct {
	net.Conn
	addr string
}

func (c fakeAddrConn) RemoteAddr() net.Addr { return fakeAddr(c.addr) }

type fakeAddr string

func (a fakeAddr) Network() string { return "pipe" }
func (a fakeAddr) String() string  { return string(a) }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAgent(cfgOverride func(*Config)) (*Agent, *pipeListener) {
	listener := newPipeListener()
	cfg := Config{
		Bus:        mdbus.NewMemoryBus(),
		Channels:   channel.NewAllocator(1000, 1000),
		Visibility: visibility.NewTable(),
		Uberdogs:   uberdog.NewRegistry(nil),
		Schema:     schema.NewRegistry(nil),
		DCHash:     0xc0ffee,
		Version:    "1.0",
		Logger:     quietLogger(),
	}
	if cfgOverride != nil {
		cfgOverride(&cfg)
	}
	return New(listener, cfg), listener
}

func TestAgentAcceptsAndCompletesHandshake(t *testing.T) {
	a, listener := newTestAgent(nil)
	a.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		a.Shutdown(ctx)
	}()

	client := listener.dial(t)
	if err := wire.WriteFrame(client, wire.EncodeHello(0xc0ffee, "1.0")); err != nil {
		t.Fatalf("write hello: %v", err)
	}
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	body, err := wire.ReadFrame(client)
	if err != nil {
		t.Fatalf("read hello resp: %v", err)
	}
	d := wire.NewDecoder(body)
	if wire.MsgType(d.GetUint16()) != wire.ClientHelloResp {
		t.Fatal("expected CLIENT_HELLO_RESP")
	}
}

func TestAgentRejectsWhenChannelsExhausted(t *testing.T) {
	a, listener := newTestAgent(nil)
	a.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		a.Shutdown(ctx)
	}()

	// The allocator has exactly one channel [1000,1000]. Consume the
	// first connection's slot, then a second connection must be
	// rejected immediately with no session ever formed.
	first := listener.dial(t)
	defer first.Close()

	second := listener.dial(t)
	second.SetReadDeadline(time.Now().Add(2 * time.Second))
	body, err := wire.ReadFrame(second)
	if err != nil {
		t.Fatalf("read rejection: %v", err)
	}
	d := wire.NewDecoder(body)
	if wire.MsgType(d.GetUint16()) != wire.ClientGoGetLost {
		t.Fatal("expected GO_GET_LOST for the capacity-exhausted connection")
	}
	reason := wire.DisconnectReason(d.GetUint16())
	if reason != wire.ReasonGeneric {
		t.Fatalf("reason = %v, want ReasonGeneric", reason)
	}

	if _, err := wire.ReadFrame(second); err == nil {
		t.Fatal("expected the rejected connection to be closed after the notice")
	}
}

func TestAgentRateLimitsPerRemoteAddressIndependently(t *testing.T) {
	a, listener := newTestAgent(func(c *Config) {
		c.AcceptRateLimit = 1
		c.AcceptRateBurst = 1
		c.Channels = channel.NewAllocator(1000, 1002)
	})
	a.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		a.Shutdown(ctx)
	}()

	// First connection from 10.0.0.1 consumes its one-token bucket and
	// completes a normal handshake.
	first := listener.dialFrom(t, "10.0.0.1:1111")
	defer first.Close()
	first.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := wire.WriteFrame(first, wire.EncodeHello(0xc0ffee, "1.0")); err != nil {
		t.Fatalf("write hello from 10.0.0.1: %v", err)
	}
	body, err := wire.ReadFrame(first)
	if err != nil {
		t.Fatalf("read hello resp: %v", err)
	}
	if wire.MsgType(wire.NewDecoder(body).GetUint16()) != wire.ClientHelloResp {
		t.Fatal("expected CLIENT_HELLO_RESP for the first connection")
	}

	// A second connection from the SAME address is over budget and
	// must be rejected with GO_GET_LOST.
	second := listener.dialFrom(t, "10.0.0.1:2222")
	second.SetReadDeadline(time.Now().Add(2 * time.Second))
	body, err = wire.ReadFrame(second)
	if err != nil {
		t.Fatalf("read rejection for second 10.0.0.1 connection: %v", err)
	}
	d := wire.NewDecoder(body)
	if wire.MsgType(d.GetUint16()) != wire.ClientGoGetLost {
		t.Fatal("expected GO_GET_LOST for the second connection sharing 10.0.0.1's exhausted bucket")
	}

	// A connection from a DIFFERENT address has its own, untouched
	// bucket and must be accepted.
	third := listener.dialFrom(t, "10.0.0.2:3333")
	defer third.Close()
	third.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := wire.WriteFrame(third, wire.EncodeHello(0xc0ffee, "1.0")); err != nil {
		t.Fatalf("write hello from 10.0.0.2: %v", err)
	}
	body, err = wire.ReadFrame(third)
	if err != nil {
		t.Fatalf("expected the connection from 10.0.0.2 to be accepted despite 10.0.0.1's exhausted bucket: %v", err)
	}
	if wire.MsgType(wire.NewDecoder(body).GetUint16()) != wire.ClientHelloResp {
		t.Fatal("expected CLIENT_HELLO_RESP for the 10.0.0.2 connection")
	}
}

func TestAgentShutdownStopsAcceptingAndDrainsSessions(t *testing.T) {
	a, listener := newTestAgent(nil)
	a.Start()

	client := listener.dial(t)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := a.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}
