// Copyright 2026 The Client Agent Authors
// SPDX-License-Identifier: Apache-2.0

// Package netio implements the NetworkTransport collaborator (client
// agent design §1): the TCP acceptor and per-connection socket tuning
// that sits below the wire package's framing.
package netio

import (
	"fmt"
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// Listener accepts inbound client TCP connections. The agent
// supervisor owns one Listener for its lifetime.
type Listener interface {
	// Accept blocks until a new connection arrives or the listener is
	// closed, in which case it returns a non-nil error.
	Accept() (net.Conn, error)
	// Address returns the bound "ip:port".
	Address() string
	// Close stops accepting; a blocked Accept call returns promptly.
	Close() error
}

// TCPListener is the production Listener: a plain TCP socket with
// per-connection tuning applied as each client connects.
type TCPListener struct {
	listener *net.TCPListener
}

// NewTCPListener binds a TCP listener at address (e.g. "0.0.0.0:7198").
func NewTCPListener(address string) (*TCPListener, error) {
	addr, err := net.ResolveTCPAddr("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("netio: resolve %s: %w", address, err)
	}
	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("netio: listen %s: %w", address, err)
	}
	return &TCPListener{listener: l}, nil
}

// Accept blocks for the next client connection and tunes its socket
// before returning it.
func (l *TCPListener) Accept() (net.Conn, error) {
	conn, err := l.listener.AcceptTCP()
	if err != nil {
		return nil, err
	}
	if err := tuneClientSocket(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("netio: tune accepted socket: %w", err)
	}
	return conn, nil
}

// Address returns the bound address, useful when NewTCPListener was
// given port 0.
func (l *TCPListener) Address() string {
	return l.listener.Addr().String()
}

// Close stops accepting new connections.
func (l *TCPListener) Close() error {
	return l.listener.Close()
}

// keepaliveProbes and keepaliveInterval bound how long a dead-but-not-
// reset connection (vanished NAT binding, lost Wi-Fi) survives after
// the keepalive period elapses: roughly keepaliveProbes *
// keepaliveInterval past the initial idle period before the kernel
// gives up and the session's read loop observes the failure.
const (
	keepaliveProbes   = 4
	keepaliveInterval = 10 * time.Second
)

// tuneClientSocket disables Nagle's algorithm (game-client traffic is
// latency-sensitive and frames are already small and explicit) and
// enables TCP keepalive so a client that vanished without closing
// cleanly is eventually reaped instead of holding its identity channel
// and visible objects forever. net.TCPConn exposes the keepalive
// on/off switch and period portably, but not the probe count or
// per-probe retry interval, so those two are set directly through
// golang.org/x/sys/unix.
func tuneClientSocket(conn *net.TCPConn) error {
	if err := conn.SetNoDelay(true); err != nil {
		return err
	}
	if err := conn.SetKeepAlive(true); err != nil {
		return err
	}
	if err := conn.SetKeepAlivePeriod(30 * time.Second); err != nil {
		return err
	}

	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	err = raw.Control(func(fd uintptr) {
		if sockErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_KEEPCNT, keepaliveProbes); sockErr != nil {
			return
		}
		sockErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_KEEPINTVL, int(keepaliveInterval.Seconds()))
	})
	if err != nil {
		return err
	}
	return sockErr
}
