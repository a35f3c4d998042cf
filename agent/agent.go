// Copyright 2026 The Client Agent Authors
// SPDX-License-Identifier: Apache-2.0

// Package agent implements the ClientAgent supervisor (client agent
// design §4.6, component C6): the TCP acceptor that wires every
// accepted connection to a session.Session sharing the process-wide
// collaborators (channel allocator, visibility table, uberdog and
// schema registries, message director bus). Its accept-loop lifecycle
// is grounded on proxy.Server's Start/Shutdown pattern, generalized
// from HTTP listeners to a raw framed TCP protocol.
package agent

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/opendog-project/clientagent/channel"
	"github.com/opendog-project/clientagent/disconnect"
	"github.com/opendog-project/clientagent/mdbus"
	"github.com/opendog-project/clientagent/netio"
	"github.com/opendog-project/clientagent/schema"
	"github.com/opendog-project/clientagent/session"
	"github.com/opendog-project/clientagent/uberdog"
	"github.com/opendog-project/clientagent/visibility"
	"github.com/opendog-project/clientagent/wire"
)

// rateLimiterIdleTimeout is how long a per-address limiter survives
// without a new connection from that address before perAddressLimiter
// evicts it (the sweep runs on every allow call). Bounds the map's size under a churning or spoofed-source flood
// instead of growing it forever.
const rateLimiterIdleTimeout = 10 * time.Minute

// Config holds the wiring an Agent needs beyond the listener itself.
type Config struct {
	Bus      mdbus.Bus
	Channels *channel.Allocator
	Visibility *visibility.Table
	Uberdogs *uberdog.Registry
	Schema   *schema.Registry
	DCHash   uint32
	Version  string

	// AcceptRateLimit bounds new connections per second from one remote
	// address; zero disables limiting. AcceptRateBurst is each address's
	// token bucket burst size.
	AcceptRateLimit float64
	AcceptRateBurst int

	Logger *slog.Logger
}

// Agent is the accept loop and its shared collaborators. One Agent
// serves one TCP listener; the collaborators it holds are process-wide
// and may also be shared with other agents in the same process.
type Agent struct {
	listener netio.Listener
	cfg      Config
	log      *slog.Logger
	limiter  *perAddressLimiter

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New constructs an Agent bound to listener. Call Start to begin
// accepting connections.
func New(listener netio.Listener, cfg Config) *Agent {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	var limiter *perAddressLimiter
	if cfg.AcceptRateLimit > 0 {
		burst := cfg.AcceptRateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = newPerAddressLimiter(rate.Limit(cfg.AcceptRateLimit), burst)
	}
	return &Agent{listener: listener, cfg: cfg, log: log, limiter: limiter}
}

// perAddressLimiter hands out one token-bucket rate.Limiter per
// distinct remote IP, so one abusive or misbehaving source can only
// exhaust its own bucket rather than starve every other client trying
// to connect through the same DMZ-facing listener (client agent design
// §1's threat model). Idle buckets are swept so the map doesn't grow
// without bound under a churning or spoofed-source flood.
type perAddressLimiter struct {
	limit rate.Limit
	burst int

	mu   sync.Mutex
	seen map[string]*addrBucket
}

type addrBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newPerAddressLimiter(limit rate.Limit, burst int) *perAddressLimiter {
	return &perAddressLimiter{limit: limit, burst: burst, seen: make(map[string]*addrBucket)}
}

// allow reports whether a new connection from addr may proceed,
// consuming a token from that address's bucket. addr is expected to be
// an IP string (the port is stripped by the caller so that a client
// reconnecting from a new ephemeral port doesn't get a fresh bucket).
func (l *perAddressLimiter) allow(addr string) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for k, b := range l.seen {
		if now.Sub(b.lastSeen) > rateLimiterIdleTimeout {
			delete(l.seen, k)
		}
	}

	b, ok := l.seen[addr]
	if !ok {
		b = &addrBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.seen[addr] = b
	}
	b.lastSeen = now
	return b.limiter.Allow()
}

// Start launches the accept loop in the background and returns
// immediately, matching proxy.Server.Start's non-blocking contract.
func (a *Agent) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.wg.Add(1)
	go a.acceptLoop(ctx)
	a.log.Info("client agent started", "address", a.listener.Address())
}

func (a *Agent) acceptLoop(ctx context.Context) {
	defer a.wg.Done()
	for {
		conn, err := a.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			a.log.Error("accept failed", "err", err)
			return
		}

		if a.limiter != nil && !a.limiter.allow(remoteIP(conn)) {
			a.rejectImmediately(conn, "connection rate limit exceeded")
			continue
		}

		sess, err := session.NewSession(conn, a.cfg.Channels, a.cfg.Bus, a.cfg.Visibility, a.cfg.Uberdogs, a.cfg.Schema, a.cfg.DCHash, a.cfg.Version, a.log)
		if err != nil {
			if errors.Is(err, channel.ErrExhausted) {
				a.rejectImmediately(conn, disconnect.ErrCapacityReached.Message)
			} else {
				a.log.Error("failed to construct session", "err", err)
				conn.Close()
			}
			continue
		}

		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := sess.Run(ctx); err != nil && ctx.Err() == nil {
				a.log.Debug("session ended with error", "err", err)
			}
		}()
	}
}

// remoteIP extracts the bare IP from conn.RemoteAddr(), falling back to
// the whole address string if it isn't a "host:port" pair (e.g. the
// in-process net.Pipe used by tests) so every source still gets a
// (less precise) bucket of its own.
func remoteIP(conn net.Conn) string {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return conn.RemoteAddr().String()
	}
	return host
}

// rejectImmediately writes a CLIENT_GO_GET_LOST notice directly to a
// raw connection and closes it. Used when no session exists yet to
// send the notice through — the channel allocator is exhausted, or the
// accept-rate limit rejected the connection before any handshake
// (client agent design §4.1).
func (a *Agent) rejectImmediately(conn net.Conn, message string) {
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := wire.WriteFrame(conn, wire.EncodeGoGetLost(wire.ReasonGeneric, message)); err != nil {
		a.log.Debug("failed to write rejection notice", "err", err)
	}
	conn.Close()
}

// Shutdown stops accepting new connections, cancels every running
// session, and waits for them to finish tearing down or for ctx to
// expire.
func (a *Agent) Shutdown(ctx context.Context) error {
	a.log.Info("shutting down client agent")
	if a.cancel != nil {
		a.cancel()
	}
	if err := a.listener.Close(); err != nil {
		a.log.Debug("listener close error", "err", err)
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
