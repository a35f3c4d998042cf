// Copyright 2026 The Client Agent Authors
// SPDX-License-Identifier: Apache-2.0

// Package disconnect defines the typed error a session handler returns
// to signal a fatal client-facing condition. The session translates it
// into a CLIENT_GO_GET_LOST datagram and tears itself down; only errors
// marked Internal are logged at error level (client agent design §7).
package disconnect

import (
	"errors"
	"fmt"

	"github.com/opendog-project/clientagent/wire"
)

// Error represents a fatal, client-attributable condition: a failed
// handshake, a schema violation, or an out-of-bounds request. Callers
// can use errors.As to recover the reason code:
//
//	var derr *disconnect.Error
//	if errors.As(err, &derr) {
//	    s.writeClient(wire.EncodeGoGetLost(derr.Reason, derr.Message))
//	}
type Error struct {
	Reason  wire.DisconnectReason
	Message string
	// Internal marks an error caused by the agent's own invariant
	// failure rather than client misbehavior. Per client agent design
	// §7, only these are logged at error level; ordinary protocol
	// violations are expected traffic and never logged as a fault.
	Internal bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("disconnect(%d): %s", e.Reason, e.Message)
}

// New builds a disconnect.Error with a formatted message, for a
// client-attributable protocol violation.
func New(reason wire.DisconnectReason, format string, args ...any) *Error {
	return &Error{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// Internal builds a disconnect.Error for an internal invariant
// violation: the session is terminated with GENERIC and the agent
// logs it at error level (client agent design §7 kind 3).
func Internal(format string, args ...any) *Error {
	return &Error{Reason: wire.ReasonGeneric, Message: fmt.Sprintf(format, args...), Internal: true}
}

// Is reports whether err is a *disconnect.Error carrying the given
// reason code.
func Is(err error, reason wire.DisconnectReason) bool {
	var derr *Error
	if errors.As(err, &derr) {
		return derr.Reason == reason
	}
	return false
}

// ErrCapacityReached is the GENERIC capacity disconnect whose message
// the agent's accept loop sends when the channel allocator is
// exhausted (client agent design §4.1).
var ErrCapacityReached = New(wire.ReasonGeneric, "Client capacity reached")
