// Copyright 2026 The Client Agent Authors
// SPDX-License-Identifier: Apache-2.0

// Package wire implements the client-facing binary protocol: the
// length-prefixed frame codec and the message struct set of the
// client agent's wire protocol (client agent design §6). Framing and
// byte-level socket I/O are otherwise the responsibility of the
// NetworkTransport collaborator (see netio); this package only defines
// the bytes that travel over that transport.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxFrameLength is the largest payload a single frame may carry.
// WriteFrame rejects a longer payload; on the read side the 2-byte
// length header already caps a declared length at this value, bounding
// the memory a hostile client can force the agent to allocate.
const MaxFrameLength = 65535

// frameHeaderLength is the fixed size of a frame header: a 2-byte
// little-endian payload length.
const frameHeaderLength = 2

// WriteFrame writes a length-prefixed frame to w. The frame format is
// [2 bytes payload length, little-endian uint16] [payload].
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameLength {
		return fmt.Errorf("wire: frame payload length %d exceeds maximum %d", len(payload), MaxFrameLength)
	}
	var header [frameHeaderLength]byte
	binary.LittleEndian.PutUint16(header[:], uint16(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return fmt.Errorf("write frame payload: %w", err)
		}
	}
	return nil
}

// ReadFrame reads one length-prefixed frame from r and returns its
// payload. Returns io.EOF if the connection closed cleanly before any
// bytes of a new frame arrived. A short read inside the header is
// returned as io.ErrUnexpectedEOF; a failed payload read is returned
// wrapped ("read frame payload: ...") around the io.ReadFull error.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [frameHeaderLength]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	length := binary.LittleEndian.Uint16(header[:])
	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, fmt.Errorf("read frame payload: %w", err)
		}
	}
	return payload, nil
}
