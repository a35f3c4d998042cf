// Copyright 2026 The Client Agent Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import "encoding/binary"

// Encoder builds a message body: a little-endian sequence of typed
// fields, mirroring the Datagram builder of the underlying protocol.
// The zero value is ready to use.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an Encoder with msgType already written as the
// first field, matching every message in the client protocol.
func NewEncoder(msgType uint16) *Encoder {
	e := &Encoder{}
	e.PutUint16(msgType)
	return e
}

func (e *Encoder) PutUint8(v uint8) *Encoder {
	e.buf = append(e.buf, v)
	return e
}

func (e *Encoder) PutUint16(v uint16) *Encoder {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	e.buf = append(e.buf, b[:]...)
	return e
}

func (e *Encoder) PutUint32(v uint32) *Encoder {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.buf = append(e.buf, b[:]...)
	return e
}

func (e *Encoder) PutUint64(v uint64) *Encoder {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	e.buf = append(e.buf, b[:]...)
	return e
}

// PutString writes a u16 length prefix followed by the string bytes.
func (e *Encoder) PutString(s string) *Encoder {
	e.PutUint16(uint16(len(s)))
	e.buf = append(e.buf, s...)
	return e
}

// PutBlob writes a u16 length prefix followed by opaque bytes.
func (e *Encoder) PutBlob(data []byte) *Encoder {
	e.PutUint16(uint16(len(data)))
	e.buf = append(e.buf, data...)
	return e
}

// PutRaw appends bytes with no length prefix, e.g. an already-packed
// field payload or a list of already-encoded zone ids.
func (e *Encoder) PutRaw(data []byte) *Encoder {
	e.buf = append(e.buf, data...)
	return e
}

// Bytes returns the accumulated message body.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Len reports the accumulated body length so far, letting callers
// enforce the MD size limit (client agent design §4.4 step 5) before
// appending a field payload.
func (e *Encoder) Len() int {
	return len(e.buf)
}
