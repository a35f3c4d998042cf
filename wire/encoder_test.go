// Copyright 2026 The Client Agent Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"bytes"
	"testing"
)

func TestEncoderDecoderRoundTrip(t *testing.T) {
	body := NewEncoder(uint16(ClientHello)).
		PutUint8(9).
		PutUint16(42).
		PutUint32(1234567).
		PutUint64(9876543210).
		PutString("v1.0.0").
		PutBlob([]byte{1, 2, 3}).
		Bytes()

	d := NewDecoder(body)
	if got := d.GetUint16(); got != uint16(ClientHello) {
		t.Fatalf("msgtype: got %d want %d", got, ClientHello)
	}
	if got := d.GetUint8(); got != 9 {
		t.Fatalf("uint8: got %d want 9", got)
	}
	if got := d.GetUint16(); got != 42 {
		t.Fatalf("uint16: got %d want 42", got)
	}
	if got := d.GetUint32(); got != 1234567 {
		t.Fatalf("uint32: got %d want 1234567", got)
	}
	if got := d.GetUint64(); got != 9876543210 {
		t.Fatalf("uint64: got %d want 9876543210", got)
	}
	if got := d.GetString(); got != "v1.0.0" {
		t.Fatalf("string: got %q want %q", got, "v1.0.0")
	}
	if got := d.GetBlob(); !bytes.Equal(got, []byte{1, 2, 3}) {
		t.Fatalf("blob: got %v want [1 2 3]", got)
	}
	if !d.Done() {
		t.Fatal("expected decoder to be exhausted")
	}
	if d.Err() != nil {
		t.Fatalf("unexpected error: %v", d.Err())
	}
}

func TestDecoderTruncated(t *testing.T) {
	d := NewDecoder([]byte{0x01, 0x00, 0x02})
	d.GetUint16()
	if got := d.GetUint32(); got != 0 {
		t.Fatalf("expected zero value after truncation, got %d", got)
	}
	if d.Err() != ErrTruncated {
		t.Fatalf("expected ErrTruncated, got %v", d.Err())
	}
	// Once err is set, further reads stay zero and don't panic.
	if got := d.GetString(); got != "" {
		t.Fatalf("expected empty string after truncation, got %q", got)
	}
}

func TestDecoderDoneDetectsTrailingBytes(t *testing.T) {
	body := NewEncoder(uint16(ClientHelloResp)).Bytes()
	body = append(body, 0xFF) // trailing garbage byte

	d := NewDecoder(body)
	d.GetUint16()
	if d.Done() {
		t.Fatal("expected Done() == false with trailing bytes")
	}
}

func TestDecoderRemainderAndAtEnd(t *testing.T) {
	d := NewDecoder([]byte{0x01, 0x02, 0x03})
	if d.AtEnd() {
		t.Fatal("expected AtEnd() == false at start")
	}
	rest := d.GetRemainder()
	if !bytes.Equal(rest, []byte{0x01, 0x02, 0x03}) {
		t.Fatalf("remainder: got %v", rest)
	}
	if !d.AtEnd() {
		t.Fatal("expected AtEnd() == true after consuming remainder")
	}
}

func TestPutRawAppendsWithoutPrefix(t *testing.T) {
	e := NewEncoder(uint16(ClientObjectUpdateField))
	before := e.Len()
	e.PutRaw([]byte{9, 9, 9})
	if e.Len() != before+3 {
		t.Fatalf("expected raw append to add exactly 3 bytes, got %d", e.Len()-before)
	}
}
