// Copyright 2026 The Client Agent Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the client agent's standard CBOR encoding
// configuration.
//
// Field payloads on the wire (both the client protocol and the message
// director bus) are opaque byte strings whose structure is defined by
// the schema registry's field descriptors. The schema package packs
// and unpacks those payloads through this package's Core Deterministic
// Encoding (RFC 8949 §4.2) mode: sorted map keys, smallest integer
// encoding, no indefinite-length items — so a given field value always
// packs to the same bytes, and a malformed payload fails to decode
// deterministically (surfaced by the session as TRUNCATED_DATAGRAM).
//
// For buffer-oriented operations:
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations:
//
//	encoder := codec.NewEncoder(w)
//	decoder := codec.NewDecoder(r)
package codec
