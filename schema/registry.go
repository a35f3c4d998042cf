// Copyright 2026 The Client Agent Authors
// SPDX-License-Identifier: Apache-2.0

// Package schema implements the class/field catalog and field
// packer/unpacker that client agent design §1 treats as an external
// SchemaRegistry collaborator. The class tables are supplied by the
// caller (built from configuration); no DC file is parsed here. Field
// payloads are packed and unpacked
// through the local codec package's Core Deterministic CBOR Encoding,
// so a given field value always serializes to the same bytes and a
// malformed payload fails to decode deterministically.
package schema

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/opendog-project/clientagent/lib/codec"
)

// Field is one class field descriptor.
type Field struct {
	ID   uint16
	Name string
	// ClSend permits any client to update this field directly.
	ClSend bool
	// OwnSend permits only the object's owner (do_id in
	// session.owned_objects) to update this field.
	OwnSend bool
}

// Class is one schema class: an ordered field table addressable both
// by field id (wire encoding) and by name (config/lookup convenience).
type Class struct {
	ID     uint16
	Name   string
	Fields []Field
}

// FieldByID returns the field descriptor at fieldID within the class.
func (c Class) FieldByID(fieldID uint16) (Field, bool) {
	for _, f := range c.Fields {
		if f.ID == fieldID {
			return f, true
		}
	}
	return Field{}, false
}

// Registry is the immutable, read-only-after-init schema catalog.
// Safe for concurrent use.
type Registry struct {
	byName map[string]Class
	byID   map[uint16]Class
	hash   uint32
}

// NewRegistry builds a Registry from a set of class definitions and
// precomputes its catalog digest (see Hash).
func NewRegistry(classes []Class) *Registry {
	r := &Registry{
		byName: make(map[string]Class, len(classes)),
		byID:   make(map[uint16]Class, len(classes)),
	}
	for _, c := range classes {
		r.byName[c.Name] = c
		r.byID[c.ID] = c
	}
	r.hash = computeHash(classes)
	return r
}

// ClassByName resolves a class by its declared name, used to resolve
// an uberdog's configured class string.
func (r *Registry) ClassByName(name string) (Class, bool) {
	c, ok := r.byName[name]
	return c, ok
}

// ClassByID resolves a class by its numeric id, used to resolve a
// VisibilityTable entry's stored class_id.
func (r *Registry) ClassByID(id uint16) (Class, bool) {
	c, ok := r.byID[id]
	return c, ok
}

// Hash returns the catalog digest that CLIENT_HELLO's dc_hash is
// compared against. It is derived from the class and field tables so
// that any schema change changes the hash, without requiring a
// hand-maintained version constant.
func (r *Registry) Hash() uint32 {
	return r.hash
}

// Pack encodes value as a field's wire payload via Core Deterministic
// CBOR Encoding.
func Pack(value any) ([]byte, error) {
	data, err := codec.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("schema: pack field: %w", err)
	}
	return data, nil
}

// Unpack decodes a field's wire payload into out. The session surfaces
// an Unpack error on a client-supplied payload as TRUNCATED_DATAGRAM
// (client agent design §4.4 step 4).
func Unpack(payload []byte, out any) error {
	if err := codec.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("schema: unpack field: %w", err)
	}
	return nil
}

// computeHash produces a stable digest over the class/field tables by
// packing a sorted, canonical view of them through Core Deterministic
// CBOR Encoding and folding the SHA-256 digest into 32 bits. Sorting
// first makes the result independent of the order classes were
// registered in.
func computeHash(classes []Class) uint32 {
	sorted := append([]Class(nil), classes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	for i := range sorted {
		fields := append([]Field(nil), sorted[i].Fields...)
		sort.Slice(fields, func(a, b int) bool { return fields[a].ID < fields[b].ID })
		sorted[i].Fields = fields
	}

	data, err := codec.Marshal(sorted)
	if err != nil {
		// The catalog is built from static config, never client input;
		// a marshal failure here means a Field/Class type became
		// unencodable, a programming error caught long before this runs
		// against real traffic.
		panic(fmt.Sprintf("schema: catalog is unencodable: %v", err))
	}
	digest := sha256.Sum256(data)
	return binary.LittleEndian.Uint32(digest[:4])
}
