// Copyright 2026 The Client Agent Authors
// SPDX-License-Identifier: Apache-2.0

// Package uberdog implements the uberdog registry (client agent design
// §4.3, component C3): an immutable, post-init catalog of well-known
// distributed objects declared in configuration.
package uberdog

import "github.com/opendog-project/clientagent/config"

// Uberdog is a well-known distributed object whose id and class are
// known a priori and fixed at startup.
type Uberdog struct {
	ID        uint32
	Class     string
	Anonymous bool
}

// Registry is the immutable, read-only-after-init lookup table loaded
// once from configuration at agent startup. Safe for concurrent use:
// nothing ever mutates it after construction.
type Registry struct {
	byID map[uint32]Uberdog
}

// NewRegistry builds a Registry from the agent's configured uberdog
// list. A later entry with a duplicate id overwrites an earlier one;
// config.Validate rejects duplicate ids before this ever runs.
func NewRegistry(entries []config.UberdogConfig) *Registry {
	byID := make(map[uint32]Uberdog, len(entries))
	for _, e := range entries {
		byID[e.ID] = Uberdog{ID: e.ID, Class: e.Class, Anonymous: e.Anonymous}
	}
	return &Registry{byID: byID}
}

// Lookup returns the uberdog registered under id, if any.
func (r *Registry) Lookup(id uint32) (Uberdog, bool) {
	u, ok := r.byID[id]
	return u, ok
}

// IsAnonymous reports whether id names an uberdog that allows field
// updates from sessions that have not yet reached ESTABLISHED
// (client agent design §4.4 state machine).
func (r *Registry) IsAnonymous(id uint32) bool {
	u, ok := r.byID[id]
	return ok && u.Anonymous
}
