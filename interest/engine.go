// Copyright 2026 The Client Agent Authors
// SPDX-License-Identifier: Apache-2.0

// Package interest implements the interest engine (client agent design
// §4.5, component C5): the per-session bookkeeping that turns a
// client's declared (parent, zone) interests into message director
// subscriptions and object visibility, and tracks when each interest
// becomes ready.
package interest

import (
	"github.com/opendog-project/clientagent/mdbus"
	"github.com/opendog-project/clientagent/visibility"
)

// Interest is one client-declared subscription to a set of zones under
// a parent (client agent design §3).
type Interest struct {
	ID      uint16
	Parent  uint32
	Context uint32
	// Zones maps each requested zone to whether the state server has
	// acknowledged enumerating it to this session.
	Zones map[uint32]bool
}

// Ready reports whether every zone of the interest has been
// acknowledged.
func (i *Interest) Ready() bool {
	for _, ready := range i.Zones {
		if !ready {
			return false
		}
	}
	return true
}

func (i *Interest) zoneSet() map[uint32]struct{} {
	set := make(map[uint32]struct{}, len(i.Zones))
	for z := range i.Zones {
		set[z] = struct{}{}
	}
	return set
}

// Deps are the session-owned collaborators the engine drives. A
// session implements this directly (or adapts to it) so the engine
// stays ignorant of connection state, the schema, and the bus
// transport details.
type Deps interface {
	// Subscribe registers the session's interest in channel.
	Subscribe(channel uint64)
	// Unsubscribe drops the session's interest in channel.
	Unsubscribe(channel uint64)
	// QueryZoneAll emits STATESERVER_OBJECT_QUERY_ZONE_ALL(parent, zones).
	QueryZoneAll(parent uint32, zones []uint32)
	// EmitDoneInterestResp sends CLIENT_DONE_INTEREST_RESP.
	EmitDoneInterestResp(interestID uint16, context uint32)
	// EmitObjectDisable sends CLIENT_OBJECT_DISABLE.
	EmitObjectDisable(doID uint32)
	// IsOwned reports whether doID is in the session's owned_objects set
	// — owned objects bypass the visibility/disable path.
	IsOwned(doID uint32) bool
}

// Engine owns one session's interest map and visibility-derived
// subscription set.
type Engine struct {
	deps       Deps
	visibility *visibility.Table
	interests  map[uint16]*Interest
}

// NewEngine constructs an Engine for one session.
func NewEngine(deps Deps, table *visibility.Table) *Engine {
	return &Engine{deps: deps, visibility: table, interests: make(map[uint16]*Interest)}
}

// Lookup returns the interest registered under id, if any, used by
// tests and by the session's own diagnostics.
func (e *Engine) Lookup(id uint16) (*Interest, bool) {
	i, ok := e.interests[id]
	return i, ok
}

var locationChannel = mdbus.LocationChannel

// zonesCoveredByOthers reports which of zones are still covered by
// some interest on the same parent other than exclude; a zone maps to
// true when it is covered.
func (e *Engine) zonesCoveredByOthers(parent uint32, exclude *Interest, zones map[uint32]struct{}) map[uint32]bool {
	covered := make(map[uint32]bool, len(zones))
	for _, other := range e.interests {
		if other == exclude || other.Parent != parent {
			continue
		}
		for z := range zones {
			if _, ok := other.Zones[z]; ok {
				covered[z] = true
			}
		}
	}
	return covered
}

// AddInterest handles CLIENT_ADD_INTEREST, dispatching to AlterInterest
// if interestID already exists (client agent design §4.5).
func (e *Engine) AddInterest(interestID uint16, context uint32, parent uint32, zones []uint32) {
	if existing, ok := e.interests[interestID]; ok {
		e.AlterInterest(existing, context, parent, zones)
		return
	}

	wanted := make(map[uint32]struct{}, len(zones))
	for _, z := range zones {
		wanted[z] = struct{}{}
	}
	covered := e.zonesCoveredByOthers(parent, nil, wanted)

	newInterest := &Interest{ID: interestID, Parent: parent, Context: context, Zones: make(map[uint32]bool, len(zones))}
	var newZones []uint32
	for z := range wanted {
		if covered[z] {
			// Already subscribed via another interest on this parent;
			// inherit ready=true immediately rather than re-querying.
			newInterest.Zones[z] = true
			continue
		}
		newInterest.Zones[z] = false
		newZones = append(newZones, z)
	}

	for _, z := range newZones {
		e.deps.Subscribe(locationChannel(parent, z))
	}
	e.interests[interestID] = newInterest

	if len(newZones) > 0 {
		e.deps.QueryZoneAll(parent, newZones)
		return
	}
	e.deps.EmitDoneInterestResp(interestID, context)
}

// AlterInterest handles a CLIENT_ADD_INTEREST that reuses an existing
// interest_id (client agent design §4.5 "Alter interest").
func (e *Engine) AlterInterest(existing *Interest, context uint32, parent uint32, zones []uint32) {
	existing.Context = context

	if parent != existing.Parent {
		oldParent, oldZones := existing.Parent, existing.zoneSet()
		delete(e.interests, existing.ID)
		e.removeZones(oldParent, existing, oldZones)
		e.AddInterest(existing.ID, context, parent, zones)
		return
	}

	newSet := make(map[uint32]struct{}, len(zones))
	for _, z := range zones {
		newSet[z] = struct{}{}
	}
	oldSet := existing.zoneSet()

	var added []uint32
	for z := range newSet {
		if _, ok := oldSet[z]; !ok {
			added = append(added, z)
		}
	}
	var removed map[uint32]struct{}
	for z := range oldSet {
		if _, ok := newSet[z]; !ok {
			if removed == nil {
				removed = make(map[uint32]struct{})
			}
			removed[z] = struct{}{}
		}
	}

	newZoneState := make(map[uint32]bool, len(newSet))
	for z := range newSet {
		if ready, ok := existing.Zones[z]; ok {
			newZoneState[z] = ready // z ∈ new ∩ old: copy ready flag
		}
	}
	existing.Zones = newZoneState

	if len(removed) > 0 {
		e.removeZones(parent, existing, removed)
	}

	if len(added) > 0 {
		coveredAdded := e.zonesCoveredByOthers(parent, existing, toSet(added))
		var query []uint32
		for _, z := range added {
			if coveredAdded[z] {
				existing.Zones[z] = true
				continue
			}
			existing.Zones[z] = false
			query = append(query, z)
		}
		for _, z := range query {
			e.deps.Subscribe(locationChannel(parent, z))
		}
		if len(query) > 0 {
			e.deps.QueryZoneAll(parent, query)
		}
	}

	if existing.Ready() {
		e.deps.EmitDoneInterestResp(existing.ID, existing.Context)
	}
}

func toSet(zones []uint32) map[uint32]struct{} {
	set := make(map[uint32]struct{}, len(zones))
	for _, z := range zones {
		set[z] = struct{}{}
	}
	return set
}

// removeZones drops zones from one interest's tracking, unsubscribing
// channels and disabling now-invisible objects for zones not covered
// by any other interest on the same parent.
func (e *Engine) removeZones(parent uint32, owner *Interest, zones map[uint32]struct{}) {
	covered := e.zonesCoveredByOthers(parent, owner, zones)
	for z := range zones {
		if covered[z] {
			continue
		}
		e.deps.Unsubscribe(locationChannel(parent, z))
		for _, obj := range e.visibility.ObjectsAt(parent, z) {
			if e.deps.IsOwned(obj.ID) {
				continue
			}
			e.deps.EmitObjectDisable(obj.ID)
			e.visibility.Release(obj.ID)
		}
	}
}

// RemoveInterest handles CLIENT_REMOVE_INTEREST (client agent design
// §4.5). hasContext distinguishes an omitted context field from an
// explicit zero, matching the wire optionality of the field.
func (e *Engine) RemoveInterest(interestID uint16, context uint32, hasContext bool) {
	existing, ok := e.interests[interestID]
	if !ok {
		return
	}
	delete(e.interests, interestID)
	e.removeZones(existing.Parent, existing, existing.zoneSet())
	if hasContext && context != 0 {
		e.deps.EmitDoneInterestResp(interestID, context)
	}
}

// QueryDone handles STATESERVER_OBJECT_QUERY_ZONE_ALL_DONE: every
// not-yet-ready interest on parent has its zones marked ready where
// they appear in the done-list; a transition to fully-ready emits
// DONE_INTEREST_RESP exactly once (client agent design §4.5, P3).
func (e *Engine) QueryDone(parent uint32, zones []uint32) {
	doneSet := toSet(zones)
	for _, i := range e.interests {
		if i.Parent != parent || i.Ready() {
			continue
		}
		for z := range doneSet {
			if _, tracked := i.Zones[z]; tracked {
				i.Zones[z] = true
			}
		}
		if i.Ready() {
			e.deps.EmitDoneInterestResp(i.ID, i.Context)
		}
	}
}

// StillVisible reports whether any interest on newParent covers
// newZone, the visibility test used by ChangeZone (client agent design
// §4.5 "Object relocation": the test is on the new location only).
func (e *Engine) StillVisible(newParent, newZone uint32) bool {
	for _, i := range e.interests {
		if i.Parent != newParent {
			continue
		}
		if _, ok := i.Zones[newZone]; ok {
			return true
		}
	}
	return false
}

// RemoveAll tears down every interest this engine owns, used at
// session teardown (client agent design §3 lifecycle, P6). It
// releases every zone's subscription and visibility refcount exactly
// as RemoveInterest would, without emitting any DONE_INTEREST_RESP —
// the session is gone, there is no one to reply to.
func (e *Engine) RemoveAll() {
	for id, i := range e.interests {
		delete(e.interests, id)
		e.removeZones(i.Parent, i, i.zoneSet())
	}
}
