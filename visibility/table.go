// Copyright 2026 The Client Agent Authors
// SPDX-License-Identifier: Apache-2.0

// Package visibility implements the process-wide visibility table
// (client agent design §4.2, component C2): the refcounted record of
// every distributed object currently known to any client session of
// this agent.
package visibility

import "sync"

// Object is one VisibilityTable entry (client agent design §3).
type Object struct {
	ID       uint32
	Parent   uint32
	Zone     uint32
	ClassID  uint16
	Refcount uint32
}

// Table is the shared, process-wide id -> Object mapping. Concurrent
// access is serialized by the agent's single-threaded dispatch
// discipline in production (client agent design §5); the mutex here
// makes the same guarantee hold under a goroutine-per-session runtime
// without changing the observable semantics.
type Table struct {
	mu      sync.Mutex
	objects map[uint32]Object
}

// NewTable constructs an empty Table.
func NewTable() *Table {
	return &Table{objects: make(map[uint32]Object)}
}

// Observe records that a session has just learned of id at
// (parent, zone) with the given class, incrementing its refcount. If
// the entry is absent, or present with a refcount of zero, it is
// (re)initialized first — matching client agent design §4.2.
func (t *Table) Observe(id uint32, parent, zone uint32, classID uint16) {
	t.mu.Lock()
	defer t.mu.Unlock()
	obj, ok := t.objects[id]
	if !ok || obj.Refcount == 0 {
		obj = Object{ID: id, Parent: parent, Zone: zone, ClassID: classID}
	}
	obj.Refcount++
	t.objects[id] = obj
}

// Relocate updates id's recorded location without touching its
// refcount, used when a STATESERVER_OBJECT_CHANGE_ZONE event moves an
// object the table already tracks.
func (t *Table) Relocate(id uint32, parent, zone uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	obj, ok := t.objects[id]
	if !ok {
		return
	}
	obj.Parent, obj.Zone = parent, zone
	t.objects[id] = obj
}

// Release decrements id's refcount, pruning the entry once it reaches
// zero. Calling Release on an id with no entry, or one already at
// refcount zero, is a no-op — callers are expected to only release ids
// they previously observed (P1 refcount soundness).
func (t *Table) Release(id uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	obj, ok := t.objects[id]
	if !ok || obj.Refcount == 0 {
		return
	}
	obj.Refcount--
	if obj.Refcount == 0 {
		delete(t.objects, id)
		return
	}
	t.objects[id] = obj
}

// Lookup returns the current entry for id, if any.
func (t *Table) Lookup(id uint32) (Object, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	obj, ok := t.objects[id]
	return obj, ok
}

// ObjectsAt returns every currently-tracked object located at
// (parent, zone), used by interest removal to find objects that must
// be disabled for a client losing visibility into that zone (client
// agent design §4.5 "Remove interest" step 2).
func (t *Table) ObjectsAt(parent, zone uint32) []Object {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []Object
	for _, obj := range t.objects {
		if obj.Parent == parent && obj.Zone == zone {
			out = append(out, obj)
		}
	}
	return out
}

// TotalRefcount sums every tracked object's refcount, used by tests to
// verify P6 teardown cleanliness.
func (t *Table) TotalRefcount() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	var total uint64
	for _, obj := range t.objects {
		total += uint64(obj.Refcount)
	}
	return total
}
