// Copyright 2026 The Client Agent Authors
// SPDX-License-Identifier: Apache-2.0

package visibility

import "testing"

func TestObserveInitializesAndIncrements(t *testing.T) {
	tbl := NewTable()
	tbl.Observe(500, 1000, 2, 7)
	obj, ok := tbl.Lookup(500)
	if !ok {
		t.Fatal("expected entry after Observe")
	}
	if obj.Refcount != 1 || obj.Parent != 1000 || obj.Zone != 2 || obj.ClassID != 7 {
		t.Fatalf("got %+v", obj)
	}

	tbl.Observe(500, 1000, 2, 7)
	obj, _ = tbl.Lookup(500)
	if obj.Refcount != 2 {
		t.Fatalf("expected refcount 2, got %d", obj.Refcount)
	}
}

func TestRelocateDoesNotChangeRefcount(t *testing.T) {
	tbl := NewTable()
	tbl.Observe(1, 10, 20, 1)
	tbl.Relocate(1, 11, 21)
	obj, ok := tbl.Lookup(1)
	if !ok {
		t.Fatal("expected entry to still exist")
	}
	if obj.Refcount != 1 {
		t.Fatalf("expected refcount unchanged at 1, got %d", obj.Refcount)
	}
	if obj.Parent != 11 || obj.Zone != 21 {
		t.Fatalf("expected location updated, got %+v", obj)
	}
}

func TestReleasePrunesAtZero(t *testing.T) {
	tbl := NewTable()
	tbl.Observe(1, 10, 20, 1)
	tbl.Observe(1, 10, 20, 1) // refcount 2
	tbl.Release(1)
	if _, ok := tbl.Lookup(1); !ok {
		t.Fatal("expected entry to survive one release at refcount 2")
	}
	tbl.Release(1)
	if _, ok := tbl.Lookup(1); ok {
		t.Fatal("expected entry to be pruned once refcount reaches 0")
	}
}

func TestReobserveAfterPruneReinitializes(t *testing.T) {
	tbl := NewTable()
	tbl.Observe(1, 10, 20, 1)
	tbl.Release(1)
	tbl.Observe(1, 30, 40, 2)
	obj, ok := tbl.Lookup(1)
	if !ok {
		t.Fatal("expected fresh entry")
	}
	if obj.Parent != 30 || obj.Zone != 40 || obj.ClassID != 2 || obj.Refcount != 1 {
		t.Fatalf("expected reinitialized entry, got %+v", obj)
	}
}

func TestObjectsAtFiltersByLocation(t *testing.T) {
	tbl := NewTable()
	tbl.Observe(1, 1000, 2, 1)
	tbl.Observe(2, 1000, 3, 1)
	tbl.Observe(3, 1000, 2, 1)

	at := tbl.ObjectsAt(1000, 2)
	if len(at) != 2 {
		t.Fatalf("expected 2 objects at (1000,2), got %d", len(at))
	}
}

func TestTotalRefcount(t *testing.T) {
	tbl := NewTable()
	tbl.Observe(1, 1, 1, 1)
	tbl.Observe(2, 1, 1, 1)
	tbl.Observe(2, 1, 1, 1)
	if got := tbl.TotalRefcount(); got != 3 {
		t.Fatalf("got %d want 3", got)
	}
}

func TestReleaseUntrackedIsNoOp(t *testing.T) {
	tbl := NewTable()
	tbl.Release(999) // must not panic
	if tbl.TotalRefcount() != 0 {
		t.Fatal("expected no change")
	}
}
