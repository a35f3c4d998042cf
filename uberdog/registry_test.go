// Copyright 2026 The Client Agent Authors
// SPDX-License-Identifier: Apache-2.0

package uberdog

import (
	"testing"

	"github.com/opendog-project/clientagent/config"
)

func TestLookupAndAnonymous(t *testing.T) {
	reg := NewRegistry([]config.UberdogConfig{
		{ID: 100, Class: "Login", Anonymous: true},
		{ID: 200, Class: "ChatManager", Anonymous: false},
	})

	login, ok := reg.Lookup(100)
	if !ok || login.Class != "Login" {
		t.Fatalf("got %+v, ok=%v", login, ok)
	}
	if !reg.IsAnonymous(100) {
		t.Fatal("expected uberdog 100 to be anonymous")
	}
	if reg.IsAnonymous(200) {
		t.Fatal("expected uberdog 200 to not be anonymous")
	}
	if reg.IsAnonymous(999) {
		t.Fatal("expected unknown id to not be anonymous")
	}
	if _, ok := reg.Lookup(999); ok {
		t.Fatal("expected lookup miss for unknown id")
	}
}
