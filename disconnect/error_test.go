// Copyright 2026 The Client Agent Authors
// SPDX-License-Identifier: Apache-2.0

package disconnect

import (
	"errors"
	"fmt"
	"testing"

	"github.com/opendog-project/clientagent/wire"
)

func TestNewCarriesReasonAndMessage(t *testing.T) {
	err := New(wire.ReasonBadDCHash, "mismatch: %d != %d", 1, 2)
	if err.Reason != wire.ReasonBadDCHash {
		t.Fatalf("Reason = %v, want %v", err.Reason, wire.ReasonBadDCHash)
	}
	if err.Message != "mismatch: 1 != 2" {
		t.Fatalf("Message = %q", err.Message)
	}
	if err.Internal {
		t.Fatal("New() must not mark Internal")
	}
}

func TestInternalMarksInternalAndGeneric(t *testing.T) {
	err := Internal("unexpected state %d", 7)
	if err.Reason != wire.ReasonGeneric {
		t.Fatalf("Reason = %v, want ReasonGeneric", err.Reason)
	}
	if !err.Internal {
		t.Fatal("Internal() must mark Internal")
	}
}

func TestIsMatchesWrappedReason(t *testing.T) {
	base := New(wire.ReasonForbiddenField, "nope")
	wrapped := fmt.Errorf("handling frame: %w", base)

	if !Is(wrapped, wire.ReasonForbiddenField) {
		t.Fatal("Is() should unwrap to find the disconnect.Error")
	}
	if Is(wrapped, wire.ReasonMissingObject) {
		t.Fatal("Is() matched the wrong reason")
	}
}

func TestIsFalseForUnrelatedError(t *testing.T) {
	if Is(errors.New("boom"), wire.ReasonGeneric) {
		t.Fatal("Is() must be false for a non-disconnect error")
	}
}

func TestErrCapacityReachedReason(t *testing.T) {
	if ErrCapacityReached.Reason != wire.ReasonGeneric {
		t.Fatalf("ErrCapacityReached.Reason = %v, want ReasonGeneric", ErrCapacityReached.Reason)
	}
}
