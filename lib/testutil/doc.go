// Copyright 2026 The Client Agent Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for the client agent's
// test suite.
//
// [RequireReceive], [RequireSend], and [RequireClosed] encapsulate the
// timeout safety valve pattern (select with time.After fallback) so
// that individual tests do not need direct time.After calls when
// asserting on session/bus/session-teardown channels.
//
// [UniqueID] generates string identifiers of the form "prefix-N", with
// N monotonically increasing, for values that must be distinguishable
// across concurrent subtests.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil
