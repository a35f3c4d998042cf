// Copyright 2026 The Client Agent Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the client agent
// process: the bind address, expected protocol version and schema
// hash, identity-channel range, uberdog declarations, and bus/log
// settings enumerated in the component design.
package config
