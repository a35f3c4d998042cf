// Copyright 2026 The Client Agent Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the client agent.
//
// Configuration is loaded from a single file specified by:
//   - CLIENTAGENT_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. This ensures
// deterministic, auditable configuration with no hidden overrides.
//
// The config file may contain environment-specific sections
// (development, staging, production) that override base values when
// the environment matches.
package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Config is the master configuration for the client agent.
type Config struct {
	// Environment identifies the deployment type.
	Environment Environment `yaml:"environment"`

	// Bind is the "ip:port" address the TCP acceptor listens on.
	Bind string `yaml:"bind"`

	// Version is the expected client protocol version string,
	// compared exactly against CLIENT_HELLO.
	Version string `yaml:"version"`

	// DCHash is the expected schema hash, compared exactly against
	// CLIENT_HELLO. Normally computed from the loaded SchemaRegistry,
	// but configurable for environments that pin it explicitly.
	DCHash uint32 `yaml:"dc_hash"`

	// Channels configures the identity-channel allocation range.
	Channels ChannelsConfig `yaml:"channels"`

	// Uberdogs lists the well-known objects declared at startup.
	Uberdogs []UberdogConfig `yaml:"uberdogs"`

	// Classes lists the distributed object classes the SchemaRegistry
	// resolves field permissions against. A real deployment typically
	// generates this section from a DC file; the client agent takes it
	// as plain configuration instead of parsing DC syntax itself.
	Classes []ClassConfig `yaml:"classes"`

	// Bus configures the connection to the internal message director bus.
	Bus BusConfig `yaml:"bus"`

	// Accept configures the TCP acceptor's per-remote-address
	// connection rate limit.
	Accept AcceptConfig `yaml:"accept"`

	// Log configures structured logging.
	Log LogConfig `yaml:"log"`

	// EnvironmentOverrides contains per-environment overrides, applied
	// after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ChannelsConfig configures the identity-channel allocation range
// handed to channel.Allocator.
type ChannelsConfig struct {
	Min uint64 `yaml:"min"`
	Max uint64 `yaml:"max"`
}

// UberdogConfig declares one well-known object present at startup.
type UberdogConfig struct {
	ID        uint32 `yaml:"id"`
	Class     string `yaml:"class"`
	Anonymous bool   `yaml:"anonymous"`
}

// ClassConfig declares one distributed object class and its field
// permission table for the SchemaRegistry.
type ClassConfig struct {
	ID     uint16        `yaml:"id"`
	Name   string        `yaml:"name"`
	Fields []FieldConfig `yaml:"fields"`
}

// FieldConfig declares one field's wire id and client permission bits
// (spec §4.4's `clsend`/`ownsend` schema attributes).
type FieldConfig struct {
	ID      uint16 `yaml:"id"`
	Name    string `yaml:"name"`
	ClSend  bool   `yaml:"clsend"`
	OwnSend bool   `yaml:"ownsend"`
}

// AcceptConfig bounds how fast new connections are accepted from any
// single remote address, guarding the DMZ-facing listener against one
// abusive or misbehaving source starving the bucket every other client
// draws from (client agent design §1).
type AcceptConfig struct {
	// RateLimit is new connections per second allowed from one remote
	// address. Zero disables rate limiting entirely.
	RateLimit float64 `yaml:"rate_limit"`
	// Burst is the token bucket's burst size for one remote address.
	Burst int `yaml:"burst"`
}

// BusConfig configures the client agent's connection to the message
// director bus (see mdbus.Bus).
type BusConfig struct {
	// Dial is the address of the bus endpoint. Empty means an
	// in-process mdbus.MemoryBus is used instead of dialing out —
	// the common case for a single-process deployment or tests.
	Dial string `yaml:"dial"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level is one of "debug", "info", "warn", "error". Default "info".
	Level string `yaml:"level"`
	// JSON selects JSON-formatted log output over text. Default false.
	JSON bool `yaml:"json"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Bind     *string         `yaml:"bind,omitempty"`
	Version  *string         `yaml:"version,omitempty"`
	Channels *ChannelsConfig `yaml:"channels,omitempty"`
	Bus      *BusConfig      `yaml:"bus,omitempty"`
	Accept   *AcceptConfig   `yaml:"accept,omitempty"`
	Log      *LogConfig      `yaml:"log,omitempty"`
}

// Default returns the default configuration. These defaults exist
// primarily to ensure every field has a sensible zero-value, not as a
// fallback — the config file is required for production deployment.
func Default() *Config {
	return &Config{
		Environment: Development,
		Bind:        "0.0.0.0:7198",
		Version:     "dev",
		Channels: ChannelsConfig{
			Min: 1_000_000_000,
			Max: 1_009_999_999,
		},
		Accept: AcceptConfig{
			RateLimit: 200,
			Burst:     50,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load loads configuration from the CLIENTAGENT_CONFIG environment
// variable. There are no fallbacks — if the variable is not set, this
// fails.
func Load() (*Config, error) {
	path := os.Getenv("CLIENTAGENT_CONFIG")
	if path == "" {
		return nil, fmt.Errorf("CLIENTAGENT_CONFIG environment variable not set; " +
			"set it to the path of your clientagent.yaml config file, or use --config")
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a specific file path.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}
	if overrides == nil {
		return
	}

	if overrides.Bind != nil {
		c.Bind = *overrides.Bind
	}
	if overrides.Version != nil {
		c.Version = *overrides.Version
	}
	if overrides.Channels != nil {
		c.Channels = *overrides.Channels
	}
	if overrides.Bus != nil {
		c.Bus = *overrides.Bus
	}
	if overrides.Accept != nil {
		c.Accept = *overrides.Accept
	}
	if overrides.Log != nil {
		c.Log = *overrides.Log
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in the
// bind address and bus dial address, for portability across
// deployment hosts.
func (c *Config) expandVariables() {
	vars := map[string]string{"HOME": os.Getenv("HOME")}
	c.Bind = expandVars(c.Bind, vars)
	c.Bus.Dial = expandVars(c.Bus.Dial, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}
	if c.Bind == "" {
		errs = append(errs, fmt.Errorf("bind is required"))
	}
	if c.Version == "" {
		errs = append(errs, fmt.Errorf("version is required"))
	}
	if c.Channels.Max < c.Channels.Min {
		errs = append(errs, fmt.Errorf("channels.max (%d) must be >= channels.min (%d)", c.Channels.Max, c.Channels.Min))
	}
	if c.Accept.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("accept.rate_limit must be >= 0"))
	}
	if c.Accept.Burst < 0 {
		errs = append(errs, fmt.Errorf("accept.burst must be >= 0"))
	}
	seen := make(map[uint32]bool, len(c.Uberdogs))
	for _, ud := range c.Uberdogs {
		if ud.Class == "" {
			errs = append(errs, fmt.Errorf("uberdog %d: class is required", ud.ID))
		}
		if seen[ud.ID] {
			errs = append(errs, fmt.Errorf("uberdog %d declared more than once", ud.ID))
		}
		seen[ud.ID] = true
	}
	seenClass := make(map[uint16]bool, len(c.Classes))
	for _, cls := range c.Classes {
		if cls.Name == "" {
			errs = append(errs, fmt.Errorf("class %d: name is required", cls.ID))
		}
		if seenClass[cls.ID] {
			errs = append(errs, fmt.Errorf("class %d declared more than once", cls.ID))
		}
		seenClass[cls.ID] = true
	}

	if len(errs) == 0 {
		return nil
	}
	joined := errs[0]
	for _, e := range errs[1:] {
		joined = fmt.Errorf("%w; %w", joined, e)
	}
	return joined
}
