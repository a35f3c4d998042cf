// Copyright 2026 The Client Agent Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Environment != Development {
		t.Errorf("expected environment=development, got %s", cfg.Environment)
	}
	if cfg.Bind != "0.0.0.0:7198" {
		t.Errorf("expected bind=0.0.0.0:7198, got %s", cfg.Bind)
	}
	if cfg.Version != "dev" {
		t.Errorf("expected version=dev, got %s", cfg.Version)
	}
	if cfg.Accept.RateLimit != 200 || cfg.Accept.Burst != 50 {
		t.Errorf("expected accept rate_limit=200 burst=50, got %+v", cfg.Accept)
	}
}

func TestLoad_RequiresEnvVar(t *testing.T) {
	origConfig := os.Getenv("CLIENTAGENT_CONFIG")
	defer os.Setenv("CLIENTAGENT_CONFIG", origConfig)
	os.Unsetenv("CLIENTAGENT_CONFIG")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when CLIENTAGENT_CONFIG not set, got nil")
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clientagent.yaml")

	content := `
environment: production
bind: "127.0.0.1:7198"
version: "v1"
dc_hash: 3405691582
channels:
  min: 1000
  max: 2000
uberdogs:
  - id: 100
    class: Login
    anonymous: true
production:
  bind: "0.0.0.0:9000"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Bind != "0.0.0.0:9000" {
		t.Errorf("expected production override of bind, got %s", cfg.Bind)
	}
	if cfg.Version != "v1" {
		t.Errorf("expected version=v1, got %s", cfg.Version)
	}
	if len(cfg.Uberdogs) != 1 || cfg.Uberdogs[0].ID != 100 {
		t.Fatalf("expected one uberdog with id 100, got %+v", cfg.Uberdogs)
	}
}

func TestValidate_RejectsBadChannelRange(t *testing.T) {
	cfg := Default()
	cfg.Channels.Min = 100
	cfg.Channels.Max = 10

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for inverted channel range")
	}
}

func TestValidate_RejectsNegativeAcceptRateLimit(t *testing.T) {
	cfg := Default()
	cfg.Accept.RateLimit = -1

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative accept.rate_limit")
	}
}

func TestValidate_RejectsDuplicateUberdog(t *testing.T) {
	cfg := Default()
	cfg.Uberdogs = []UberdogConfig{
		{ID: 100, Class: "Login"},
		{ID: 100, Class: "LoginManager"},
	}

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for duplicate uberdog id")
	}
}
