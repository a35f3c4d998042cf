// Copyright 2026 The Client Agent Authors
// SPDX-License-Identifier: Apache-2.0

// Command clientagentd is the client agent process entrypoint: it
// loads configuration, wires the shared collaborators, and runs the
// TCP acceptor until terminated.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opendog-project/clientagent/agent"
	"github.com/opendog-project/clientagent/channel"
	"github.com/opendog-project/clientagent/config"
	"github.com/opendog-project/clientagent/mdbus"
	"github.com/opendog-project/clientagent/netio"
	"github.com/opendog-project/clientagent/schema"
	"github.com/opendog-project/clientagent/uberdog"
	"github.com/opendog-project/clientagent/visibility"
)

func main() {
	configPath := flag.String("config", "", "path to clientagent.yaml (overrides CLIENTAGENT_CONFIG)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "clientagentd:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := newLogger(cfg.Log)

	classes := make([]schema.Class, 0, len(cfg.Classes))
	for _, c := range cfg.Classes {
		fields := make([]schema.Field, 0, len(c.Fields))
		for _, f := range c.Fields {
			fields = append(fields, schema.Field{ID: f.ID, Name: f.Name, ClSend: f.ClSend, OwnSend: f.OwnSend})
		}
		classes = append(classes, schema.Class{ID: c.ID, Name: c.Name, Fields: fields})
	}
	schemaReg := schema.NewRegistry(classes)

	dcHash := cfg.DCHash
	if dcHash == 0 {
		dcHash = schemaReg.Hash()
	}

	uberdogReg := uberdog.NewRegistry(cfg.Uberdogs)
	alloc := channel.NewAllocator(cfg.Channels.Min, cfg.Channels.Max)
	vis := visibility.NewTable()

	bus, err := dialBus(cfg.Bus, log)
	if err != nil {
		return fmt.Errorf("connect to message director bus: %w", err)
	}

	listener, err := netio.NewTCPListener(cfg.Bind)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Bind, err)
	}

	a := agent.New(listener, agent.Config{
		Bus:             bus,
		Channels:        alloc,
		Visibility:      vis,
		Uberdogs:        uberdogReg,
		Schema:          schemaReg,
		DCHash:          dcHash,
		Version:         cfg.Version,
		AcceptRateLimit: cfg.Accept.RateLimit,
		AcceptRateBurst: cfg.Accept.Burst,
		Logger:          log,
	})
	a.Start()

	log.Info("clientagentd ready", "bind", cfg.Bind, "environment", cfg.Environment, "dc_hash", dcHash)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return a.Shutdown(shutdownCtx)
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.JSON {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// dialBus constructs the message director bus collaborator. An empty
// dial address selects the in-process MemoryBus, the common case for a
// single-process deployment or local testing; a configured dial
// address is reserved for a future networked bus client (spec's
// PubSubBus is an external collaborator this repository does not
// implement a wire client for, see DESIGN.md).
func dialBus(cfg config.BusConfig, log *slog.Logger) (mdbus.Bus, error) {
	if cfg.Dial == "" {
		log.Info("using in-process message director bus", "reason", "bus.dial not configured")
		return mdbus.NewMemoryBus(), nil
	}
	return nil, fmt.Errorf("networked message director bus (dial=%q) is not implemented; leave bus.dial empty to use the in-process bus", cfg.Dial)
}
