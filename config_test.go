/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"testing"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "port too low", mutate: func(c *Config) { c.port = 0 }, wantErr: true},
		{name: "port too high", mutate: func(c *Config) { c.port = 70000 }, wantErr: true},
		{name: "cert without key", mutate: func(c *Config) { c.tlsCert = "cert.pem" }, wantErr: true},
		{name: "cert and key", mutate: func(c *Config) { c.tlsCert, c.tlsKey = "cert.pem", "key.pem" }},
		{name: "zero rounds", mutate: func(c *Config) { c.roundCount = 0 }, wantErr: true},
		{name: "zero buffer", mutate: func(c *Config) { c.sendBuffer = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)

			err := cfg.validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Scheme(t *testing.T) {
	cfg := testConfig()
	if cfg.scheme() != "http" {
		t.Fatalf("scheme = %s", cfg.scheme())
	}

	cfg.tlsCert, cfg.tlsKey = "cert.pem", "key.pem"
	if cfg.scheme() != "https" {
		t.Fatalf("scheme = %s", cfg.scheme())
	}
}

func TestNewCmd_Defaults(t *testing.T) {
	cfg := &Config{}
	newCmd(cfg)

	if cfg.port != 8080 || cfg.roundCount != 5 || cfg.sendBuffer != 16 || cfg.idempotentJoin {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestNewCmd_Env(t *testing.T) {
	t.Setenv("ODDBALL_ROUND_COUNT", "3")
	t.Setenv("ODDBALL_IDEMPOTENT_JOIN", "true")
	t.Setenv("ODDBALL_PORT", "9090")

	cfg := &Config{}
	newCmd(cfg)

	if cfg.roundCount != 3 || !cfg.idempotentJoin || cfg.port != 9090 {
		t.Fatalf("env not applied: %+v", cfg)
	}
}

func TestNewCmd_RejectsInvalidConfig(t *testing.T) {
	cfg := &Config{}
	cmd := newCmd(cfg)
	cmd.SetArgs([]string{"--round-count", "0"})

	if err := cmd.ExecuteContext(context.Background()); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestSetupTracing_NoopWithoutEndpoint(t *testing.T) {
	shutdown, err := setupTracing(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestSetupTracing_WithEndpoint(t *testing.T) {
	cfg := testConfig()
	// Non-routable, nothing is exported before shutdown.
	cfg.otelEndpoint = "http://192.0.2.1:4318"

	shutdown, err := setupTracing(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}
