// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package mircd

import (
	"errors"
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
)

func TestNewConfig(t *testing.T) {
	cfg, err := NewConfig(env.Options{
		Prefix: "MIRCD_",
		Environment: map[string]string{
			"MIRCD_SERVER_NAME":        "irc.test",
			"MIRCD_OPERATOR_PASSWORD":  "hunter2",
			"MIRCD_PORT":               "7000",
			"MIRCD_READ_TIMEOUT":       "90s",
			"MIRCD_WS_ALLOWED_ORIGINS": "https://a.test,https://b.test",
			"MIRCD_FLOOD_REFILL":       "0.5",
			"OTHER_PORT":               "1",
		},
	})
	if err != nil {
		t.Fatalf("NewConfig() error: %v", err)
	}

	if cfg.ServerName != "irc.test" || cfg.OperatorPassword != "hunter2" || cfg.Port != "7000" {
		t.Errorf("unexpected identity: %+v", cfg)
	}
	if cfg.ReadTimeout != 90*time.Second {
		t.Errorf("ReadTimeout = %v, want 90s", cfg.ReadTimeout)
	}
	if len(cfg.WSAllowedOrigins) != 2 || cfg.WSAllowedOrigins[1] != "https://b.test" {
		t.Errorf("WSAllowedOrigins = %v", cfg.WSAllowedOrigins)
	}
	if cfg.FloodRefill != 0.5 {
		t.Errorf("FloodRefill = %v, want 0.5", cfg.FloodRefill)
	}

	// Defaults
	if cfg.MaxLineLength != 512 || cfg.MaxNickLength != 30 || cfg.WSPath != "/" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.Address() != ":7000" {
		t.Errorf("Address() = %q, want :7000", cfg.Address())
	}
	if cfg.WSAddress() != "" {
		t.Errorf("WSAddress() = %q, want disabled", cfg.WSAddress())
	}
}

func TestNewConfig_Invalid(t *testing.T) {
	_, err := NewConfig(env.Options{
		Prefix:      "MIRCD_",
		Environment: map[string]string{"MIRCD_MAX_CONNECTIONS": "many"},
	})
	if err == nil {
		t.Error("expected error for non-numeric MAX_CONNECTIONS")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{"ok", Config{OperatorPassword: "x"}, nil},
		{"no password", Config{}, ErrMissingOperatorPassword},
		{"network without name", Config{OperatorPassword: "x", NetworkFile: "net.toml"}, ErrNetworkNeedsServerName},
		{"network with name", Config{OperatorPassword: "x", NetworkFile: "net.toml", ServerName: "a"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestConfig_ApplyNetwork(t *testing.T) {
	n := Network{Servers: []Peer{
		{Name: "irc1.test", Host: "10.0.0.1", Port: "7001"},
		{Name: "irc2.test", Host: "10.0.0.2", Port: "7002"},
	}}

	cfg := Config{ServerName: "IRC2.test"}
	if err := cfg.ApplyNetwork(n); err != nil {
		t.Fatalf("ApplyNetwork() error: %v", err)
	}
	if cfg.Port != "7002" || cfg.Host != "10.0.0.2" {
		t.Errorf("Address() = %q, want network entry 10.0.0.2:7002", cfg.Address())
	}

	cfg = Config{ServerName: "irc1.test", Host: "127.0.0.1", Port: "6000"}
	cfg.ApplyNetwork(n)
	if cfg.Address() != "127.0.0.1:6000" {
		t.Errorf("Address() = %q, configured host and port must win", cfg.Address())
	}

	cfg = Config{ServerName: "irc3.test"}
	if err := cfg.ApplyNetwork(n); !errors.Is(err, ErrUnknownServer) {
		t.Errorf("ApplyNetwork() = %v, want ErrUnknownServer", err)
	}
}

func TestConfig_Address(t *testing.T) {
	if got := (Config{}).Address(); got != ":"+DefaultPort {
		t.Errorf("Address() = %q, want default port", got)
	}
	if got := (Config{Host: "127.0.0.1", WSPort: "8081"}).WSAddress(); got != "127.0.0.1:8081" {
		t.Errorf("WSAddress() = %q", got)
	}
}
