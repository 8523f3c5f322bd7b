// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveConnection(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New("test", reg)

	inside := -1.0
	m.ObserveConnection("tcp", func() error {
		inside = testutil.ToFloat64(m.ActiveConnections.WithLabelValues("tcp"))
		return nil
	})
	m.ObserveConnection("tcp", func() error { return errors.New("boom") })

	if inside != 1 {
		t.Errorf("active connections during session = %v, want 1", inside)
	}
	if got := testutil.ToFloat64(m.ActiveConnections.WithLabelValues("tcp")); got != 0 {
		t.Errorf("active connections after session = %v, want 0", got)
	}
	if got := testutil.ToFloat64(m.TotalConnections.WithLabelValues("tcp", "success")); got != 1 {
		t.Errorf("success connections = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.TotalConnections.WithLabelValues("tcp", "error")); got != 1 {
		t.Errorf("error connections = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.ConnectionDuration); got != 1 {
		t.Errorf("duration series = %d, want 1", got)
	}
}

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New("", reg)

	m.ObserveCommand("tcp", "NICK")
	m.ObserveCommand("tcp", "NICK")
	m.ObserveCommand("websocket", "PING")
	m.ObserveRegistration("tcp", RegistrationCompleted)
	m.ObserveRateLimited("tcp", "flood")

	tests := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"nick", m.CommandsTotal.WithLabelValues("tcp", "NICK"), 2},
		{"ping", m.CommandsTotal.WithLabelValues("websocket", "PING"), 1},
		{"registered", m.Registrations.WithLabelValues("tcp", RegistrationCompleted), 1},
		{"flood", m.RateLimitedRequests.WithLabelValues("tcp", "flood"), 1},
	}
	for _, tt := range tests {
		if got := testutil.ToFloat64(tt.c); got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
		}
	}

	expected := `
# HELP mircd_commands_total Total number of parsed commands
# TYPE mircd_commands_total counter
mircd_commands_total{command="NICK",transport="tcp"} 2
mircd_commands_total{command="PING",transport="websocket"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "mircd_commands_total"); err != nil {
		t.Error(err)
	}
}

func TestWatchIdentities(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New("test", reg)

	n := 3
	m.WatchIdentities(func() int { return n })

	expected := `
# HELP test_identities Number of display names held by the registry
# TYPE test_identities gauge
test_identities 3
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "test_identities"); err != nil {
		t.Error(err)
	}
}

func TestNew_DuplicateRegistryPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New("dup", reg)

	defer func() {
		if recover() == nil {
			t.Error("expected panic registering the same metrics twice")
		}
	}()
	New("dup", reg)
}
