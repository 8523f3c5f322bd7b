// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package metrics provides Prometheus instrumentation for mircd.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registration outcomes.
const (
	RegistrationAttempted = "attempted"
	RegistrationRejected  = "rejected"
	RegistrationCompleted = "completed"
)

// Metrics holds all Prometheus metrics for mircd.
type Metrics struct {
	// Connection metrics
	ActiveConnections  *prometheus.GaugeVec
	TotalConnections   *prometheus.CounterVec
	ConnectionDuration *prometheus.HistogramVec

	// Protocol metrics
	CommandsTotal      *prometheus.CounterVec
	Registrations      *prometheus.CounterVec
	RegisteredSessions prometheus.Gauge

	// Rate limiter metrics
	RateLimitedRequests *prometheus.CounterVec

	factory   promauto.Factory
	namespace string
}

// New creates a new Metrics instance registered with reg. A nil reg
// uses the default Prometheus registerer.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "mircd"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		ActiveConnections: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_connections",
				Help:      "Number of currently active connections",
			},
			[]string{"transport"},
		),
		TotalConnections: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "connections_total",
				Help:      "Total number of connections",
			},
			[]string{"transport", "status"},
		),
		ConnectionDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "connection_duration_seconds",
				Help:      "Connection duration in seconds",
				Buckets:   []float64{1, 10, 60, 300, 900, 3600, 14400, 86400},
			},
			[]string{"transport"},
		),
		CommandsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commands_total",
				Help:      "Total number of parsed commands",
			},
			[]string{"transport", "command"},
		),
		Registrations: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "registrations_total",
				Help:      "Total number of NICK/USER registrations by outcome",
			},
			[]string{"transport", "outcome"},
		),
		RegisteredSessions: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "registered_sessions",
				Help:      "Number of registered sessions",
			},
		),
		RateLimitedRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limited_requests_total",
				Help:      "Total number of rate limited requests",
			},
			[]string{"transport", "limiter_type"},
		),
		factory:   f,
		namespace: namespace,
	}
}

// WatchIdentities exports the size of the identity registry. It can be
// called once per Metrics.
func (m *Metrics) WatchIdentities(size func() int) {
	m.factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: m.namespace,
			Name:      "identities",
			Help:      "Number of display names held by the registry",
		},
		func() float64 { return float64(size()) },
	)
}

// ObserveConnection tracks a connection lifecycle.
func (m *Metrics) ObserveConnection(transport string, f func() error) error {
	m.ActiveConnections.WithLabelValues(transport).Inc()
	defer m.ActiveConnections.WithLabelValues(transport).Dec()

	start := time.Now()
	defer func() {
		m.ConnectionDuration.WithLabelValues(transport).Observe(time.Since(start).Seconds())
	}()

	err := f()
	status := "success"
	if err != nil {
		status = "error"
	}
	m.TotalConnections.WithLabelValues(transport, status).Inc()

	return err
}

// ObserveCommand counts one command.
func (m *Metrics) ObserveCommand(transport, command string) {
	m.CommandsTotal.WithLabelValues(transport, command).Inc()
}

// ObserveRegistration counts one registration outcome.
func (m *Metrics) ObserveRegistration(transport, outcome string) {
	m.Registrations.WithLabelValues(transport, outcome).Inc()
}

// ObserveRateLimited counts one request refused by limiter.
func (m *Metrics) ObserveRateLimited(transport, limiter string) {
	m.RateLimitedRequests.WithLabelValues(transport, limiter).Inc()
}
