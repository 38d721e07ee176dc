// Copyright (C) 2026 PSScript AI (dev@psscript.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics for the orchestrator.
//
// Metrics are exposed via the /metrics endpoint. All operations are
// thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "scriptguard"

// Metrics holds the Prometheus collectors for script-guard operations.
//
// All recording methods are nil-safe so handlers can run without metrics
// in tests.
type Metrics struct {
	// RequestsTotal counts API requests by endpoint and status.
	// Labels: endpoint (chat, scan, execute, ...), status (success, error, blocked)
	RequestsTotal *prometheus.CounterVec

	// ScansTotal counts security scans by resulting overall level.
	// Labels: level (safe, low, medium, high, critical)
	ScansTotal *prometheus.CounterVec

	// BlockedTotal counts blocked operations by source.
	// Labels: source (scan, output_validation, sandbox, topic)
	BlockedTotal *prometheus.CounterVec

	// SandboxExecutionsTotal counts sandbox runs by final status.
	// Labels: status (success, error, timeout, blocked, partial)
	SandboxExecutionsTotal *prometheus.CounterVec

	// SandboxDurationSeconds measures wall-clock sandbox execution time.
	SandboxDurationSeconds prometheus.Histogram

	// TokensTotal counts tokens by direction and model.
	// Labels: direction (input, output), model
	TokensTotal *prometheus.CounterVec

	// RoutingDecisionsTotal counts router outcomes.
	// Labels: model, task_type
	RoutingDecisionsTotal *prometheus.CounterVec
}

// DefaultMetrics is the singleton used by the server. Set by InitMetrics().
var DefaultMetrics *Metrics

// NewMetrics creates and registers all collectors against reg.
// Tests pass a fresh prometheus.NewRegistry().
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "requests_total",
				Help:      "Total API requests by endpoint and status",
			},
			[]string{"endpoint", "status"},
		),
		ScansTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "scans_total",
				Help:      "Security scans by resulting overall level",
			},
			[]string{"level"},
		),
		BlockedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "blocked_total",
				Help:      "Blocked operations by source",
			},
			[]string{"source"},
		),
		SandboxExecutionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "sandbox_executions_total",
				Help:      "Sandbox executions by final status",
			},
			[]string{"status"},
		),
		SandboxDurationSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "sandbox_duration_seconds",
				Help:      "Wall-clock sandbox execution time in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
		),
		TokensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "tokens_total",
				Help:      "Tokens processed by direction and model",
			},
			[]string{"direction", "model"},
		),
		RoutingDecisionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "routing_decisions_total",
				Help:      "Router outcomes by model and task type",
			},
			[]string{"model", "task_type"},
		),
	}
}

// InitMetrics registers the singleton against the default registry.
// Call once at startup; a second call panics on duplicate registration.
func InitMetrics() *Metrics {
	DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer)
	return DefaultMetrics
}

// RecordRequest records a completed API request.
func (m *Metrics) RecordRequest(endpoint, status string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(endpoint, status).Inc()
}

// RecordScan records a security scan outcome.
func (m *Metrics) RecordScan(level string) {
	if m == nil {
		return
	}
	m.ScansTotal.WithLabelValues(level).Inc()
}

// RecordBlocked records a blocked operation.
func (m *Metrics) RecordBlocked(source string) {
	if m == nil {
		return
	}
	m.BlockedTotal.WithLabelValues(source).Inc()
}

// RecordSandboxExecution records a sandbox run.
func (m *Metrics) RecordSandboxExecution(status string, seconds float64) {
	if m == nil {
		return
	}
	m.SandboxExecutionsTotal.WithLabelValues(status).Inc()
	m.SandboxDurationSeconds.Observe(seconds)
}

// RecordTokens records token usage for a model.
func (m *Metrics) RecordTokens(inputTokens, outputTokens int, model string) {
	if m == nil {
		return
	}
	m.TokensTotal.WithLabelValues("input", model).Add(float64(inputTokens))
	m.TokensTotal.WithLabelValues("output", model).Add(float64(outputTokens))
}

// RecordRoutingDecision records a router outcome.
func (m *Metrics) RecordRoutingDecision(model, taskType string) {
	if m == nil {
		return
	}
	m.RoutingDecisionsTotal.WithLabelValues(model, taskType).Inc()
}
