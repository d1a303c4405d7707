// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// serverMetrics holds the Prometheus collectors of one server.
type serverMetrics struct {
	registry *prometheus.Registry

	chatRequests     *prometheus.CounterVec   // by stream and outcome (ok/error/disabled/rejected)
	chatChunks       prometheus.Counter       // relayed upstream chunks
	upstreamDuration *prometheus.HistogramVec // by stream
	activeRequests   prometheus.Gauge
	connections      prometheus.Gauge
	configUpdates    prometheus.Counter
	httpRequests     *prometheus.CounterVec // by route and status code
}

func newServerMetrics() *serverMetrics {
	m := &serverMetrics{
		registry: prometheus.NewRegistry(),

		chatRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gqlpilot",
			Subsystem: "chat",
			Name:      "requests_total",
			Help:      "Chat requests handled, by stream mode and outcome",
		}, []string{"stream", "outcome"}),

		chatChunks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gqlpilot",
			Subsystem: "chat",
			Name:      "chunks_total",
			Help:      "Upstream stream chunks relayed to clients",
		}),

		upstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gqlpilot",
			Subsystem: "upstream",
			Name:      "duration_seconds",
			Help:      "Upstream exchange duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stream"}),

		activeRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gqlpilot",
			Subsystem: "chat",
			Name:      "active_requests",
			Help:      "Chat requests currently in flight",
		}),

		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gqlpilot",
			Subsystem: "chat",
			Name:      "connections",
			Help:      "Open chat sockets",
		}),

		configUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gqlpilot",
			Subsystem: "config",
			Name:      "updates_total",
			Help:      "Successful GPT settings updates",
		}),

		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gqlpilot",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code",
		}, []string{"route", "code"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.chatRequests,
		m.chatChunks,
		m.upstreamDuration,
		m.activeRequests,
		m.connections,
		m.configUpdates,
		m.httpRequests,
	)
	return m
}

func (m *serverMetrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
