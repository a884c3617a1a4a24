/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SessionsActive tracks live radio sessions.
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "munin_sessions_active",
		Help: "Number of active radio sessions.",
	})

	// PlaybacksTotal counts artifacts handed to the transport.
	PlaybacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "munin_playbacks_total",
		Help: "Artifacts handed to the playback transport.",
	}, []string{"kind"})

	// RendersTotal counts transform gateway renders by result.
	RendersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "munin_renders_total",
		Help: "Transform gateway render attempts.",
	}, []string{"result"})

	// CacheLookupsTotal counts render cache lookups by outcome.
	CacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "munin_render_cache_lookups_total",
		Help: "Render cache lookups.",
	}, []string{"outcome"})

	// SynthesisFailuresTotal counts skipped announcements.
	SynthesisFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "munin_synthesis_failures_total",
		Help: "Announcement synthesis failures (announcement skipped).",
	})

	// SelectionRetriesTotal counts next-item selection retries.
	SelectionRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "munin_selection_retries_total",
		Help: "Next-item selection retries after failure.",
	})

	// APIRequestsTotal counts control API requests.
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "munin_api_requests_total",
		Help: "Control API requests.",
	}, []string{"method", "endpoint", "status"})

	// APIRequestDuration observes control API latency.
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "munin_api_request_duration_seconds",
		Help:    "Control API request duration.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	// APIActiveConnections tracks in-flight API requests.
	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "munin_api_active_connections",
		Help: "In-flight control API requests.",
	})
)

// Handler exposes the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
