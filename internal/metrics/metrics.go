// Transcriptory - Channel Transcript Harvesting Engine
// Copyright 2026 Transcriptory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/transcriptory/transcriptory

// Package metrics defines the Prometheus instrumentation surface.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Video processing results, used as the "result" label.
const (
	ResultCompleted       = "completed"
	ResultFailedTransient = "failed_transient"
	ResultFailedPermanent = "failed_permanent"
)

var (
	// VideosProcessed counts release outcomes by result.
	VideosProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcriptory_videos_processed_total",
		Help: "Total videos released by workers, labeled by result.",
	}, []string{"result"})

	// QueueDepth tracks video counts by queue status.
	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "transcriptory_queue_depth",
		Help: "Current number of videos per queue status.",
	}, []string{"status"})

	// ActiveWorkers tracks the number of running workers.
	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "transcriptory_active_workers",
		Help: "Number of currently running workers.",
	})

	// ExtractionDuration observes wall time per successful transcript
	// extraction.
	ExtractionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "transcriptory_extraction_duration_seconds",
		Help:    "Duration of transcript extraction calls.",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
	})

	// VideosIngested counts videos enqueued by channel ingestion.
	VideosIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transcriptory_videos_ingested_total",
		Help: "Total videos enqueued by channel ingestion.",
	})

	// HTTPRequests counts API requests by method, route, and status.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcriptory_http_requests_total",
		Help: "Total HTTP requests handled.",
	}, []string{"method", "route", "status"})

	// HTTPDuration observes API request latency by method and route.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "transcriptory_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// Handler exposes the default registry for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
