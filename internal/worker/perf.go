// Transcriptory - Channel Transcript Harvesting Engine
// Copyright 2026 Transcriptory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/transcriptory/transcriptory

package worker

import (
	"fmt"
	"time"
)

// Metrics aggregates per-worker counters into pool-level performance
// figures for the workers-status endpoint.
type Metrics struct {
	TotalProcessed        int64   `json:"total_processed"`
	TotalFailed           int64   `json:"total_failed"`
	AverageRuntimeSeconds float64 `json:"average_runtime_seconds"`
	ProcessingRatePerHour float64 `json:"processing_rate_per_hour"`
	SuccessRate           float64 `json:"success_rate"`
	EstimatedCompletion   string  `json:"estimated_completion"`
}

// Metrics derives pool performance from the current worker snapshots and
// the pending queue depth.
func (p *Pool) Metrics(pending int) Metrics {
	return computeMetrics(p.Statuses(), pending, time.Now().UTC())
}

func computeMetrics(statuses []Status, pending int, now time.Time) Metrics {
	var m Metrics
	if len(statuses) == 0 {
		if pending == 0 {
			m.EstimatedCompletion = "queue complete"
		}
		return m
	}

	var totalRuntime float64
	for _, st := range statuses {
		m.TotalProcessed += st.Processed
		m.TotalFailed += st.Failed
		totalRuntime += now.Sub(st.StartedAt).Seconds()
	}

	m.AverageRuntimeSeconds = totalRuntime / float64(len(statuses))
	if totalRuntime > 0 {
		m.ProcessingRatePerHour = float64(m.TotalProcessed) / (totalRuntime / 3600)
	}
	if attempts := m.TotalProcessed + m.TotalFailed; attempts > 0 {
		m.SuccessRate = float64(m.TotalProcessed) / float64(attempts)
	}
	m.EstimatedCompletion = estimateCompletion(m.TotalProcessed, totalRuntime, len(statuses), pending)
	return m
}

// estimateCompletion projects the observed per-worker throughput onto
// the pending backlog.
func estimateCompletion(processed int64, totalRuntime float64, numWorkers, pending int) string {
	if pending == 0 {
		return "queue complete"
	}
	if processed == 0 || totalRuntime <= 0 {
		return "calculating"
	}

	ratePerSecond := float64(processed) / totalRuntime
	seconds := float64(pending) / (ratePerSecond * float64(numWorkers))
	hours := int(seconds) / 3600
	minutes := (int(seconds) % 3600) / 60
	if hours > 0 {
		return fmt.Sprintf("~%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("~%dm", minutes)
}
