// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcribequeue_jobs_submitted_total",
		Help: "Total number of jobs submitted",
	}, []string{"source"})

	JobOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcribequeue_job_outcomes_total",
		Help: "Finished jobs by outcome and error kind",
	}, []string{"status", "kind"})

	ActiveJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "transcribequeue_active_jobs",
		Help: "Jobs currently holding a concurrency slot",
	})

	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "transcribequeue_job_duration_seconds",
		Help:    "Wall-clock time from admission to completion",
		Buckets: prometheus.ExponentialBuckets(1, 2.0, 12), // 1s to ~34min
	}, []string{"source"})

	SegmentsTranscribed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcribequeue_segments_total",
		Help: "Transcribed segments by outcome (ok, placeholder)",
	}, []string{"outcome"})

	RemoteCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcribequeue_remote_call_attempts_total",
		Help: "Remote call attempts by operation and outcome",
	}, []string{"operation", "outcome"})

	RemoteCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "transcribequeue_remote_call_duration_seconds",
		Help:    "Latency of individual remote call attempts",
		Buckets: prometheus.ExponentialBuckets(0.1, 2.0, 12), // 0.1s to ~205s
	}, []string{"operation"})

	AudioDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "transcribequeue_audio_duration_seconds",
		Help:    "Duration of decoded audio",
		Buckets: prometheus.ExponentialBuckets(1, 2.0, 14), // 1s to ~2.3h
	}, []string{"format"})

	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcribequeue_result_cache_lookups_total",
		Help: "Result cache lookups by outcome (hit, miss, error)",
	}, []string{"outcome"})

	MemoryUsage = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "transcribequeue_memory_usage_bytes",
		Help: "Process memory usage",
	}, []string{"type"})
)
