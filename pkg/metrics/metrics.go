// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors for the recording pipeline and the http
// surface. Each instance owns its registry so tests can build many.
type Metrics struct {
	registry *prometheus.Registry

	HttpRequestsTotal   *prometheus.CounterVec
	HttpRequestDuration *prometheus.HistogramVec

	RecordingSessionsTotal *prometheus.CounterVec
	RecordingChunksTotal   prometheus.Counter
	CaptureFailuresTotal   prometheus.Counter

	UploadsTotal        *prometheus.CounterVec
	UploadDuration      prometheus.Histogram
	UploadQueueDepth    prometheus.Gauge
	UploadDeadLetters   prometheus.Counter
	LiveSessionsCreated *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		HttpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "conversation_http_requests_total",
			Help: "Total number of http requests",
		}, []string{"method", "route", "status"}),
		HttpRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "conversation_http_request_duration_seconds",
			Help:    "Duration of http requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		RecordingSessionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "conversation_recording_sessions_total",
			Help: "Recording session transitions",
		}, []string{"transition"}),
		RecordingChunksTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "conversation_recording_chunks_total",
			Help: "Chunks produced by recording sessions",
		}),
		CaptureFailuresTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "conversation_capture_failures_total",
			Help: "Capture start or rotation failures",
		}),
		UploadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "conversation_chunk_uploads_total",
			Help: "Chunk upload attempts by outcome",
		}, []string{"status"}),
		UploadDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "conversation_chunk_upload_duration_seconds",
			Help:    "Duration of a single chunk upload attempt",
			Buckets: prometheus.DefBuckets,
		}),
		UploadQueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "conversation_upload_queue_depth",
			Help: "Chunks waiting in the upload queue",
		}),
		UploadDeadLetters: factory.NewCounter(prometheus.CounterOpts{
			Name: "conversation_upload_dead_letters_total",
			Help: "Chunks dropped after exhausting upload attempts",
		}),
		LiveSessionsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "conversation_live_sessions_total",
			Help: "Live session initiation requests by outcome",
		}, []string{"status"}),
	}
}

func (m *Metrics) RecordHttpRequest(method, route, status string, d time.Duration) {
	m.HttpRequestsTotal.WithLabelValues(method, route, status).Inc()
	m.HttpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) RecordUpload(status string, d time.Duration) {
	m.UploadsTotal.WithLabelValues(status).Inc()
	m.UploadDuration.Observe(d.Seconds())
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
