// Package metrics exposes Prometheus metrics for consultation turns.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ai_doctor"

type Metrics struct {
	Turns          *prometheus.CounterVec
	StageDuration  *prometheus.HistogramVec
	Transcriptions *prometheus.CounterVec
	Syntheses      *prometheus.CounterVec
	SpeechSeconds  prometheus.Histogram
	ActiveSessions prometheus.Gauge

	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates the metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Turns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total number of turns by kind and outcome",
		}, []string{"kind", "outcome"}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each stage of a turn",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		}, []string{"stage"}),
		Transcriptions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcriptions_total",
			Help:      "Total number of voice questions by outcome",
		}, []string{"outcome"}),
		Syntheses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "syntheses_total",
			Help:      "Total number of spoken answers by outcome",
		}, []string{"outcome"}),
		SpeechSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "speech_duration_seconds",
			Help:      "Duration of synthesized answers",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 9), // 1s to ~4 minutes
		}),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Current number of live consultation sessions",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP API requests",
		}, []string{"method", "endpoint", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP API request duration",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
	}
}

// The Record helpers accept a nil receiver so components can run without
// metrics.

func (m *Metrics) RecordTurn(kind, outcome string) {
	if m == nil {
		return
	}
	m.Turns.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) ObserveStage(stage string, started time.Time) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(started).Seconds())
}

func (m *Metrics) RecordTranscription(outcome string) {
	if m == nil {
		return
	}
	m.Transcriptions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordSynthesis(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.Syntheses.WithLabelValues(outcome).Inc()
	if duration > 0 {
		m.SpeechSeconds.Observe(duration.Seconds())
	}
}

func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}

func (m *Metrics) RecordHTTPRequest(method, endpoint, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, endpoint, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
