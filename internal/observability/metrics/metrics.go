// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ai_reading_assistant"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Capture metrics
	CaptureStarts   *prometheus.CounterVec
	CaptureStops    prometheus.Counter
	CaptureRestarts *prometheus.CounterVec
	CaptureActive   prometheus.Gauge
	CaptureFaults   *prometheus.CounterVec

	// Transcript metrics
	TranscriptsPartial prometheus.Counter
	TranscriptsFinal   prometheus.Counter

	// Summarization metrics
	SummarizeTotal     *prometheus.CounterVec
	SummarizeLatency   prometheus.Histogram
	SummarizeInputSize prometheus.Histogram

	// Playback metrics
	PlaybackRequests      prometheus.Counter
	PlaybackCancellations *prometheus.CounterVec
	PlaybackErrors        *prometheus.CounterVec
	PlaybackSpeaking      prometheus.Gauge

	// Notification publish metrics
	NotifyPublishTotal   *prometheus.CounterVec
	NotifyPublishErrors  *prometheus.CounterVec
	NotifyPublishLatency *prometheus.HistogramVec
	WebsocketClients     prometheus.Gauge

	// gRPC metrics
	RPCTotal    *prometheus.CounterVec
	RPCDuration *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		// Capture metrics
		CaptureStarts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_starts_total",
			Help:      "Total number of explicit capture starts by outcome",
		}, []string{"outcome"}),
		CaptureStops: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_stops_total",
			Help:      "Total number of intentional capture stops",
		}),
		CaptureRestarts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_restarts_total",
			Help:      "Total number of automatic restart attempts by outcome",
		}, []string{"outcome"}),
		CaptureActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "capture_sessions_active",
			Help:      "Number of capture sessions currently listening",
		}),
		CaptureFaults: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_faults_total",
			Help:      "Total number of capture engine faults by kind and class",
		}, []string{"kind", "class"}),

		// Transcript metrics
		TranscriptsPartial: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_partial_total",
			Help:      "Total number of partial transcripts received",
		}),
		TranscriptsFinal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_final_total",
			Help:      "Total number of final transcripts committed",
		}),

		// Summarization metrics
		SummarizeTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summarize_total",
			Help:      "Total number of summarization calls by source",
		}, []string{"source"}),
		SummarizeLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "summarize_latency_seconds",
			Help:      "Summarization latency in seconds",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		SummarizeInputSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "summarize_input_bytes",
			Help:      "Size of summarization input in bytes",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 8),
		}),

		// Playback metrics
		PlaybackRequests: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playback_requests_total",
			Help:      "Total number of playback requests issued to the engine",
		}),
		PlaybackCancellations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playback_cancellations_total",
			Help:      "Total number of playback cancellations by reason",
		}, []string{"reason"}),
		PlaybackErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playback_errors_total",
			Help:      "Total number of playback engine errors by kind",
		}, []string{"kind"}),
		PlaybackSpeaking: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "playback_speaking",
			Help:      "1 while the playback engine is speaking",
		}),

		// Notification publish metrics
		NotifyPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notify_publish_total",
			Help:      "Total number of notifications published",
		}, []string{"topic", "event_type"}),
		NotifyPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notify_publish_errors_total",
			Help:      "Total number of notification publish errors",
		}, []string{"topic", "event_type"}),
		NotifyPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "notify_publish_latency_seconds",
			Help:      "Notification publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),
		WebsocketClients: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Number of connected websocket clients",
		}),

		// gRPC metrics
		RPCTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_requests_total",
			Help:      "Total number of gRPC requests by method and code",
		}, []string{"method", "code"}),
		RPCDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "grpc_request_duration_seconds",
			Help:      "Duration of gRPC requests in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"method"}),
	}
}

// RecordCaptureStart records an explicit start attempt.
func (m *Metrics) RecordCaptureStart(err error) {
	if err != nil {
		m.CaptureStarts.WithLabelValues("failed").Inc()
		return
	}
	m.CaptureStarts.WithLabelValues("ok").Inc()
}

// RecordCaptureStop records an intentional stop.
func (m *Metrics) RecordCaptureStop() {
	m.CaptureStops.Inc()
}

// RecordCaptureRestart records an automatic restart attempt.
// outcome is one of "ok", "failed", "skipped".
func (m *Metrics) RecordCaptureRestart(outcome string) {
	m.CaptureRestarts.WithLabelValues(outcome).Inc()
}

// RecordCaptureActive moves the active sessions gauge.
func (m *Metrics) RecordCaptureActive(active bool) {
	if active {
		m.CaptureActive.Inc()
	} else {
		m.CaptureActive.Dec()
	}
}

// RecordCaptureFault records a classified engine fault.
func (m *Metrics) RecordCaptureFault(kind, class string) {
	m.CaptureFaults.WithLabelValues(kind, class).Inc()
}

// RecordPartialTranscript records a partial transcript received.
func (m *Metrics) RecordPartialTranscript() {
	m.TranscriptsPartial.Inc()
}

// RecordFinalTranscript records a final transcript committed.
func (m *Metrics) RecordFinalTranscript() {
	m.TranscriptsFinal.Inc()
}

// RecordSummarize records one summarization call.
func (m *Metrics) RecordSummarize(source string, inputBytes int, latencySeconds float64) {
	m.SummarizeTotal.WithLabelValues(source).Inc()
	m.SummarizeInputSize.Observe(float64(inputBytes))
	m.SummarizeLatency.Observe(latencySeconds)
}

// RecordPlaybackRequest records a request issued to the playback engine.
func (m *Metrics) RecordPlaybackRequest() {
	m.PlaybackRequests.Inc()
}

// RecordPlaybackCancel records a cancellation ("superseded" or "stopped").
func (m *Metrics) RecordPlaybackCancel(reason string) {
	m.PlaybackCancellations.WithLabelValues(reason).Inc()
}

// RecordPlaybackError records a playback engine error.
func (m *Metrics) RecordPlaybackError(kind string) {
	m.PlaybackErrors.WithLabelValues(kind).Inc()
}

// RecordSpeaking sets the speaking gauge.
func (m *Metrics) RecordSpeaking(speaking bool) {
	if speaking {
		m.PlaybackSpeaking.Set(1)
	} else {
		m.PlaybackSpeaking.Set(0)
	}
}

// RecordNotifyPublish records a notification publish attempt.
func (m *Metrics) RecordNotifyPublish(topic, eventType string, err error, latencySeconds float64) {
	m.NotifyPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.NotifyPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.NotifyPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordWebsocketClients sets the connected websocket clients gauge.
func (m *Metrics) RecordWebsocketClients(n int) {
	m.WebsocketClients.Set(float64(n))
}

// RecordRPC records a finished gRPC call.
func (m *Metrics) RecordRPC(method, code string, durationSeconds float64) {
	m.RPCTotal.WithLabelValues(method, code).Inc()
	m.RPCDuration.WithLabelValues(method).Observe(durationSeconds)
}
