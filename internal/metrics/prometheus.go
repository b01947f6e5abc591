package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the transcription gateway
type Metrics struct {
	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec

	// Transcription metrics
	TranscriptionRequests prometheus.Counter
	TranscriptionFailures prometheus.Counter
	TranscriptionDuration prometheus.Histogram

	// Audio normalization metrics
	AudioNormalizedBytes prometheus.Counter
	AudioDuration        prometheus.Histogram

	// Refinement metrics
	RefineRequests prometheus.Counter
	RefineFailures prometheus.Counter

	// Event-protocol session metrics
	EventSessionsActive prometheus.Gauge
	EventsHandled       *prometheus.CounterVec
	EventProtocolErrors prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		// HTTP API metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "whisper_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "whisper_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "whisper_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),

		// Transcription metrics
		TranscriptionRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "whisper_transcription_requests_total",
			Help: "Total number of transcription calls submitted to the engine",
		}),
		TranscriptionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "whisper_transcription_failures_total",
			Help: "Total number of failed transcription calls",
		}),
		TranscriptionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "whisper_transcription_duration_seconds",
			Help:    "Duration of transcription calls",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),

		// Audio normalization metrics
		AudioNormalizedBytes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "whisper_audio_normalized_bytes_total",
			Help: "Total bytes of canonical audio produced by normalization",
		}),
		AudioDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "whisper_audio_duration_seconds",
			Help:    "Duration of normalized audio payloads",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s to ~8 minutes
		}),

		// Refinement metrics
		RefineRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "whisper_refine_requests_total",
			Help: "Total number of text refinement calls",
		}),
		RefineFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "whisper_refine_failures_total",
			Help: "Total number of failed text refinement calls",
		}),

		// Event-protocol session metrics
		EventSessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "whisper_event_sessions_active",
			Help: "Current number of active event-protocol connections",
		}),
		EventsHandled: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "whisper_events_handled_total",
			Help: "Total number of event-protocol events handled",
		}, []string{"type"}),
		EventProtocolErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "whisper_event_protocol_errors_total",
			Help: "Total number of event-protocol violations",
		}),
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}

// RecordTranscription records one engine call and its outcome
func (m *Metrics) RecordTranscription(durationSeconds float64, err error) {
	m.TranscriptionRequests.Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
	if err != nil {
		m.TranscriptionFailures.Inc()
	}
}

// RecordAudioNormalized records one normalized audio payload
func (m *Metrics) RecordAudioNormalized(sizeBytes int, durationSeconds float64) {
	m.AudioNormalizedBytes.Add(float64(sizeBytes))
	m.AudioDuration.Observe(durationSeconds)
}

// RecordRefine records one refinement call and its outcome
func (m *Metrics) RecordRefine(err error) {
	m.RefineRequests.Inc()
	if err != nil {
		m.RefineFailures.Inc()
	}
}

// RecordEvent records one handled event-protocol event
func (m *Metrics) RecordEvent(eventType string) {
	m.EventsHandled.WithLabelValues(eventType).Inc()
}

// RecordEventProtocolError increments the protocol violation counter
func (m *Metrics) RecordEventProtocolError() {
	m.EventProtocolErrors.Inc()
}

// SessionStarted increments the active session gauge
func (m *Metrics) SessionStarted() {
	m.EventSessionsActive.Inc()
}

// SessionEnded decrements the active session gauge
func (m *Metrics) SessionEnded() {
	m.EventSessionsActive.Dec()
}
