package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voicetutor_active_sessions",
		Help: "Number of connected voice sessions",
	})

	totalSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voicetutor_sessions_total",
		Help: "Total number of voice sessions opened",
	})

	sessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voicetutor_session_duration_seconds",
		Help:    "Duration of voice sessions in seconds",
		Buckets: []float64{5, 30, 60, 300, 900, 1800, 3600},
	})

	// Capture metrics
	captureSessions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicetutor_capture_sessions_total",
		Help: "Capture sessions by outcome (finalized, errored, empty)",
	}, []string{"outcome"})

	captureErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicetutor_capture_errors_total",
		Help: "Capture errors by kind",
	}, []string{"kind"})

	// Speech output metrics
	ttsRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicetutor_tts_requests_total",
		Help: "Speech render attempts by tier and status",
	}, []string{"tier", "status"})

	ttsLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "voicetutor_tts_latency_seconds",
		Help:    "Speech render latency by tier",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
	}, []string{"tier"})

	playbackActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voicetutor_playback_active",
		Help: "Number of audio resources currently playing",
	})

	// Tutor API metrics
	backendRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicetutor_backend_requests_total",
		Help: "Tutor API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	backendLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "voicetutor_backend_latency_seconds",
		Help:    "Tutor API latency by endpoint",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
	}, []string{"endpoint"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "voicetutor_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicetutor_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})

	audioBytesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicetutor_audio_bytes_total",
		Help: "Total audio bytes processed",
	}, []string{"direction"}) // direction: "in" or "out"
)

// SessionMetrics tracks metrics for a single voice session
type SessionMetrics struct {
	sessionID string
	startTime time.Time
}

// NewSessionMetrics creates a new metrics tracker for a session and counts it as active
func NewSessionMetrics(sessionID string) *SessionMetrics {
	activeSessions.Inc()
	totalSessions.Inc()
	return &SessionMetrics{
		sessionID: sessionID,
		startTime: time.Now(),
	}
}

// End records the end of the session
func (m *SessionMetrics) End() {
	activeSessions.Dec()
	sessionDuration.Observe(time.Since(m.startTime).Seconds())
}

// RecordAudioBytes records audio bytes processed
func (m *SessionMetrics) RecordAudioBytes(direction string, bytes int) {
	audioBytesProcessed.WithLabelValues(direction).Add(float64(bytes))
}

// RecordCaptureOutcome counts a finished capture session
func RecordCaptureOutcome(outcome string) {
	captureSessions.WithLabelValues(outcome).Inc()
}

// RecordCaptureError counts a capture error by kind
func RecordCaptureError(kind string) {
	captureErrors.WithLabelValues(kind).Inc()
}

// RecordTTSAttempt records one render attempt on a speech tier
func RecordTTSAttempt(tier string, success bool, elapsed time.Duration) {
	ttsLatency.WithLabelValues(tier).Observe(elapsed.Seconds())
	ttsRequests.WithLabelValues(tier, status(success)).Inc()
}

// PlaybackStarted and PlaybackFinished track the single active playback slot
func PlaybackStarted() {
	playbackActive.Inc()
}

func PlaybackFinished() {
	playbackActive.Dec()
}

// RecordBackendRequest records a tutor API call
func RecordBackendRequest(endpoint string, success bool, elapsed time.Duration) {
	backendLatency.WithLabelValues(endpoint).Observe(elapsed.Seconds())
	backendRequests.WithLabelValues(endpoint, status(success)).Inc()
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
