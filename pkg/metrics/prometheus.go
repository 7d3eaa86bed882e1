package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	sessionsOpened  prometheus.Counter
	sessionsClosed  *prometheus.CounterVec
	sessionsActive  prometheus.Gauge
	analyses        *prometheus.CounterVec
	validationFails *prometheus.CounterVec
	predictions     *prometheus.CounterVec
	confidence      prometheus.Histogram
	progressAtDone  prometheus.Histogram
	bridgeErrors    *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	latency         *prometheus.HistogramVec
}

// New creates a recorder registered on the default Prometheus registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a recorder registered on reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		sessionsOpened: f.NewCounter(prometheus.CounterOpts{
			Name: "predictor_sessions_opened_total",
			Help: "Total number of screen sessions opened",
		}),
		sessionsClosed: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "predictor_sessions_closed_total",
				Help: "Total number of screen sessions closed",
			},
			[]string{"reason"},
		),
		sessionsActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "predictor_sessions_active",
			Help: "Sessions currently held in memory",
		}),
		analyses: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "predictor_analyses_started_total",
				Help: "Total number of analysis runs started",
			},
			[]string{"timeframe"},
		),
		validationFails: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "predictor_validation_failures_total",
				Help: "Run attempts rejected by input validation",
			},
			[]string{"reason"},
		),
		predictions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "predictor_predictions_total",
				Help: "Predictions delivered, by signal",
			},
			[]string{"signal"},
		),
		confidence: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "predictor_prediction_confidence",
			Help:    "Confidence of delivered predictions",
			Buckets: prometheus.LinearBuckets(75, 4, 7),
		}),
		progressAtDone: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "predictor_progress_at_result",
			Help:    "Progress value shown when the result arrived",
			Buckets: []float64{50, 80, 90, 95, 99, 100},
		}),
		bridgeErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "predictor_bridge_errors_total",
				Help: "Host bridge calls that failed and were ignored",
			},
			[]string{"call"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "predictor_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "predictor_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordSessionOpened() {
	r.sessionsOpened.Inc()
	r.sessionsActive.Inc()
}

func (r *Recorder) RecordSessionClosed(reason string) {
	r.sessionsClosed.WithLabelValues(reason).Inc()
	r.sessionsActive.Dec()
}

func (r *Recorder) RecordAnalysisStarted(timeframe string) {
	r.analyses.WithLabelValues(timeframe).Inc()
}

func (r *Recorder) RecordValidationFailure(reason string) {
	r.validationFails.WithLabelValues(reason).Inc()
}

// RecordPrediction records a delivered prediction and the progress visible at that moment.
func (r *Recorder) RecordPrediction(signal string, confidence int, progress int) {
	r.predictions.WithLabelValues(signal).Inc()
	r.confidence.Observe(float64(confidence))
	r.progressAtDone.Observe(float64(progress))
}

func (r *Recorder) RecordBridgeError(call string) {
	r.bridgeErrors.WithLabelValues(call).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Noop discards all measurements.
type Noop struct{}

func (Noop) RecordSessionOpened()              {}
func (Noop) RecordSessionClosed(string)        {}
func (Noop) RecordAnalysisStarted(string)      {}
func (Noop) RecordValidationFailure(string)    {}
func (Noop) RecordPrediction(string, int, int) {}
func (Noop) RecordBridgeError(string)          {}
func (Noop) RecordError(string)                {}
func (Noop) RecordLatency(string, float64)     {}
