package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	summariesIngested *prometheus.CounterVec
	errorsTotal       *prometheus.CounterVec
	trainingRuns      *prometheus.CounterVec
	trainingDuration  prometheus.Histogram
	cvMetrics         *prometheus.GaugeVec
	lastPrediction    *prometheus.GaugeVec
	latency           *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		summariesIngested: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulsecast_summaries_ingested_total",
				Help: "Total number of daily summaries ingested per source",
			},
			[]string{"source"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulsecast_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		trainingRuns: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulsecast_training_runs_total",
				Help: "Completed training runs by outcome",
			},
			[]string{"outcome"},
		),
		trainingDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pulsecast_training_duration_seconds",
				Help:    "Duration of training runs in seconds",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
		),
		cvMetrics: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pulsecast_cv_metric",
				Help: "Walk-forward validation metrics of the latest training run",
			},
			[]string{"model", "metric"},
		),
		lastPrediction: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pulsecast_last_prediction",
				Help: "Last predicted next-day HRV z-score per model",
			},
			[]string{"model"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pulsecast_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordSummaryIngested records one ingested daily summary.
func (r *Recorder) RecordSummaryIngested(source string) {
	r.summariesIngested.WithLabelValues(source).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordTrainingRun records a completed training run.
func (r *Recorder) RecordTrainingRun(outcome string, seconds float64) {
	r.trainingRuns.WithLabelValues(outcome).Inc()
	r.trainingDuration.Observe(seconds)
}

// RecordCVMetric records one validation metric of the latest run.
func (r *Recorder) RecordCVMetric(model, metric string, value float64) {
	r.cvMetrics.WithLabelValues(model, metric).Set(value)
}

// RecordPrediction records the last prediction value.
func (r *Recorder) RecordPrediction(model string, value float64) {
	r.lastPrediction.WithLabelValues(model).Set(value)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
