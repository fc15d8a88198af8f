// Package metrics provides the centralized Prometheus registry for the pipeline.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Global registry instance
var (
	registry *prometheus.Registry
	once     sync.Once
)

// Counter metrics
var (
	RequestsAdmittedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crypto_backtest",
		Name:      "requests_admitted_total",
		Help:      "Total number of admitted backtest requests by outcome",
	}, []string{"outcome"})
	DispatchesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "crypto_backtest",
		Name:      "dispatches_total",
		Help:      "Total number of backtest requests dispatched to the queue",
	})
	MessagesConsumedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "crypto_backtest",
		Name:      "messages_consumed_total",
		Help:      "Total number of queue messages consumed by workers",
	})
	EvaluationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crypto_backtest",
		Name:      "evaluations_total",
		Help:      "Total number of evaluation attempts by status",
	}, []string{"status"})
	CandidateFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crypto_backtest",
		Name:      "candidate_failures_total",
		Help:      "Total number of failed candidate simulations by strategy",
	}, []string{"strategy"})
	TrackingErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "crypto_backtest",
		Name:      "tracking_errors_total",
		Help:      "Total number of experiment tracking reporting failures",
	})
)

// Gauge metrics
var (
	WorkerState = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "crypto_backtest",
		Name:      "worker_state",
		Help:      "Current consumer loop state (0=idle 1=polling 2=processing 3=shutting_down 4=stopped)",
	})
	BestScore = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "crypto_backtest",
		Name:      "best_score",
		Help:      "Composite score of the winning strategy per symbol",
	}, []string{"symbol", "strategy"})
)

// Histogram metrics
var (
	EvaluationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "crypto_backtest",
		Name:      "evaluation_duration_seconds",
		Help:      "Duration of full backtest evaluations in seconds",
		Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
	})
	SimulationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "crypto_backtest",
		Name:      "simulation_duration_seconds",
		Help:      "Duration of single-strategy simulations in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"strategy"})
)

// InitRegistry initializes the global Prometheus registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		registry.MustRegister(RequestsAdmittedTotal)
		registry.MustRegister(DispatchesTotal)
		registry.MustRegister(MessagesConsumedTotal)
		registry.MustRegister(EvaluationsTotal)
		registry.MustRegister(CandidateFailuresTotal)
		registry.MustRegister(TrackingErrorsTotal)

		registry.MustRegister(WorkerState)
		registry.MustRegister(BestScore)

		registry.MustRegister(EvaluationDuration)
		registry.MustRegister(SimulationDuration)
	})
	return registry
}

// GetRegistry returns the global Prometheus registry.
func GetRegistry() *prometheus.Registry {
	if registry == nil {
		return InitRegistry()
	}
	return registry
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{})
}

// RecordAdmission records a request gate decision.
func RecordAdmission(created bool) {
	if created {
		RequestsAdmittedTotal.WithLabelValues("created").Inc()
	} else {
		RequestsAdmittedTotal.WithLabelValues("existing").Inc()
	}
}

// RecordDispatch records a queue dispatch event.
func RecordDispatch() {
	DispatchesTotal.Inc()
}

// RecordMessageConsumed records one consumed queue message.
func RecordMessageConsumed() {
	MessagesConsumedTotal.Inc()
}

// RecordEvaluation records an evaluation attempt and its duration.
func RecordEvaluation(status string, durationSeconds float64) {
	EvaluationsTotal.WithLabelValues(status).Inc()
	EvaluationDuration.Observe(durationSeconds)
}

// RecordCandidateFailure records a failed candidate simulation.
func RecordCandidateFailure(strategy string) {
	CandidateFailuresTotal.WithLabelValues(strategy).Inc()
}

// RecordTrackingError records a tracking reporting failure.
func RecordTrackingError() {
	TrackingErrorsTotal.Inc()
}
