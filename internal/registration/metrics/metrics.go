package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the registration module.
type Metrics struct {
	// Sessions created, by registration type
	SessionsCreated *prometheus.CounterVec

	// Step submissions by type, step and outcome
	StepOutcome *prometheus.CounterVec

	// Completed registrations by type
	Completed *prometheus.CounterVec

	// Document conflicts caught at either gate ("step1" or "step2")
	DocumentConflicts *prometheus.CounterVec

	// Finalization latency including uniqueness gate and record creation
	FinalizeLatency prometheus.Histogram
}

// New creates a new Metrics instance with all registration metrics registered.
func New() *Metrics {
	return &Metrics{
		SessionsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "prato_registration_sessions_created_total",
			Help: "Total registration sessions created by type",
		}, []string{"type"}),

		StepOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "prato_registration_step_outcomes_total",
			Help: "Step submission outcomes by type, step and result code",
		}, []string{"type", "step", "outcome"}),

		Completed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "prato_registrations_completed_total",
			Help: "Total finalized registrations by type",
		}, []string{"type"}),

		DocumentConflicts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "prato_registration_document_conflicts_total",
			Help: "Uniqueness conflicts by gate (step1 optimistic, step2 authoritative)",
		}, []string{"gate"}),

		FinalizeLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "prato_registration_finalize_duration_seconds",
			Help:    "Duration of step-2 finalization including the uniqueness gate",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

// IncrementSessionsCreated records a new session.
func (m *Metrics) IncrementSessionsCreated(regType string) {
	if m != nil {
		m.SessionsCreated.WithLabelValues(regType).Inc()
	}
}

// IncrementStepOutcome records a step submission result.
func (m *Metrics) IncrementStepOutcome(regType, step, outcome string) {
	if m != nil {
		m.StepOutcome.WithLabelValues(regType, step, outcome).Inc()
	}
}

// IncrementCompleted records a finalized registration.
func (m *Metrics) IncrementCompleted(regType string) {
	if m != nil {
		m.Completed.WithLabelValues(regType).Inc()
	}
}

// IncrementDocumentConflict records a uniqueness conflict at the given gate.
func (m *Metrics) IncrementDocumentConflict(gate string) {
	if m != nil {
		m.DocumentConflicts.WithLabelValues(gate).Inc()
	}
}

// ObserveFinalizeLatency records the total finalization duration.
func (m *Metrics) ObserveFinalizeLatency(d time.Duration) {
	if m != nil {
		m.FinalizeLatency.Observe(d.Seconds())
	}
}
