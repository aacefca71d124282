package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/filing-classifier/internal/core/domain"
)

// FilingMetrics records pipeline measurements. It is safe for concurrent use.
type FilingMetrics struct {
	service string

	filingsTotal           *prometheus.CounterVec
	filingDuration         *prometheus.HistogramVec
	classificationsTotal   *prometheus.CounterVec
	capabilityCallsTotal   *prometheus.CounterVec
	capabilityDuration     *prometheus.HistogramVec
	requirementMissesTotal *prometheus.CounterVec
	breakerState           *prometheus.GaugeVec
}

func newFilingMetrics(registry prometheus.Registerer, service string) *FilingMetrics {
	filingsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "filing",
			Subsystem: "pipeline",
			Name:      "filings_total",
			Help:      "Total processed filings by system status.",
		},
		[]string{"service", "status"},
	)
	filingDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "filing",
			Subsystem: "pipeline",
			Name:      "filing_duration_seconds",
			Help:      "End-to-end filing processing duration in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120, 300},
		},
		[]string{"service", "status"},
	)
	classificationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "filing",
			Subsystem: "classification",
			Name:      "results_total",
			Help:      "Total document classifications by match status and note.",
		},
		[]string{"service", "match_status", "note", "cached"},
	)
	capabilityCallsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "filing",
			Subsystem: "capability",
			Name:      "calls_total",
			Help:      "Total vision capability calls by operation and outcome.",
		},
		[]string{"service", "operation", "outcome"},
	)
	capabilityDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "filing",
			Subsystem: "capability",
			Name:      "call_duration_seconds",
			Help:      "Vision capability call duration in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"service", "operation"},
	)
	requirementMissesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "filing",
			Subsystem: "requirements",
			Name:      "missing_total",
			Help:      "Total required document types found missing.",
		},
		[]string{"service", "document_type"},
	)
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "filing",
			Subsystem: "capability",
			Name:      "breaker_state",
			Help:      "Circuit breaker state per operation: 0 closed, 1 half-open, 2 open.",
		},
		[]string{"service", "operation"},
	)

	registry.MustRegister(
		filingsTotal,
		filingDuration,
		classificationsTotal,
		capabilityCallsTotal,
		capabilityDuration,
		requirementMissesTotal,
		breakerState,
	)

	return &FilingMetrics{
		service:                service,
		filingsTotal:           filingsTotal,
		filingDuration:         filingDuration,
		classificationsTotal:   classificationsTotal,
		capabilityCallsTotal:   capabilityCallsTotal,
		capabilityDuration:     capabilityDuration,
		requirementMissesTotal: requirementMissesTotal,
		breakerState:           breakerState,
	}
}

func (m *FilingMetrics) ObserveClassification(status domain.MatchStatus, note string, cached bool) {
	if status == "" {
		status = domain.MatchUnknown
	}
	if note == "" {
		note = "none"
	}
	cachedLabel := "false"
	if cached {
		cachedLabel = "true"
	}
	m.classificationsTotal.WithLabelValues(m.service, string(status), note, cachedLabel).Inc()
}

func (m *FilingMetrics) ObserveCapabilityCall(operation string, duration time.Duration, err error) {
	if operation == "" {
		operation = "unknown"
	}
	m.capabilityCallsTotal.WithLabelValues(m.service, operation, capabilityOutcome(err)).Inc()
	m.capabilityDuration.WithLabelValues(m.service, operation).Observe(duration.Seconds())
}

func (m *FilingMetrics) ObserveFiling(outcome *domain.ApplicationOutcome, duration time.Duration, err error) {
	status := "error"
	if err == nil && outcome != nil {
		status = string(outcome.SystemStatus)
		for _, req := range outcome.Requirements {
			if !req.Present && !req.IsOptional {
				m.requirementMissesTotal.WithLabelValues(m.service, req.Type).Inc()
			}
		}
	}
	m.filingsTotal.WithLabelValues(m.service, status).Inc()
	m.filingDuration.WithLabelValues(m.service, status).Observe(duration.Seconds())
}

// ObserveBreakerState matches resilience.StateListener.
func (m *FilingMetrics) ObserveBreakerState(operation, _, to string) {
	value := 0.0
	switch to {
	case "half-open":
		value = 1
	case "open":
		value = 2
	}
	m.breakerState.WithLabelValues(m.service, operation).Set(value)
}

func capabilityOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case domain.IsKind(err, domain.ErrCapabilityTimeout):
		return "timeout"
	case domain.IsKind(err, domain.ErrCapabilityConnection):
		return "connection_error"
	case domain.IsKind(err, domain.ErrMalformedResponse):
		return "malformed"
	default:
		return "error"
	}
}
