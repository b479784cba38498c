package causality

import (
	"bytes"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// MetricsContentType is the exposition format written by Expose
const MetricsContentType = string(expfmt.FmtText)

var errMetricsDisabled = errors.New("metrics are not enabled")

// Metrics collects Prometheus metrics for token issuance. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	registry          *prometheus.Registry
	grantsTotal       *prometheus.CounterVec
	failuresTotal     *prometheus.CounterVec
	directoryDuration *prometheus.HistogramVec
}

// NewMetrics initializes a private registry with the issuance metrics
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	grants := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "causality_tokens_granted_total",
		Help: "Causality tokens issued by requested and granted role.",
	}, []string{"requested", "granted"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "causality_token_failures_total",
		Help: "Causality token requests that produced no token, by reason.",
	}, []string{"reason"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "causality_directory_request_duration_seconds",
		Help:    "Directory service call latency by operation and outcome.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "outcome"})
	registry.MustRegister(grants, failures, duration)
	return &Metrics{
		registry:          registry,
		grantsTotal:       grants,
		failuresTotal:     failures,
		directoryDuration: duration,
	}
}

// Expose gathers the registry in the Prometheus text format
func (m *Metrics) Expose() ([]byte, error) {
	if m == nil {
		return nil, errMetricsDisabled
	}

	families, err := m.registry.Gather()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func (m *Metrics) observeGrant(decision ClaimDecision) {
	if m == nil {
		return
	}
	m.grantsTotal.WithLabelValues(decision.Requested.WireName(), decision.Role.WireName()).Inc()
}

func (m *Metrics) observeFailure(reason string) {
	if m == nil {
		return
	}
	m.failuresTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) observeDirectory(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	switch {
	case err == nil:
	case IsSaleNotFound(err):
		outcome = "not_found"
	default:
		outcome = "error"
	}
	m.directoryDuration.WithLabelValues(operation, outcome).Observe(time.Since(start).Seconds())
}

// failureReason buckets a resolution error for the failures counter
func failureReason(err error) string {
	switch {
	case IsUnauthorized(err):
		return "unauthorized"
	case IsSaleNotFound(err):
		return "sale_not_found"
	case IsInvalidRequest(err):
		return "invalid_request"
	case IsBackendUnavailable(err):
		return "backend_unavailable"
	default:
		return "internal"
	}
}
