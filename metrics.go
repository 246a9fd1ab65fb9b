package batcher

import (
	"context"
	"errors"

	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

// MetricsSubsystem is the subsystem shared by all metrics exposed by this package.
const MetricsSubsystem = "batcher"

// FailureReason is a typed label for submission failures.
type FailureReason string

const (
	FailureReasonDryRunRejected    FailureReason = "dry_run_rejected"
	FailureReasonBatchSizeExceeded FailureReason = "batch_size_exceeded"
	FailureReasonBatchInterrupted  FailureReason = "batch_interrupted"
	FailureReasonExtrinsicFailed   FailureReason = "extrinsic_failed"
	FailureReasonInsufficientFunds FailureReason = "insufficient_funds"
	FailureReasonRejected          FailureReason = "rejected"
	FailureReasonContextCanceled   FailureReason = "context_canceled"
	FailureReasonUnknown           FailureReason = "unknown"
)

// AllFailureReasons returns all possible failure reasons.
func AllFailureReasons() []FailureReason {
	return []FailureReason{
		FailureReasonDryRunRejected,
		FailureReasonBatchSizeExceeded,
		FailureReasonBatchInterrupted,
		FailureReasonExtrinsicFailed,
		FailureReasonInsufficientFunds,
		FailureReasonRejected,
		FailureReasonContextCanceled,
		FailureReasonUnknown,
	}
}

// Metrics contains all metrics exposed by this package.
type Metrics struct {
	Submissions      metrics.Counter // Extrinsics handed to the chain client
	Included         metrics.Counter // Submissions that reached InBlock or Finalized
	Failures         map[FailureReason]metrics.Counter
	DryRunRejections metrics.Counter
	BatchSize        metrics.Histogram // Calls per submitted extrinsic
	GasLimit         metrics.Histogram // Final ref time per call, in mega units
}

// PrometheusMetrics returns Metrics built using Prometheus client library.
func PrometheusMetrics(namespace string, labelsAndValues ...string) *Metrics {
	labels := []string{}
	for i := 0; i < len(labelsAndValues); i += 2 {
		labels = append(labels, labelsAndValues[i])
	}

	m := &Metrics{
		Failures: make(map[FailureReason]metrics.Counter),
	}

	m.Submissions = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: MetricsSubsystem,
		Name:      "submissions_total",
		Help:      "Number of extrinsics submitted.",
	}, labels).With(labelsAndValues...)

	m.Included = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: MetricsSubsystem,
		Name:      "included_total",
		Help:      "Number of submissions included in a block.",
	}, labels).With(labelsAndValues...)

	failures := prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: MetricsSubsystem,
		Name:      "failures_total",
		Help:      "Number of failed builds and submissions by reason.",
	}, append(labels, "reason"))
	for _, reason := range AllFailureReasons() {
		lvs := append(append([]string{}, labelsAndValues...), "reason", string(reason))
		m.Failures[reason] = failures.With(lvs...)
	}

	m.DryRunRejections = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: MetricsSubsystem,
		Name:      "dry_run_rejections_total",
		Help:      "Number of dry runs that predicted a dispatch error.",
	}, labels).With(labelsAndValues...)

	m.BatchSize = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: MetricsSubsystem,
		Name:      "batch_size",
		Help:      "Number of calls per submitted extrinsic.",
		Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 256},
	}, labels).With(labelsAndValues...)

	m.GasLimit = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: MetricsSubsystem,
		Name:      "gas_limit_mega_ref_time",
		Help:      "Final ref time limit per call in millions.",
		Buckets:   stdprometheus.ExponentialBuckets(1, 4, 10),
	}, labels).With(labelsAndValues...)

	return m
}

// NopMetrics returns no-op Metrics.
func NopMetrics() *Metrics {
	m := &Metrics{
		Submissions:      discard.NewCounter(),
		Included:         discard.NewCounter(),
		Failures:         make(map[FailureReason]metrics.Counter),
		DryRunRejections: discard.NewCounter(),
		BatchSize:        discard.NewHistogram(),
		GasLimit:         discard.NewHistogram(),
	}
	for _, reason := range AllFailureReasons() {
		m.Failures[reason] = discard.NewCounter()
	}
	return m
}

func (m *Metrics) recordFailure(err error) {
	if c, ok := m.Failures[failureReason(err)]; ok {
		c.Add(1)
	}
}

// failureReason maps an error from this package onto a metrics label.
func failureReason(err error) FailureReason {
	var (
		dryRun      *DryRunRejectedError
		size        *BatchSizeExceededError
		interrupted *BatchInterruptedError
		failed      *ExtrinsicFailedError
		rejected    *SubmissionRejectedError
	)
	switch {
	case errors.Is(err, ErrInsufficientFunds):
		return FailureReasonInsufficientFunds
	case errors.As(err, &dryRun):
		return FailureReasonDryRunRejected
	case errors.As(err, &size):
		return FailureReasonBatchSizeExceeded
	case errors.As(err, &interrupted):
		return FailureReasonBatchInterrupted
	case errors.As(err, &failed):
		return FailureReasonExtrinsicFailed
	case errors.As(err, &rejected):
		return FailureReasonRejected
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return FailureReasonContextCanceled
	default:
		return FailureReasonUnknown
	}
}
