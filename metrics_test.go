package batcher

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFailureReason(t *testing.T) {
	funds := Classify(*NewModuleError(8, 24), testErrorTable())
	trapped := Classify(*NewModuleError(8, 11), testErrorTable())

	tests := []struct {
		name string
		err  error
		want FailureReason
	}{
		{"dry run", &DryRunRejectedError{Method: "flip", Err: trapped}, FailureReasonDryRunRejected},
		{"dry run out of funds", &DryRunRejectedError{Method: "flip", Err: funds}, FailureReasonInsufficientFunds},
		{"batch size", &BatchSizeExceededError{}, FailureReasonBatchSizeExceeded},
		{"interrupted", fmt.Errorf("x: %w", &BatchInterruptedError{Index: 1, Err: trapped}), FailureReasonBatchInterrupted},
		{"extrinsic failed", &ExtrinsicFailedError{Err: trapped}, FailureReasonExtrinsicFailed},
		{"rejected", &SubmissionRejectedError{}, FailureReasonRejected},
		{"canceled", context.Canceled, FailureReasonContextCanceled},
		{"deadline", fmt.Errorf("x: %w", context.DeadlineExceeded), FailureReasonContextCanceled},
		{"unknown", errors.New("boom"), FailureReasonUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, failureReason(tt.err))
		})
	}
}

func TestNopMetrics(t *testing.T) {
	m := NopMetrics()
	for _, reason := range AllFailureReasons() {
		assert.NotNil(t, m.Failures[reason], reason)
	}
	assert.NotPanics(t, func() {
		m.Submissions.Add(1)
		m.BatchSize.Observe(3)
		m.recordFailure(errors.New("boom"))
	})
}

func TestPrometheusMetrics(t *testing.T) {
	m := PrometheusMetrics("test", "chain", "dev")

	assert.Len(t, m.Failures, len(AllFailureReasons()))
	assert.NotPanics(t, func() {
		m.Submissions.Add(1)
		m.Included.Add(1)
		m.DryRunRejections.Add(1)
		m.BatchSize.Observe(2)
		m.GasLimit.Observe(1010)
		m.recordFailure(&SubmissionRejectedError{})
	})
}
