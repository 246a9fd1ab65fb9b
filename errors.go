package batcher

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure conditions.
var (
	// ErrEstimationUnavailable indicates the chain exposes no weight metadata.
	// Callers fall back to MaxCallWeight.
	ErrEstimationUnavailable = errors.New("batcher: weight estimation unavailable")

	// ErrEmptyBatch indicates a submission or batch with no calls.
	ErrEmptyBatch = errors.New("batcher: no calls to submit")

	// ErrTooManyCalls indicates a batch exceeds the configured call limit.
	ErrTooManyCalls = errors.New("batcher: too many calls in batch")

	// ErrBatchSizeExceeded indicates the chain rejected the batch size (utility.TooManyCalls).
	ErrBatchSizeExceeded = errors.New("batcher: batch size exceeded")

	// ErrInsufficientFunds indicates the account cannot cover the storage deposit.
	ErrInsufficientFunds = errors.New("batcher: not enough funds in the selected account")

	// ErrArgumentCount indicates the number of arguments doesn't match the ABI.
	ErrArgumentCount = errors.New("batcher: argument count mismatch")

	// ErrConstructorNotFound indicates the constructor index is out of range.
	ErrConstructorNotFound = errors.New("batcher: constructor not found")

	// ErrInstantiatedEventMissing indicates the including block has no contracts.Instantiated event.
	ErrInstantiatedEventMissing = errors.New("batcher: no Instantiated event in block")

	// ErrInvalidCode indicates the contract code is not a WASM or PolkaVM blob.
	ErrInvalidCode = errors.New("batcher: invalid contract code")

	// ErrNilCall indicates a nil descriptor was added to a batch.
	ErrNilCall = errors.New("batcher: nil call")

	// ErrSubscriptionClosed indicates the status stream ended before a terminal status.
	ErrSubscriptionClosed = errors.New("batcher: subscription closed before terminal status")
)

// MethodNotFoundError indicates the contract ABI doesn't have the requested message.
type MethodNotFoundError struct {
	Contract AccountID
	Method   string
}

func (e *MethodNotFoundError) Error() string {
	return fmt.Sprintf("batcher: method %q not found in contract %s", e.Method, e.Contract)
}

// NonPayableError indicates a value was attached to a non-payable message or constructor.
type NonPayableError struct {
	Method string
}

func (e *NonPayableError) Error() string {
	return fmt.Sprintf("batcher: method %q is not payable", e.Method)
}

// EncodingError indicates an argument could not be encoded against its ABI type.
type EncodingError struct {
	Method string
	Index  int
	Value  any
	Err    error
}

func (e *EncodingError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("batcher: arguments for method %q: %v", e.Method, e.Err)
	}
	if e.Value == nil {
		return fmt.Sprintf("batcher: argument %d for method %q: %v", e.Index, e.Method, e.Err)
	}
	return fmt.Sprintf("batcher: argument %d (%T) for method %q: %v", e.Index, e.Value, e.Method, e.Err)
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}

// DryRunRejectedError indicates the simulated dispatch failed, so nothing was submitted.
type DryRunRejectedError struct {
	Method string
	Err    *ClassifiedError
}

func (e *DryRunRejectedError) Error() string {
	return fmt.Sprintf("batcher: dry run of %q rejected: %v", e.Method, e.Err)
}

func (e *DryRunRejectedError) Unwrap() error {
	return e.Err
}

// BatchSizeExceededError is returned when a utility.TooManyCalls event is observed.
type BatchSizeExceededError struct {
	Event Event
}

func (e *BatchSizeExceededError) Error() string {
	return fmt.Sprintf("batcher: batch size exceeded: %s", e.Event.Name())
}

func (e *BatchSizeExceededError) Unwrap() error {
	return ErrBatchSizeExceeded
}

// BatchInterruptedError reports the first failing call of a batch.
// Calls before Index were applied and are not rolled back.
type BatchInterruptedError struct {
	Index uint32
	Err   *ClassifiedError
}

func (e *BatchInterruptedError) Error() string {
	return fmt.Sprintf("batcher: batch interrupted at index %d: %v", e.Index, e.Err)
}

func (e *BatchInterruptedError) Unwrap() error {
	return e.Err
}

// ExtrinsicFailedError is returned when system.ExtrinsicFailed is emitted for the submission.
type ExtrinsicFailedError struct {
	Err *ClassifiedError
}

func (e *ExtrinsicFailedError) Error() string {
	return fmt.Sprintf("batcher: extrinsic failed: %v", e.Err)
}

func (e *ExtrinsicFailedError) Unwrap() error {
	return e.Err
}

// SubmissionRejectedError indicates the node dropped or invalidated the transaction.
type SubmissionRejectedError struct {
	Status TxStatus
}

func (e *SubmissionRejectedError) Error() string {
	return fmt.Sprintf("batcher: submission rejected: %s", e.Status.Kind)
}

// PlanError wraps errors that occur while compiling a batch.
type PlanError struct {
	CallIndex int
	Method    string
	Err       error
}

func (e *PlanError) Error() string {
	if e.Method != "" {
		return fmt.Sprintf("batcher: call %d (%s): %v", e.CallIndex, e.Method, e.Err)
	}
	return fmt.Sprintf("batcher: call %d: %v", e.CallIndex, e.Err)
}

func (e *PlanError) Unwrap() error {
	return e.Err
}

// IsBatchInterrupted checks whether an error is a BatchInterruptedError and returns it.
func IsBatchInterrupted(err error) (*BatchInterruptedError, bool) {
	var b *BatchInterruptedError
	if errors.As(err, &b) {
		return b, true
	}
	return nil, false
}

// IsRetryable reports whether rebuilding the call with a fresh snapshot and
// resubmitting could succeed. Nothing in this package retries on its own.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrInsufficientFunds) {
		return false
	}
	var rejected *SubmissionRejectedError
	if errors.As(err, &rejected) {
		return true
	}
	var failed *ExtrinsicFailedError
	return errors.As(err, &failed)
}
