package executor

import (
	"context"
	"errors"
	"fmt"
)

// ErrAborted is returned when a run is cancelled mid-flight. The transaction
// keeps its last persisted status and stays eligible for resumption.
var ErrAborted = errors.New("execution aborted")

// DataError marks a programming or data fault upstream (missing record,
// empty signed payload). Never retried.
type DataError struct {
	TxID   uint64
	Reason string
}

func (e *DataError) Error() string {
	return fmt.Sprintf("transaction %d: %s", e.TxID, e.Reason)
}

// AmbiguousSubmissionError means Submit exhausted its attempts without
// returning a hash. The chain may still have accepted the transaction, so the
// stored status is deliberately left untouched and the run is surfaced to an
// operator instead of being resolved automatically.
type AmbiguousSubmissionError struct {
	TxID     uint64
	Attempts int
	Err      error
}

func (e *AmbiguousSubmissionError) Error() string {
	return fmt.Sprintf("transaction %d: submission outcome unknown after %d attempts: %v", e.TxID, e.Attempts, e.Err)
}

func (e *AmbiguousSubmissionError) Unwrap() error {
	return e.Err
}

// StallError means the confirmation wait hit its ceiling. The run is
// escalated; the checkpoint allows re-entering the wait without resubmitting.
type StallError struct {
	TxID uint64
	Err  error
}

func (e *StallError) Error() string {
	return fmt.Sprintf("transaction %d: confirmation wait stalled: %v", e.TxID, e.Err)
}

func (e *StallError) Unwrap() error {
	return e.Err
}

// Kind classifies a run error for the scheduling layer.
type Kind int

const (
	// KindTransient covers RPC failures and stalls; the run may be retried.
	KindTransient Kind = iota

	// KindFatal covers data errors; retrying cannot help.
	KindFatal

	// KindAmbiguous covers unknown submission outcomes; retryable, but must
	// stay observable rather than be marked failed.
	KindAmbiguous

	// KindAborted covers operator-initiated cancellation.
	KindAborted
)

// Classify maps a run error to its scheduling kind.
func Classify(err error) Kind {
	var dataErr *DataError
	if errors.As(err, &dataErr) {
		return KindFatal
	}
	var ambErr *AmbiguousSubmissionError
	if errors.As(err, &ambErr) {
		return KindAmbiguous
	}
	if errors.Is(err, ErrAborted) || errors.Is(err, context.Canceled) {
		return KindAborted
	}
	return KindTransient
}
