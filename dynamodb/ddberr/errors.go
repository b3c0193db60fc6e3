// Package ddberr normalizes the DynamoDB SDK's failure modes into a
// closed set of error kinds so callers can branch on kind instead of
// string-matching exception names.
package ddberr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

// Kind discriminates the classified failure modes.
type Kind string

const (
	// KindValidation is a malformed caller input. Never retryable,
	// always a caller bug.
	KindValidation Kind = "validation"
	// KindConditionFailed means a conditional write's precondition did
	// not hold at apply time.
	KindConditionFailed Kind = "conditional_check_failed"
	// KindThrottled is throughput exhaustion. Retryable with backoff.
	KindThrottled Kind = "throttled"
	// KindGeneral is everything else, including unrecognized driver
	// errors. Classification fails closed: general is not retryable.
	KindGeneral Kind = "general"
)

// Error is the typed error every storage operation returns on failure.
type Error struct {
	kind      Kind
	retryable bool
	status    int
	msg       string
	cause     error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.cause }

// Kind returns the classified failure mode.
func (e *Error) Kind() Kind { return e.kind }

// Retryable reports whether retrying the same call can succeed.
func (e *Error) Retryable() bool { return e.retryable }

// Status returns the HTTP-equivalent status code for this error.
func (e *Error) Status() int { return e.status }

func newError(kind Kind, retryable bool, status int, msg string, cause error) *Error {
	return &Error{kind: kind, retryable: retryable, status: status, msg: msg, cause: cause}
}

// Validation returns a caller-input error. The storage layer raises it
// before touching the store.
func Validation(format string, args ...any) *Error {
	return newError(KindValidation, false, http.StatusBadRequest, fmt.Sprintf(format, args...), nil)
}

func conditionFailed(msg string, cause error) *Error {
	return newError(KindConditionFailed, false, http.StatusConflict, msg, cause)
}

func throttled(msg string, cause error) *Error {
	return newError(KindThrottled, true, http.StatusTooManyRequests, msg, cause)
}

func general(msg string, cause error) *Error {
	return newError(KindGeneral, false, http.StatusInternalServerError, msg, cause)
}

// Classify maps a DynamoDB driver error to exactly one *Error.
// An already-classified error passes through unchanged, so wrapping a
// call site twice is harmless. Unrecognized errors become KindGeneral
// and are not retryable.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var already *Error
	if errors.As(err, &already) {
		return err
	}

	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return conditionFailed(op+": condition failed", err)
	}

	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		return classifyTransactionCancel(op, tce, err)
	}

	var pte *types.ProvisionedThroughputExceededException
	if errors.As(err, &pte) {
		return throttled(op+": throughput exceeded", err)
	}

	var rle *types.RequestLimitExceeded
	if errors.As(err, &rle) {
		return throttled(op+": request limit exceeded", err)
	}

	var rnf *types.ResourceNotFoundException
	if errors.As(err, &rnf) {
		// Table or index missing: a deployment/configuration bug, not a
		// data condition.
		return general(op+": table or index not found", err)
	}

	var ae smithy.APIError
	if errors.As(err, &ae) {
		switch ae.ErrorCode() {
		case "ConditionalCheckFailedException":
			return conditionFailed(op+": condition failed", err)
		case "ProvisionedThroughputExceededException", "ThrottlingException", "ThrottlingError", "RequestLimitExceeded":
			return throttled(op+": throttled", err)
		case "ValidationException":
			return newError(KindValidation, false, http.StatusBadRequest, op+": invalid request", err)
		}
	}

	return general(op+" failed", err)
}

// A transaction is cancelled as a whole; the per-item cancellation
// reasons say why. Any failed condition dominates, then throttling.
func classifyTransactionCancel(op string, tce *types.TransactionCanceledException, err error) *Error {
	var sawThrottle bool
	for _, reason := range tce.CancellationReasons {
		if reason.Code == nil {
			continue
		}
		switch *reason.Code {
		case "ConditionalCheckFailed":
			return conditionFailed(op+": transaction condition failed", err)
		case "ThrottlingError", "ProvisionedThroughputExceeded":
			sawThrottle = true
		}
	}
	if sawThrottle {
		return throttled(op+": transaction throttled", err)
	}
	return general(op+": transaction cancelled", err)
}

// IsValidation reports whether err is a caller-input error.
func IsValidation(err error) bool { return isKind(err, KindValidation) }

// IsConditionFailed reports whether err is a failed write precondition.
func IsConditionFailed(err error) bool { return isKind(err, KindConditionFailed) }

// IsThrottled reports whether err is throughput exhaustion.
func IsThrottled(err error) bool { return isKind(err, KindThrottled) }

// IsRetryable reports whether retrying the call with backoff can succeed.
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.retryable
}

func isKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.kind == kind
}
