package billing

import (
	"errors"
	"fmt"
)

// Sentinel errors classifying every failure the engine can surface. The
// controller layer maps each class to an HTTP status; nothing in the engine
// reaches callers as an untyped failure.
var (
	// ErrValidation marks malformed requests; no side effect was attempted.
	ErrValidation = errors.New("validation error")

	// ErrConflict marks an illegal transition raced by another writer, e.g.
	// canceling an already canceled subscription. Callers treat it as a
	// benign idempotent outcome where the end state matches intent.
	ErrConflict = errors.New("conflicting subscription state")

	// ErrGatewayUnavailable marks an outbound gateway call that failed or
	// timed out after retries. Local state is unaffected; the caller
	// surfaces "pending" and the webhook feed converges later.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")

	// ErrSignature marks an inbound webhook that failed the authenticity
	// check. It is rejected before any processing.
	ErrSignature = errors.New("invalid webhook signature")

	// ErrLedgerIntegrity marks a rejected ledger write: duplicate
	// idempotency key treated as hard error by a caller, or a refund
	// exceeding the refundable balance.
	ErrLedgerIntegrity = errors.New("ledger integrity violation")
)

// RetryableError wraps infrastructure failures during webhook processing so
// the HTTP handler can answer 5xx and lean on the gateway's redelivery
// instead of an internal retry queue.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable: %v", e.Err)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// Retryable wraps err so IsRetryable reports true. A nil err stays nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// IsRetryable reports whether err (or anything it wraps) is a transient
// infrastructure failure the gateway should redeliver for.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}
