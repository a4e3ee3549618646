package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound             = errors.New("entity not found")
	ErrNoActiveSubscription = errors.New("no active subscription")
	ErrAlreadyExists        = errors.New("entity already exists")
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrValidation           = errors.New("validation failed")

	// Payment pipeline errors
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrDuplicateReference   = errors.New("payment reference already exists")
	ErrPlanNotFound         = errors.New("plan not found")
	ErrAlreadyAtOrAboveTier = errors.New("user already holds an active plan at or above this tier")
	ErrMalformedPayload     = errors.New("malformed gateway payload")
	ErrConflict             = errors.New("state conflict")
	ErrPartialActivation    = errors.New("payment recorded but subscription activation pending")
	ErrGatewayTimeout       = errors.New("payment gateway timeout")
	ErrPersistence          = errors.New("persistence failure")
	ErrRenewalFailed        = errors.New("subscription renewal failed")

	// Storage errors
	ErrInvalidExecContext = errors.New("invalid exec context")
	ErrOperationFailed    = errors.New("database operation failed")
	ErrReadDatabaseRow    = errors.New("read database row failed")
)

// ReferenceError attaches the operation and payment reference to an error so
// alerting can group by kind and reference. errors.Is sees the wrapped kind.
type ReferenceError struct {
	Op        string
	Reference string
	Err       error
}

func (e *ReferenceError) Error() string {
	if e.Reference == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %v", e.Op, e.Reference, e.Err)
}

func (e *ReferenceError) Unwrap() error { return e.Err }

// WrapRef is a shorthand for &ReferenceError{...}. A nil err stays nil.
func WrapRef(op, reference string, err error) error {
	if err == nil {
		return nil
	}
	return &ReferenceError{Op: op, Reference: reference, Err: err}
}

// IsTransient reports whether err is safe to retry as a whole.
func IsTransient(err error) bool {
	return errors.Is(err, ErrPersistence) || errors.Is(err, ErrGatewayTimeout)
}

// Kind returns a short, bounded label for err, suitable for metrics and logs.
func Kind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidArgument), errors.Is(err, ErrInvalidAmount):
		return "validation"
	case errors.Is(err, ErrPlanNotFound), errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyAtOrAboveTier):
		return "tier"
	case errors.Is(err, ErrMalformedPayload):
		return "malformed_payload"
	case errors.Is(err, ErrDuplicateReference):
		return "duplicate_reference"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrPartialActivation):
		return "partial_activation"
	case errors.Is(err, ErrGatewayTimeout):
		return "gateway_timeout"
	case errors.Is(err, ErrPersistence), errors.Is(err, ErrOperationFailed), errors.Is(err, ErrReadDatabaseRow):
		return "persistence"
	default:
		return "unknown"
	}
}
