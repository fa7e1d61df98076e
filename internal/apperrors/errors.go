package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// RetryableError indicates an error that might be resolved by retrying.
type RetryableError struct {
	Err error
}

// Error implements the error interface.
func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable: %v", e.Err)
}

// Unwrap returns the wrapped error.
func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryable wraps the given error as a RetryableError, adding a message.
// It uses fmt.Errorf with %w to maintain the error chain.
func NewRetryable(err error, message string, args ...interface{}) error {
	format := message + ": %w"
	allArgs := append(args, err)
	return &RetryableError{Err: fmt.Errorf(format, allArgs...)}
}

// FatalError indicates an error that is unlikely to be resolved by retrying.
type FatalError struct {
	Err error
}

// Error implements the error interface.
func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal: %v", e.Err)
}

// Unwrap returns the wrapped error.
func (e *FatalError) Unwrap() error {
	return e.Err
}

// NewFatal wraps the given error as a FatalError, adding a message.
// It uses fmt.Errorf with %w to maintain the error chain.
func NewFatal(err error, message string, args ...interface{}) error {
	format := message + ": %w"
	allArgs := append(args, err)
	return &FatalError{Err: fmt.Errorf(format, allArgs...)}
}

// --- Standard Error Definitions ---

// These sentinel errors define common application-level error conditions.
// They can be checked using errors.Is and potentially wrapped by
// RetryableError or FatalError depending on the context where they are handled.
var (
	// ErrNotFound indicates a requested resource was not found.
	ErrNotFound = errors.New("resource not found")
	// ErrValidation indicates failure during data validation.
	ErrValidation = errors.New("validation failed")
	// ErrCapacityExceeded indicates a send was rejected by the quota checker.
	ErrCapacityExceeded = errors.New("capacity exceeded")
	// ErrStateConflict indicates a mutation attempted against a schedule that
	// has already left the pending state.
	ErrStateConflict = errors.New("state conflict")
	// ErrProvider indicates a transport-level provider failure. This is a
	// business outcome recorded on the schedule row, not a system fault.
	ErrProvider = errors.New("provider failure")
	// ErrDatabase indicates a general database interaction error.
	ErrDatabase = errors.New("database error")
	// ErrUnauthorized indicates an authorization failure.
	ErrUnauthorized = errors.New("unauthorized access")
	// ErrDuplicate indicates a conflict due to duplicate data (e.g., unique constraint).
	ErrDuplicate = errors.New("duplicate resource")
	// ErrBadRequest indicates a malformed or invalid request from the client/caller.
	ErrBadRequest = errors.New("bad request")
	// ErrTimeout indicates an operation timed out.
	ErrTimeout = errors.New("operation timeout")
)

// CapacityError carries the quota detail the boundary reports back to a
// caller: the configured limit, the usage already committed for the period
// and the amount the rejected request asked for.
type CapacityError struct {
	Limit     int
	Used      int
	Requested int
}

// Error implements the error interface.
func (e *CapacityError) Error() string {
	return fmt.Sprintf("capacity exceeded: limit %d, used %d, requested %d", e.Limit, e.Used, e.Requested)
}

// Unwrap makes the error match ErrCapacityExceeded under errors.Is.
func (e *CapacityError) Unwrap() error {
	return ErrCapacityExceeded
}

// NewCapacityError builds a CapacityError with the given quota detail.
func NewCapacityError(limit, used, requested int) error {
	return &CapacityError{Limit: limit, Used: used, Requested: requested}
}

// AsCapacityError extracts a CapacityError from an error chain.
func AsCapacityError(err error) (*CapacityError, bool) {
	var target *CapacityError
	ok := errors.As(err, &target)
	return target, ok
}

// --- Helper functions for checking ---

// IsRetryable checks if the error is a RetryableError or wraps one.
func IsRetryable(err error) bool {
	var target *RetryableError
	return errors.As(err, &target)
}

// IsFatal checks if the error is a FatalError or wraps one.
func IsFatal(err error) bool {
	var target *FatalError
	return errors.As(err, &target)
}

// --- Specific Standard Error Checkers ---

// IsNotFoundError checks if the error is or wraps ErrNotFound.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidationError checks if the error is or wraps ErrValidation.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsCapacityExceededError checks if the error is or wraps ErrCapacityExceeded.
func IsCapacityExceededError(err error) bool {
	return errors.Is(err, ErrCapacityExceeded)
}

// IsStateConflictError checks if the error is or wraps ErrStateConflict.
func IsStateConflictError(err error) bool {
	return errors.Is(err, ErrStateConflict)
}

// IsProviderError checks if the error is or wraps ErrProvider.
func IsProviderError(err error) bool {
	return errors.Is(err, ErrProvider)
}

// IsDatabaseError checks if the error is or wraps ErrDatabase.
func IsDatabaseError(err error) bool {
	return errors.Is(err, ErrDatabase)
}

// IsDuplicateError checks if the error is or wraps ErrDuplicate.
func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// HTTPStatus maps an application error to the status class the API boundary
// reports. State conflicts deliberately map to 400 with an explicit reason,
// not a generic validation shape.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrCapacityExceeded),
		errors.Is(err, ErrStateConflict),
		errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
