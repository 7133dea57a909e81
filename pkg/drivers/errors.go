// Package drivers defines the amphora driver capability interface, the
// classified error type raised at the driver boundary, and the registry that
// resolves a configured driver name to a single driver instance.
package drivers

import (
	"errors"
	"fmt"
)

// ErrorClass classifies a driver failure for retry and compensation logic.
// The set is closed: the retry policy and the task compensations match on it
// exhaustively.
type ErrorClass string

const (
	// ErrorClassTransient indicates the appliance agent was unreachable in a
	// way that is expected to resolve (booting instance, brief network blip).
	// Absorbed by the retry policy up to a bounded attempt count.
	ErrorClassTransient ErrorClass = "transient"

	// ErrorClassTimeout indicates the operation deadline elapsed without
	// success. Always fatal to the current operation.
	ErrorClassTimeout ErrorClass = "timeout"

	// ErrorClassUnsupported indicates the capability is not implemented by
	// this driver or amphora image. Treated as a missing optional feature.
	ErrorClassUnsupported ErrorClass = "unsupported"

	// ErrorClassNotFound indicates an expected entity was missing on the
	// appliance.
	ErrorClassNotFound ErrorClass = "not_found"

	// ErrorClassUnclassified indicates any other operation failure.
	ErrorClassUnclassified ErrorClass = "unclassified"
)

// DriverError is a classified error raised at the driver boundary.
// nolint:revive // DriverError is intentionally named to distinguish from standard errors
type DriverError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Op is the driver operation being performed.
	Op string `json:"op,omitempty"`

	// AmphoraID is the amphora the operation targeted, if applicable.
	AmphoraID string `json:"amphora_id,omitempty"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Err is the underlying error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *DriverError) Error() string {
	if e.AmphoraID != "" && e.Op != "" {
		return fmt.Sprintf("[%s] %s (amphora=%s, op=%s): %s",
			e.Class, e.Message, e.AmphoraID, e.Op, e.unwrapMessage())
	}
	if e.Op != "" {
		return fmt.Sprintf("[%s] %s (op=%s): %s", e.Class, e.Message, e.Op, e.unwrapMessage())
	}
	return fmt.Sprintf("[%s] %s: %s", e.Class, e.Message, e.unwrapMessage())
}

// Unwrap returns the underlying error for error chain inspection.
func (e *DriverError) Unwrap() error {
	return e.Err
}

func (e *DriverError) unwrapMessage() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return ""
}

// Is implements error equality checking for errors.Is.
func (e *DriverError) Is(target error) bool {
	t, ok := target.(*DriverError)
	if !ok {
		return false
	}
	return e.Class == t.Class
}

// WithOp adds operation context to an error.
func (e *DriverError) WithOp(op string) *DriverError {
	e.Op = op
	return e
}

// WithAmphora adds amphora context to an error.
func (e *DriverError) WithAmphora(amphoraID string) *DriverError {
	e.AmphoraID = amphoraID
	return e
}

// NewTransientError creates a new transient (connection retryable) error.
func NewTransientError(message string, err error) *DriverError {
	return &DriverError{Class: ErrorClassTransient, Message: message, Err: err}
}

// NewTimeoutError creates a new timeout error.
func NewTimeoutError(message string, err error) *DriverError {
	return &DriverError{Class: ErrorClassTimeout, Message: message, Err: err}
}

// NewUnsupportedError creates a new unsupported-capability error.
func NewUnsupportedError(message string, err error) *DriverError {
	return &DriverError{Class: ErrorClassUnsupported, Message: message, Err: err}
}

// NewNotFoundError creates a new not-found error.
func NewNotFoundError(message string, err error) *DriverError {
	return &DriverError{Class: ErrorClassNotFound, Message: message, Err: err}
}

// NewUnclassifiedError creates a new unclassified operation error.
func NewUnclassifiedError(message string, err error) *DriverError {
	return &DriverError{Class: ErrorClassUnclassified, Message: message, Err: err}
}

// Classify extracts the error class from an error chain. Errors that are not
// DriverErrors are unclassified.
func Classify(err error) ErrorClass {
	var e *DriverError
	if errors.As(err, &e) {
		return e.Class
	}
	return ErrorClassUnclassified
}

// IsTransient returns true if the error is a retryable connectivity failure.
func IsTransient(err error) bool {
	return err != nil && Classify(err) == ErrorClassTransient
}

// IsTimeout returns true if the error is a deadline failure.
func IsTimeout(err error) bool {
	return err != nil && Classify(err) == ErrorClassTimeout
}

// IsUnsupported returns true if the error indicates a missing capability.
func IsUnsupported(err error) bool {
	return err != nil && Classify(err) == ErrorClassUnsupported
}

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool {
	return err != nil && Classify(err) == ErrorClassNotFound
}
