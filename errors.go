package swarm

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure conditions. They can be matched
// with errors.Is through any ScanError wrapping.
var (
	// ErrInvalidConfig indicates the scan configuration is invalid or
	// incomplete.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrScanFailed indicates the scan aborted on a fatal error.
	ErrScanFailed = errors.New("scan failed")
)

// Error kinds categorize errors by their type.
const (
	// KindConfiguration represents errors building or loading configuration.
	KindConfiguration = "configuration"

	// KindValidation represents errors related to input validation.
	KindValidation = "validation"

	// KindExecution represents errors that occur while the scan runs.
	KindExecution = "execution"

	// KindNetwork represents errors reaching external services.
	KindNetwork = "network"
)

// ScanError is a structured error that wraps underlying errors with the
// operation that failed and the category of failure.
//
// ScanError implements the error interface and supports unwrapping, so
// it is compatible with errors.Is and errors.As.
type ScanError struct {
	// Op is the operation that failed (e.g. "Scanner.Run").
	Op string

	// Kind categorizes the error (e.g. KindConfiguration).
	Kind string

	// Err is the underlying error.
	Err error
}

// Error returns a formatted message including the operation, kind, and
// underlying error.
func (e *ScanError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("swarm: %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("swarm: %s (%s): %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *ScanError) Unwrap() error {
	return e.Err
}

// Is matches another ScanError by kind (and operation when the target
// sets one), or delegates to the underlying error.
func (e *ScanError) Is(target error) bool {
	if target == nil {
		return false
	}
	if t, ok := target.(*ScanError); ok {
		if t.Kind != "" && e.Kind == t.Kind {
			return t.Op == "" || e.Op == t.Op
		}
	}
	return errors.Is(e.Err, target)
}

// NewConfigurationError creates a ScanError with KindConfiguration.
func NewConfigurationError(op string, err error) *ScanError {
	return &ScanError{Op: op, Kind: KindConfiguration, Err: err}
}

// NewValidationError creates a ScanError with KindValidation.
func NewValidationError(op string, err error) *ScanError {
	return &ScanError{Op: op, Kind: KindValidation, Err: err}
}

// NewExecutionError creates a ScanError with KindExecution.
func NewExecutionError(op string, err error) *ScanError {
	return &ScanError{Op: op, Kind: KindExecution, Err: err}
}

// NewNetworkError creates a ScanError with KindNetwork.
func NewNetworkError(op string, err error) *ScanError {
	return &ScanError{Op: op, Kind: KindNetwork, Err: err}
}
