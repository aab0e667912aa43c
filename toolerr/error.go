package toolerr

import (
	"errors"
	"fmt"
	"strings"
)

// Standard error codes used across tool dispatch for consistent reporting.
const (
	// CodeToolNotFound indicates the invocation names an unregistered tool
	CodeToolNotFound = "TOOL_NOT_FOUND"

	// CodeInvalidArguments indicates the arguments failed validation
	CodeInvalidArguments = "INVALID_ARGUMENTS"

	// CodeExecutionFailed indicates the tool implementation returned an error
	CodeExecutionFailed = "EXECUTION_FAILED"

	// CodeTimeout indicates the tool call exceeded its deadline
	CodeTimeout = "TIMEOUT"

	// CodeSandboxAuthFailed indicates the sandbox rejected the bearer token
	CodeSandboxAuthFailed = "SANDBOX_AUTH_FAILED"

	// CodeSandboxUnreachable indicates the sandbox tool-server is unreachable
	CodeSandboxUnreachable = "SANDBOX_UNREACHABLE"

	// CodeInterrupted indicates the call was cancelled before completion
	CodeInterrupted = "INTERRUPTED"
)

// Error is a structured error type for tool dispatch operations.
// It provides context about which tool and operation failed,
// includes a standard error code, and can wrap underlying errors.
type Error struct {
	// Tool is the name of the tool that generated the error
	Tool string

	// Operation is the specific operation that failed
	Operation string

	// Code is a standard error code constant
	Code string

	// Message is a human-readable error message
	Message string

	// Details contains additional context as key-value pairs
	Details map[string]any

	// Cause is the underlying error that caused this error
	Cause error

	// Class categorizes the error by its nature for recovery planning
	Class ErrorClass `json:"class,omitempty"`
}

// New creates a new structured tool error.
// The error class is derived from the code via DefaultClassForCode.
func New(tool, operation, code, message string) *Error {
	return &Error{
		Tool:      tool,
		Operation: operation,
		Code:      code,
		Message:   message,
		Class:     DefaultClassForCode(code),
	}
}

// WithDetail attaches a key-value detail and returns the error for chaining.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause attaches an underlying error and returns the error for chaining.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithClass overrides the derived error class.
func (e *Error) WithClass(class ErrorClass) *Error {
	e.Class = class
	return e
}

// Error implements the error interface.
// Format: "tool/operation: [CODE] message: cause"
func (e *Error) Error() string {
	var b strings.Builder
	if e.Tool != "" {
		b.WriteString(e.Tool)
		if e.Operation != "" {
			b.WriteString("/")
			b.WriteString(e.Operation)
		}
		b.WriteString(": ")
	}
	fmt.Fprintf(&b, "[%s] %s", e.Code, e.Message)
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause for errors.Is/errors.As traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a *Error with the same code.
// This allows errors.Is comparisons against sentinel errors built with Code.
func (e *Error) Is(target error) bool {
	var te *Error
	if !errors.As(target, &te) {
		return false
	}
	return e.Code == te.Code
}

// CodeOf extracts the error code from err if it is (or wraps) a *Error.
// Returns the empty string otherwise.
func CodeOf(err error) string {
	var te *Error
	if errors.As(err, &te) {
		return te.Code
	}
	return ""
}

// IsRetryable reports whether the error class suggests a retry may succeed.
func (e *Error) IsRetryable() bool {
	return e.Class == ErrorClassTransient
}
