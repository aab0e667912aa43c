package toolerr

// ErrorClass categorizes errors by their nature for semantic understanding
// and recovery planning. This helps the dispatcher and agents reason about
// how to handle different types of failures.
type ErrorClass string

const (
	// ErrorClassInfrastructure indicates environment or setup issues
	// Examples: sandbox not provisioned, token missing, endpoint misconfigured
	ErrorClassInfrastructure ErrorClass = "infrastructure"

	// ErrorClassSemantic indicates input or configuration issues
	// Examples: unknown tool name, arguments failing schema validation
	ErrorClassSemantic ErrorClass = "semantic"

	// ErrorClassTransient indicates temporary failures that may resolve
	// Examples: network timeouts, sandbox briefly unreachable
	ErrorClassTransient ErrorClass = "transient"

	// ErrorClassPermanent indicates non-recoverable failures
	// Examples: bearer token permanently rejected, call cancelled
	ErrorClassPermanent ErrorClass = "permanent"
)

// IsValid checks if the error class is a recognized value.
func (c ErrorClass) IsValid() bool {
	switch c {
	case ErrorClassInfrastructure, ErrorClassSemantic, ErrorClassTransient, ErrorClassPermanent:
		return true
	default:
		return false
	}
}

// String returns the string representation of the error class.
func (c ErrorClass) String() string {
	return string(c)
}

// DefaultClassForCode returns the default error class for a given error code.
// This provides sensible defaults based on the error code's semantic meaning.
func DefaultClassForCode(code string) ErrorClass {
	switch code {
	case CodeToolNotFound:
		return ErrorClassSemantic
	case CodeInvalidArguments:
		return ErrorClassSemantic
	case CodeTimeout:
		return ErrorClassTransient
	case CodeSandboxUnreachable:
		return ErrorClassTransient
	case CodeSandboxAuthFailed:
		return ErrorClassInfrastructure
	case CodeInterrupted:
		return ErrorClassPermanent
	case CodeExecutionFailed:
		// EXECUTION_FAILED is context-dependent, default to transient
		return ErrorClassTransient
	default:
		// Unknown error codes default to transient
		return ErrorClassTransient
	}
}
