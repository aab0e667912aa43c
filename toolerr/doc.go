// Package toolerr provides structured error types for tool dispatch.
//
// This package defines standard error codes and a structured Error type
// that includes tool context, operation details, error codes, and cause chains.
// It integrates with Go's standard errors package for error wrapping and
// unwrapping, and attaches an error class so agents can reason about how to
// recover from a failed tool call.
//
// # Error Codes
//
// Error codes identify the mechanical failure:
//
//	TOOL_NOT_FOUND       - invocation names a tool that is not registered
//	INVALID_ARGUMENTS    - arguments failed validation against the tool's schema
//	EXECUTION_FAILED     - the tool implementation returned an error
//	TIMEOUT              - the tool call exceeded its deadline
//	SANDBOX_AUTH_FAILED  - the sandbox tool-server rejected the bearer token
//	SANDBOX_UNREACHABLE  - the sandbox tool-server could not be reached
//	INTERRUPTED          - the call was cancelled before completion
//
// # Error Classes
//
// Error classes categorize failures by nature (infrastructure, semantic,
// transient, permanent) so the dispatcher and agents can decide whether to
// retry, rephrase, or give up.
//
// # Usage
//
//	err := toolerr.New("browser_action", "execute", toolerr.CodeSandboxUnreachable,
//		"tool server did not respond").
//		WithDetail("endpoint", url).
//		WithCause(dialErr)
package toolerr
