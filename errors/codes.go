// Package errors provides the coded error type shared by every deployment stage.
// Each error carries a string code that decides the process exit status, a
// human readable message, optional structured context and the wrapped cause.
package errors

// ErrorCode represents a specific error condition of a deployment run.
// Error codes are string-based for debuggability and natural log output.
type ErrorCode string

const (
	// Resource errors.

	// CodeNotFound indicates a requested resource does not exist.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// Permission errors.

	// CodeUnauthorized indicates the credentials were rejected.
	CodeUnauthorized ErrorCode = "UNAUTHORIZED"

	// Validation errors.

	// CodeInvalidInput indicates the provided input is invalid or malformed.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeInvalidConfig indicates a configuration error prevents the run.
	CodeInvalidConfig ErrorCode = "INVALID_CONFIGURATION"

	// Infrastructure errors.

	// CodeIO indicates a local filesystem or repository operation failed.
	CodeIO ErrorCode = "IO_ERROR"

	// CodeNetwork indicates a network operation failed.
	CodeNetwork ErrorCode = "NETWORK_ERROR"

	// CodeTimeout indicates an operation exceeded its time limit.
	CodeTimeout ErrorCode = "TIMEOUT"

	// Execution errors.

	// CodeExecutionFailed indicates a pipeline gate failed.
	CodeExecutionFailed ErrorCode = "EXECUTION_FAILED"

	// System errors.

	// CodeInternal indicates an internal error occurred.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeUnavailable indicates a remote service is temporarily unavailable.
	CodeUnavailable ErrorCode = "SERVICE_UNAVAILABLE"

	// Generic errors.

	// CodeUnknown indicates an unknown or unclassified error occurred.
	CodeUnknown ErrorCode = "UNKNOWN"
)
