package task

import "fmt"

// ErrorCode classifies task orchestration errors.
type ErrorCode string

const (
	// ErrCodeNotFound indicates the task identifier is unknown.
	ErrCodeNotFound ErrorCode = "TASK_NOT_FOUND"
	// ErrCodeInvalidStage indicates an unrecognized stage name.
	ErrCodeInvalidStage ErrorCode = "INVALID_STAGE"
	// ErrCodeBadRequest indicates missing or malformed creation input.
	ErrCodeBadRequest ErrorCode = "BAD_REQUEST"
	// ErrCodeConflict indicates a stage's precondition data is absent.
	ErrCodeConflict ErrorCode = "CONFLICT"
	// ErrCodeUpstreamUnavailable indicates a collaborator service could not be reached.
	ErrCodeUpstreamUnavailable ErrorCode = "UPSTREAM_UNAVAILABLE"
	// ErrCodeUpstreamError indicates a collaborator was reached but rejected the request.
	ErrCodeUpstreamError ErrorCode = "UPSTREAM_ERROR"
)

// Error represents an error during task orchestration.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewNotFoundError creates an error for an unknown task.
func NewNotFoundError(taskID string) *Error {
	return &Error{Code: ErrCodeNotFound, Message: fmt.Sprintf("任务不存在: %s", taskID)}
}

// NewInvalidStageError creates an error for an unrecognized stage name.
func NewInvalidStageError(stage string) *Error {
	return &Error{Code: ErrCodeInvalidStage, Message: fmt.Sprintf("未知阶段: %s", stage)}
}

// NewBadRequestError creates an error for malformed creation input.
func NewBadRequestError(message string) *Error {
	return &Error{Code: ErrCodeBadRequest, Message: message}
}

// NewConflictError creates an error for a stage whose input data is absent.
func NewConflictError(message string) *Error {
	return &Error{Code: ErrCodeConflict, Message: message}
}

// NewUpstreamUnavailableError creates an error for an unreachable collaborator.
func NewUpstreamUnavailableError(message string, cause error) *Error {
	return &Error{Code: ErrCodeUpstreamUnavailable, Message: message, Cause: cause}
}

// NewUpstreamError creates an error for a collaborator that rejected the request.
func NewUpstreamError(message string, cause error) *Error {
	return &Error{Code: ErrCodeUpstreamError, Message: message, Cause: cause}
}

// CodeOf extracts the error code, defaulting to upstream error for foreign errors.
func CodeOf(err error) ErrorCode {
	if taskErr, ok := err.(*Error); ok {
		return taskErr.Code
	}
	return ErrCodeUpstreamError
}

// IsNotFound checks if the error is a task not found error.
func IsNotFound(err error) bool {
	if taskErr, ok := err.(*Error); ok {
		return taskErr.Code == ErrCodeNotFound
	}
	return false
}

// IsInvalidStage checks if the error is an invalid stage error.
func IsInvalidStage(err error) bool {
	if taskErr, ok := err.(*Error); ok {
		return taskErr.Code == ErrCodeInvalidStage
	}
	return false
}

// IsConflict checks if the error is a conflict error.
func IsConflict(err error) bool {
	if taskErr, ok := err.(*Error); ok {
		return taskErr.Code == ErrCodeConflict
	}
	return false
}
