package errors

import (
	"errors"
	"fmt"
)

// ErrorCode identifies one entry in the error taxonomy (§7).
type ErrorCode string

const (
	CodeInvalidInput   ErrorCode = "INVALID_INPUT"
	CodeNotFound       ErrorCode = "NOT_FOUND"
	CodeAlreadyExists  ErrorCode = "ALREADY_EXISTS"
	CodeUnauthorized   ErrorCode = "UNAUTHORIZED"
	CodeForbidden      ErrorCode = "FORBIDDEN"
	CodeInternal       ErrorCode = "INTERNAL_ERROR"
	CodeServiceUnavail ErrorCode = "SERVICE_UNAVAILABLE"

	// Tool-execution taxonomy.
	CodeUnknownTool       ErrorCode = "UNKNOWN_TOOL"
	CodeBadParams         ErrorCode = "BAD_PARAMS"
	CodeApprovalRequired  ErrorCode = "APPROVAL_REQUIRED"
	CodeUnreachable       ErrorCode = "UNREACHABLE"
	CodeAPIError          ErrorCode = "API_ERROR"
	CodeTimeout           ErrorCode = "TIMEOUT"
	CodeConversationBusy  ErrorCode = "CONVERSATION_BUSY"
	CodeAlreadyDecided    ErrorCode = "ALREADY_DECIDED"
	CodeBadModel          ErrorCode = "BAD_MODEL"
)

// AppError is the single application-wide error type.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap.
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewInvalidInputError creates an invalid-input error.
func NewInvalidInputError(message string) *AppError {
	return &AppError{
		Code:    CodeInvalidInput,
		Message: message,
	}
}

// NewNotFoundError creates a not-found error.
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: message,
	}
}

// NewAlreadyExistsError creates an already-exists error.
func NewAlreadyExistsError(message string) *AppError {
	return &AppError{
		Code:    CodeAlreadyExists,
		Message: message,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(message string) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: message,
	}
}

// NewInternalErrorWithCause creates an internal error wrapping a cause.
func NewInternalErrorWithCause(message string, cause error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: message,
		Err:     cause,
	}
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == CodeNotFound
	}
	return false
}

// IsInvalidInput reports whether err is an invalid-input error.
func IsInvalidInput(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == CodeInvalidInput
	}
	return false
}

// NewUnknownToolError creates an unknown-tool error (catalog miss).
func NewUnknownToolError(name string) *AppError {
	return &AppError{Code: CodeUnknownTool, Message: fmt.Sprintf("unknown tool %q", name)}
}

// NewBadParamsError creates a parameter-validation error with detail.
func NewBadParamsError(detail string) *AppError {
	return &AppError{Code: CodeBadParams, Message: detail}
}

// NewApprovalRequiredError marks a call as suspended for approval.
func NewApprovalRequiredError(executionID string) *AppError {
	return &AppError{Code: CodeApprovalRequired, Message: executionID}
}

// NewUnreachableError wraps an endpoint-unreachable failure.
func NewUnreachableError(cause error) *AppError {
	return &AppError{Code: CodeUnreachable, Message: "endpoint unreachable", Err: cause}
}

// NewAPIError wraps a non-2xx API response.
func NewAPIError(status int, detail string) *AppError {
	return &AppError{Code: CodeAPIError, Message: fmt.Sprintf("api error (status %d): %s", status, detail)}
}

// NewTimeoutError marks a call as having exceeded its deadline.
func NewTimeoutError(detail string) *AppError {
	return &AppError{Code: CodeTimeout, Message: detail}
}

// NewConversationBusyError marks a conversation as already running a turn.
func NewConversationBusyError(conversationID string) *AppError {
	return &AppError{Code: CodeConversationBusy, Message: fmt.Sprintf("conversation %q is busy", conversationID)}
}

// NewAlreadyDecidedError marks a duplicate decision on a terminal PendingExecution.
func NewAlreadyDecidedError(executionID string) *AppError {
	return &AppError{Code: CodeAlreadyDecided, Message: fmt.Sprintf("execution %q already decided", executionID)}
}

// NewBadModelError marks an unknown model identifier.
func NewBadModelError(model string) *AppError {
	return &AppError{Code: CodeBadModel, Message: fmt.Sprintf("unknown model %q", model)}
}

// IsUnknownTool reports whether err is an unknown-tool error.
func IsUnknownTool(err error) bool { return hasCode(err, CodeUnknownTool) }

// IsBadParams reports whether err is a parameter-validation error.
func IsBadParams(err error) bool { return hasCode(err, CodeBadParams) }

// IsApprovalRequired reports whether err signals an approval suspension.
func IsApprovalRequired(err error) bool { return hasCode(err, CodeApprovalRequired) }

// IsUnreachable reports whether err is an endpoint-unreachable error.
func IsUnreachable(err error) bool { return hasCode(err, CodeUnreachable) }

// IsAPIError reports whether err wraps a non-2xx API response.
func IsAPIError(err error) bool { return hasCode(err, CodeAPIError) }

// IsTimeout reports whether err is a deadline-exceeded error.
func IsTimeout(err error) bool { return hasCode(err, CodeTimeout) }

// IsConversationBusy reports whether err signals a busy conversation.
func IsConversationBusy(err error) bool { return hasCode(err, CodeConversationBusy) }

// IsAlreadyDecided reports whether err signals a duplicate approval decision.
func IsAlreadyDecided(err error) bool { return hasCode(err, CodeAlreadyDecided) }

func hasCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
