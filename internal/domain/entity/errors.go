package entity

import "errors"

var (
	// Conversation errors
	ErrInvalidConversationID = errors.New("invalid conversation id")
	ErrConversationNotFound  = errors.New("conversation not found")

	// Turn errors
	ErrInvalidTurnID      = errors.New("invalid turn id")
	ErrDanglingToolCall   = errors.New("tool call has no matching result")
	ErrUnmatchedToolResult = errors.New("tool result has no matching call")

	// PendingExecution errors
	ErrInvalidExecutionID  = errors.New("invalid execution id")
	ErrPendingNotFound     = errors.New("pending execution not found")
	ErrPendingNotPending   = errors.New("pending execution is not in pending state")

	// AuditRecord errors
	ErrInvalidAuditRecord = errors.New("invalid audit record")
)
