package entity

import "time"

// DriverEventType classifies events emitted by the Conversation Driver
// as it works through one turn (§4.1).
type DriverEventType string

const (
	EventTextDelta  DriverEventType = "text_delta"
	EventToolCall   DriverEventType = "tool_call"
	EventToolResult DriverEventType = "tool_result"
	EventApproval   DriverEventType = "approval_required"
	EventThinking   DriverEventType = "thinking"
	EventStepDone   DriverEventType = "step_done"
	EventDone       DriverEventType = "done"
	EventError      DriverEventType = "error"
)

// DriverEvent is a single event streamed out of the Conversation Driver.
// Consumers (HTTP handler, CLI) subscribe to a channel of these.
type DriverEvent struct {
	Type      DriverEventType `json:"type"`
	Content   string          `json:"content,omitempty"`
	ToolCall  *ToolCallEvent  `json:"tool_call,omitempty"`
	StepInfo  *StepInfo       `json:"step_info,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// ToolCallEvent describes one tool invocation within a turn.
type ToolCallEvent struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Arguments   map[string]interface{} `json:"arguments"`
	Output      string                 `json:"output,omitempty"`
	Display     string                 `json:"display,omitempty"`
	Success     bool                   `json:"success"`
	Duration    time.Duration          `json:"duration,omitempty"`
	ExecutionID string                 `json:"execution_id,omitempty"` // set when suspended for approval
}

// StepInfo describes one LLM round-trip within the turn.
type StepInfo struct {
	Iteration  int    `json:"iteration"`
	TokensUsed int    `json:"tokens_used"`
	ModelUsed  string `json:"model_used"`
	State      string `json:"state,omitempty"`
}

// ToolCallInfo is a tool call as parsed from an LLM response.
type ToolCallInfo struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}
