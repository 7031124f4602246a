package entity

import "time"

// PendingStatus is the state of a PendingExecution in the approval
// state machine (§4.6).
type PendingStatus string

const (
	PendingCreated  PendingStatus = "pending"
	PendingApproved PendingStatus = "approved"
	PendingRejected PendingStatus = "rejected"
	PendingExpired  PendingStatus = "expired"
)

// PendingTTL is the lifetime of a suspended execution before a sweep
// transitions it to expired.
const PendingTTL = time.Hour

// PendingExecution is a suspended tool call awaiting a human decision.
type PendingExecution struct {
	id             string
	conversationID string
	callID         string
	toolName       string
	params         map[string]interface{}
	dangerous      bool
	createdAt      time.Time
	status         PendingStatus
}

// NewPendingExecution creates a PendingExecution in the pending state.
func NewPendingExecution(id, conversationID, callID, toolName string, params map[string]interface{}, dangerous bool) (*PendingExecution, error) {
	if id == "" {
		return nil, ErrInvalidExecutionID
	}
	if conversationID == "" {
		return nil, ErrInvalidConversationID
	}
	return &PendingExecution{
		id:             id,
		conversationID: conversationID,
		callID:         callID,
		toolName:       toolName,
		params:         params,
		dangerous:      dangerous,
		createdAt:      time.Now(),
		status:         PendingCreated,
	}, nil
}

// ReconstructPendingExecution rebuilds a PendingExecution from persisted state.
func ReconstructPendingExecution(id, conversationID, callID, toolName string, params map[string]interface{}, dangerous bool, createdAt time.Time, status PendingStatus) *PendingExecution {
	return &PendingExecution{
		id:             id,
		conversationID: conversationID,
		callID:         callID,
		toolName:       toolName,
		params:         params,
		dangerous:      dangerous,
		createdAt:      createdAt,
		status:         status,
	}
}

func (p *PendingExecution) ID() string             { return p.id }
func (p *PendingExecution) ConversationID() string  { return p.conversationID }
func (p *PendingExecution) CallID() string          { return p.callID }
func (p *PendingExecution) ToolName() string        { return p.toolName }
func (p *PendingExecution) Params() map[string]interface{} {
	out := make(map[string]interface{}, len(p.params))
	for k, v := range p.params {
		out[k] = v
	}
	return out
}
func (p *PendingExecution) Classification() string {
	if p.dangerous {
		return "dangerous"
	}
	return "safe"
}
func (p *PendingExecution) CreatedAt() time.Time { return p.createdAt }
func (p *PendingExecution) Status() PendingStatus { return p.status }

// IsTerminal reports whether the execution is in a terminal state.
func (p *PendingExecution) IsTerminal() bool {
	return p.status == PendingApproved || p.status == PendingRejected || p.status == PendingExpired
}

// IsExpired reports whether the TTL has elapsed, independent of a sweep
// having run yet.
func (p *PendingExecution) IsExpired(now time.Time) bool {
	return p.status == PendingCreated && now.Sub(p.createdAt) > PendingTTL
}

// Decide transitions pending -> approved/rejected/expired.
//
// Re-sending the identical decision on an already-decided record is a
// no-op success (idempotent replay, §8). Any other transition attempt
// from a terminal state fails with ErrPendingNotPending — callers
// should map this to Err(already_decided).
func (p *PendingExecution) Decide(target PendingStatus) error {
	if p.status == target {
		return nil
	}
	if p.IsTerminal() {
		return ErrPendingNotPending
	}
	if p.status != PendingCreated {
		return ErrPendingNotPending
	}
	p.status = target
	return nil
}
