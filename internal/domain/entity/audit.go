package entity

import "time"

// AuditRetention is how long an AuditRecord is kept before the sweeper
// deletes it.
const AuditRetention = 30 * 24 * time.Hour

// AuditStatus is the final disposition of an executed or decided call.
type AuditStatus string

const (
	AuditSuccess  AuditStatus = "success"
	AuditError    AuditStatus = "error"
	AuditRejected AuditStatus = "rejected"
	AuditExpired  AuditStatus = "expired"
)

// previewMaxLen bounds the truncated result preview stored on the record.
const previewMaxLen = 500

// AuditRecord is an immutable, write-once record of one completed or
// rejected execution.
type AuditRecord struct {
	ExecutionID    string
	ConversationID string
	Tool           string
	Params         map[string]interface{}
	Approver       string // "" if never gated, "auto" under approval_mode=auto, else the approving principal
	Status         AuditStatus
	RequestedAt    time.Time
	DecidedAt      time.Time // zero value if never suspended
	CompletedAt    time.Time
	ResultSize     int
	ResultPreview  string
}

// NewAuditRecord builds an AuditRecord, truncating the result preview to
// previewMaxLen runes.
func NewAuditRecord(executionID, conversationID, tool string, params map[string]interface{}, approver string, status AuditStatus, requestedAt, decidedAt time.Time, result string) AuditRecord {
	preview := result
	if runes := []rune(preview); len(runes) > previewMaxLen {
		preview = string(runes[:previewMaxLen])
	}
	return AuditRecord{
		ExecutionID:    executionID,
		ConversationID: conversationID,
		Tool:           tool,
		Params:         params,
		Approver:       approver,
		Status:         status,
		RequestedAt:    requestedAt,
		DecidedAt:      decidedAt,
		CompletedAt:    time.Now(),
		ResultSize:     len(result),
		ResultPreview:  preview,
	}
}

// IsExpiredRetention reports whether the record is past the 30-day
// retention window.
func (a AuditRecord) IsExpiredRetention(now time.Time) bool {
	return now.Sub(a.CompletedAt) > AuditRetention
}
