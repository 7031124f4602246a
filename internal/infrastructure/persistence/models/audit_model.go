package models

import "time"

// AuditModel is the durable-tier row for entity.AuditRecord.
type AuditModel struct {
	ExecutionID    string `gorm:"primaryKey;size:64"`
	ConversationID string `gorm:"index;size:64;not null"`
	Tool           string `gorm:"size:128;not null"`
	Params         string `gorm:"type:text"` // JSON encoded
	Approver       string `gorm:"size:64"`
	Status         string `gorm:"size:32;not null"`
	RequestedAt    time.Time `gorm:"index"`
	DecidedAt      time.Time
	CompletedAt    time.Time `gorm:"index"`
	ResultSize     int
	ResultPreview  string `gorm:"type:text"`
}

// TableName pins the audit table name.
func (AuditModel) TableName() string {
	return "audit_records"
}
