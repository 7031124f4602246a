package repository

import (
	"context"

	"github.com/kubeagent/core/internal/domain/entity"
)

// AuditRepository is the durable-tier, append-only store of
// AuditRecords (§4.5: 30-day retention, indexed by conversation and
// timestamp).
type AuditRepository interface {
	Append(ctx context.Context, record entity.AuditRecord) error
	FindByConversationID(ctx context.Context, conversationID string, limit int) ([]entity.AuditRecord, error)
	List(ctx context.Context, limit int) ([]entity.AuditRecord, error)

	// DeleteOlderThan removes records completed before the given unix
	// time — the 30-day retention sweep.
	DeleteOlderThan(ctx context.Context, unixSeconds int64) (int64, error)
}
