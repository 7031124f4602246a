package repository

import (
	"context"

	"github.com/kubeagent/core/internal/domain/entity"
)

// ConversationSummary is the listing projection described in §4.5:
// identifier, title, message count, most-recent-update timestamp.
type ConversationSummary struct {
	ID            string
	Title         string
	MessageCount  int
	LastUpdated   int64 // unix nano, sortable by recency without pulling the full blob
}

// ConversationRepository is the ephemeral-tier store for conversations
// (§4.5: no expiry, explicit delete only).
type ConversationRepository interface {
	Save(ctx context.Context, conv *entity.Conversation) error
	FindByID(ctx context.Context, id string) (*entity.Conversation, error)
	List(ctx context.Context) ([]ConversationSummary, error)
	Delete(ctx context.Context, id string) error

	// TryLock acquires the per-conversation busy flag (§5), returning
	// false immediately if another turn already holds it — the
	// fail-fast conversation_busy semantics.
	TryLock(id string) bool
	Unlock(id string)
}
