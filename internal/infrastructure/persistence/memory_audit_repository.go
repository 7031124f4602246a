package persistence

import (
	"context"
	"sort"
	"sync"

	"github.com/kubeagent/core/internal/domain/entity"
	"github.com/kubeagent/core/internal/domain/repository"
)

// MemoryAuditRepository is an in-memory AuditRepository for CLI/scripted
// invocations that have no durable database connection (§4.5's append-only
// store, without persistence across process restarts).
type MemoryAuditRepository struct {
	mu      sync.Mutex
	records []entity.AuditRecord
}

// NewMemoryAuditRepository creates an empty in-memory audit repository.
func NewMemoryAuditRepository() repository.AuditRepository {
	return &MemoryAuditRepository{}
}

func (r *MemoryAuditRepository) Append(ctx context.Context, record entity.AuditRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
	return nil
}

func (r *MemoryAuditRepository) FindByConversationID(ctx context.Context, conversationID string, limit int) ([]entity.AuditRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []entity.AuditRecord
	for i := len(r.records) - 1; i >= 0 && len(out) < limit; i-- {
		if r.records[i].ConversationID == conversationID {
			out = append(out, r.records[i])
		}
	}
	return out, nil
}

func (r *MemoryAuditRepository) List(ctx context.Context, limit int) ([]entity.AuditRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.records)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]entity.AuditRecord, n)
	for i := 0; i < n; i++ {
		out[i] = r.records[len(r.records)-1-i]
	}
	return out, nil
}

func (r *MemoryAuditRepository) DeleteOlderThan(ctx context.Context, unixSeconds int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.records[:0]
	var deleted int64
	for _, rec := range r.records {
		if rec.CompletedAt.Unix() < unixSeconds {
			deleted++
			continue
		}
		kept = append(kept, rec)
	}
	r.records = kept
	sort.Slice(r.records, func(i, j int) bool { return r.records[i].CompletedAt.Before(r.records[j].CompletedAt) })
	return deleted, nil
}
