package persistence

import (
	"context"
	"sync"

	"github.com/kubeagent/core/internal/domain/entity"
	"github.com/kubeagent/core/internal/domain/repository"
	"github.com/kubeagent/core/pkg/errors"
)

// MemoryConversationRepository is the ephemeral-tier conversation store
// (§4.5): in-memory, mutex-guarded, no expiry — deletion is explicit.
type MemoryConversationRepository struct {
	mu       sync.RWMutex
	convs    map[string]*entity.Conversation
	busy     map[string]bool
}

// NewMemoryConversationRepository creates an empty in-memory repository.
func NewMemoryConversationRepository() repository.ConversationRepository {
	return &MemoryConversationRepository{
		convs: make(map[string]*entity.Conversation),
		busy:  make(map[string]bool),
	}
}

func (r *MemoryConversationRepository) Save(ctx context.Context, conv *entity.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.convs[conv.ID()] = conv
	return nil
}

func (r *MemoryConversationRepository) FindByID(ctx context.Context, id string) (*entity.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conv, ok := r.convs[id]
	if !ok {
		return nil, errors.NewNotFoundError("conversation not found")
	}
	return conv, nil
}

func (r *MemoryConversationRepository) List(ctx context.Context) ([]repository.ConversationSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]repository.ConversationSummary, 0, len(r.convs))
	for _, conv := range r.convs {
		out = append(out, repository.ConversationSummary{
			ID:           conv.ID(),
			Title:        conv.Title(),
			MessageCount: conv.MessageCount(),
			LastUpdated:  conv.UpdatedAt().UnixNano(),
		})
	}
	sortSummariesByRecency(out)
	return out, nil
}

func (r *MemoryConversationRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.convs[id]; !ok {
		return errors.NewNotFoundError("conversation not found")
	}
	delete(r.convs, id)
	delete(r.busy, id)
	return nil
}

// TryLock implements the §5 fail-fast conversation_busy decision: a
// second concurrent chat call on the same conversation observes the
// flag already set and returns immediately rather than queueing.
func (r *MemoryConversationRepository) TryLock(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.busy[id] {
		return false
	}
	r.busy[id] = true
	return true
}

func (r *MemoryConversationRepository) Unlock(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.busy, id)
}

func sortSummariesByRecency(s []repository.ConversationSummary) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j].LastUpdated > s[j-1].LastUpdated; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}
