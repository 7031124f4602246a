package persistence

import (
	"context"
	"sync"
	"time"

	"github.com/kubeagent/core/internal/domain/entity"
	"github.com/kubeagent/core/internal/domain/repository"
	"github.com/kubeagent/core/pkg/errors"
)

// MemoryPendingRepository is the ephemeral-tier PendingExecution store
// (§4.5): TTL 1 hour, compare-and-set status transitions.
type MemoryPendingRepository struct {
	mu       sync.Mutex
	pendings map[string]*entity.PendingExecution
}

// NewMemoryPendingRepository creates an empty in-memory repository.
func NewMemoryPendingRepository() repository.PendingRepository {
	return &MemoryPendingRepository{
		pendings: make(map[string]*entity.PendingExecution),
	}
}

func (r *MemoryPendingRepository) Save(ctx context.Context, pending *entity.PendingExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pendings[pending.ID()] = pending
	return nil
}

func (r *MemoryPendingRepository) FindByID(ctx context.Context, id string) (*entity.PendingExecution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pendings[id]
	if !ok {
		return nil, errors.NewNotFoundError("pending execution not found")
	}
	return p, nil
}

func (r *MemoryPendingRepository) List(ctx context.Context) ([]*entity.PendingExecution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entity.PendingExecution, 0, len(r.pendings))
	for _, p := range r.pendings {
		out = append(out, p)
	}
	return out, nil
}

func (r *MemoryPendingRepository) CompareAndSetStatus(ctx context.Context, id string, from, to entity.PendingStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pendings[id]
	if !ok {
		return false, errors.NewNotFoundError("pending execution not found")
	}
	if p.Status() != from {
		return false, nil
	}
	if err := p.Decide(to); err != nil {
		return false, nil
	}
	return true, nil
}

func (r *MemoryPendingRepository) ListExpirable(ctx context.Context, now int64) ([]*entity.PendingExecution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	nowT := time.Unix(0, now)
	out := make([]*entity.PendingExecution, 0)
	for _, p := range r.pendings {
		if p.IsExpired(nowT) {
			out = append(out, p)
		}
	}
	return out, nil
}
