package repository

import (
	"context"

	"github.com/kubeagent/core/internal/domain/entity"
)

// PendingRepository is the ephemeral-tier store for PendingExecutions
// (§4.5: TTL 1 hour, compare-and-set transitions).
type PendingRepository interface {
	Save(ctx context.Context, pending *entity.PendingExecution) error
	FindByID(ctx context.Context, id string) (*entity.PendingExecution, error)
	List(ctx context.Context) ([]*entity.PendingExecution, error)

	// CompareAndSetStatus atomically transitions a record from `from`
	// to `to`, returning false if the current status no longer matches
	// `from` (lost race / already decided).
	CompareAndSetStatus(ctx context.Context, id string, from, to entity.PendingStatus) (bool, error)

	// ListExpirable returns pending records whose TTL has elapsed as of
	// now, for the sweeper to transition to expired.
	ListExpirable(ctx context.Context, now int64) ([]*entity.PendingExecution, error)
}
