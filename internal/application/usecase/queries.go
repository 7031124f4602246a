package usecase

import (
	"context"

	"github.com/kubeagent/core/internal/domain/entity"
	"github.com/kubeagent/core/internal/domain/repository"
	domaintool "github.com/kubeagent/core/internal/domain/tool"
)

// ListPendingUseCase serves the §6A "list pending" operation.
type ListPendingUseCase struct {
	pendings repository.PendingRepository
}

func NewListPendingUseCase(pendings repository.PendingRepository) *ListPendingUseCase {
	return &ListPendingUseCase{pendings: pendings}
}

func (uc *ListPendingUseCase) Execute(ctx context.Context) ([]*entity.PendingExecution, error) {
	return uc.pendings.List(ctx)
}

// ListHistoryUseCase serves the §6A "list history" operation.
type ListHistoryUseCase struct {
	audit repository.AuditRepository
}

func NewListHistoryUseCase(audit repository.AuditRepository) *ListHistoryUseCase {
	return &ListHistoryUseCase{audit: audit}
}

func (uc *ListHistoryUseCase) Execute(ctx context.Context, limit int) ([]entity.AuditRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	return uc.audit.List(ctx, limit)
}

// ListToolsUseCase serves the §6A "list tools" operation.
type ListToolsUseCase struct {
	registry domaintool.Registry
}

func NewListToolsUseCase(registry domaintool.Registry) *ListToolsUseCase {
	return &ListToolsUseCase{registry: registry}
}

func (uc *ListToolsUseCase) Execute(ctx context.Context) []domaintool.Definition {
	return uc.registry.List()
}
