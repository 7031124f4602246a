package service

import (
	"context"
	"time"

	"github.com/kubeagent/core/internal/domain/entity"
	"github.com/kubeagent/core/internal/domain/repository"
	"github.com/kubeagent/core/pkg/errors"
	"go.uber.org/zap"
)

// ApprovalController implements the §4.6 approval state machine on top of
// the PendingRepository: it decides pending executions and sweeps expired
// ones, but never executes tools itself — that is the Execution Engine's job
// (see ExecutionEngine.Resume).
type ApprovalController struct {
	pendings repository.PendingRepository
	audit    repository.AuditRepository
	logger   *zap.Logger
}

// NewApprovalController wires a controller to its repositories.
func NewApprovalController(pendings repository.PendingRepository, audit repository.AuditRepository, logger *zap.Logger) *ApprovalController {
	return &ApprovalController{pendings: pendings, audit: audit, logger: logger}
}

// Approve transitions a pending execution to Approved via compare-and-set.
// Returns an AlreadyDecided AppError if the pending is already in a
// different terminal state — idempotent replay of the same decision is not
// an error.
func (c *ApprovalController) Approve(ctx context.Context, executionID string) (*entity.PendingExecution, error) {
	return c.decide(ctx, executionID, entity.PendingApproved)
}

// Reject transitions a pending execution to Rejected via compare-and-set.
func (c *ApprovalController) Reject(ctx context.Context, executionID string) (*entity.PendingExecution, error) {
	return c.decide(ctx, executionID, entity.PendingRejected)
}

func (c *ApprovalController) decide(ctx context.Context, executionID string, target entity.PendingStatus) (*entity.PendingExecution, error) {
	pending, err := c.pendings.FindByID(ctx, executionID)
	if err != nil {
		return nil, err
	}

	if pending.Status() == target {
		// Idempotent replay of an already-applied decision.
		return pending, nil
	}
	if pending.IsTerminal() {
		return nil, errors.NewAlreadyDecidedError("pending execution already decided: " + string(pending.Status()))
	}

	ok, err := c.pendings.CompareAndSetStatus(ctx, executionID, entity.PendingCreated, target)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost the race — re-read to report the winning decision.
		latest, findErr := c.pendings.FindByID(ctx, executionID)
		if findErr != nil {
			return nil, findErr
		}
		return nil, errors.NewAlreadyDecidedError("pending execution already decided: " + string(latest.Status()))
	}

	return c.pendings.FindByID(ctx, executionID)
}

// SweepExpired marks every pending execution whose TTL has elapsed as
// Expired and records an audit entry for each (§4.5 ephemeral-tier TTL).
// Intended to run on robfig/cron's schedule (approval.sweep_cron).
func (c *ApprovalController) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	expirable, err := c.pendings.ListExpirable(ctx, now.UnixNano())
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, pending := range expirable {
		if err := pending.Decide(entity.PendingExpired); err != nil {
			continue // already terminal, nothing to do
		}
		if err := c.pendings.Save(ctx, pending); err != nil {
			c.logger.Warn("failed to persist expired pending execution",
				zap.String("execution_id", pending.ID()), zap.Error(err))
			continue
		}

		record := entity.NewAuditRecord(
			pending.ID(), pending.ConversationID(), pending.ToolName(), pending.Params(),
			"", entity.AuditExpired, pending.CreatedAt(), now, "expired before a human decided",
		)
		if err := c.audit.Append(ctx, record); err != nil {
			c.logger.Warn("failed to append expiry audit record",
				zap.String("execution_id", pending.ID()), zap.Error(err))
		}
		swept++
	}

	if swept > 0 {
		c.logger.Info("swept expired pending executions", zap.Int("count", swept))
	}
	return swept, nil
}
