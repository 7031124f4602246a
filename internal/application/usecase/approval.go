package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/kubeagent/core/internal/domain/entity"
	"github.com/kubeagent/core/internal/domain/repository"
	"github.com/kubeagent/core/internal/domain/service"
	"github.com/kubeagent/core/internal/domain/valueobject"
	apperrors "github.com/kubeagent/core/pkg/errors"
)

// ApproveCommand is one inbound decision on a suspended tool call (§6A:
// approve operation).
type ApproveCommand struct {
	ExecutionID string
	Approved    bool
	ApprovalMode valueobject.ApprovalMode
	Model       string
}

// ApprovalUseCase decides a PendingExecution, records the real or rejected
// ToolResult in place of the approval_required placeholder, and resumes the
// Conversation Driver so the turn continues to its next terminal reply or
// approval gate (§4.6 / §8 scenario 2-3).
type ApprovalUseCase struct {
	controller    *service.ApprovalController
	engine        *service.ExecutionEngine
	conversations repository.ConversationRepository
	driver        *service.ConversationDriver
	logger        *zap.Logger
}

// NewApprovalUseCase wires the use case to its collaborators.
func NewApprovalUseCase(
	controller *service.ApprovalController,
	engine *service.ExecutionEngine,
	conversations repository.ConversationRepository,
	driver *service.ConversationDriver,
	logger *zap.Logger,
) *ApprovalUseCase {
	return &ApprovalUseCase{controller: controller, engine: engine, conversations: conversations, driver: driver, logger: logger}
}

// Execute decides cmd.ExecutionID, dispatches the call when approved, and
// in either case resumes the owning conversation's turn.
func (uc *ApprovalUseCase) Execute(ctx context.Context, cmd ApproveCommand) (*ChatResult, error) {
	var pending *entity.PendingExecution
	var err error
	if cmd.Approved {
		pending, err = uc.controller.Approve(ctx, cmd.ExecutionID)
	} else {
		pending, err = uc.controller.Reject(ctx, cmd.ExecutionID)
	}
	if err != nil {
		return nil, err
	}

	conv, err := uc.conversations.FindByID(ctx, pending.ConversationID())
	if err != nil {
		return nil, apperrors.NewNotFoundError("conversation not found for pending execution")
	}

	if !uc.conversations.TryLock(conv.ID()) {
		return nil, apperrors.NewConversationBusyError(conv.ID())
	}
	defer uc.conversations.Unlock(conv.ID())

	var result entity.ToolResult
	if cmd.Approved {
		result = uc.engine.Resume(ctx, pending, "human")
	} else {
		result = entity.ToolResult{
			CallID:      pending.CallID(),
			Status:      entity.StatusError,
			Payload:     "tool call rejected by reviewer",
			ExecutionID: pending.ID(),
			Reason:      "user_rejected",
		}
	}
	conv.ReplaceLastToolResult(pending.CallID(), result)

	turnsBefore := len(conv.Turns())

	driverResult, eventCh := uc.driver.Resume(ctx, conv, cmd.ApprovalMode, cmd.Model)
	for range eventCh {
	}

	if err := uc.conversations.Save(ctx, conv); err != nil {
		return nil, apperrors.NewInternalErrorWithCause("failed to persist conversation", err)
	}

	return buildChatResult(conv, turnsBefore, driverResult), nil
}
