package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kubeagent/core/internal/domain/entity"
	"github.com/kubeagent/core/internal/domain/repository"
	"github.com/kubeagent/core/internal/domain/service"
	"github.com/kubeagent/core/internal/domain/valueobject"
	apperrors "github.com/kubeagent/core/pkg/errors"
)

// ChatCommand is one inbound chat request (§6A: chat operation).
type ChatCommand struct {
	ConversationID string
	Message        string
	ApprovalMode   valueobject.ApprovalMode
	Model          string
}

// ToolUse is a single tool invocation the LLM requested during the turn.
type ToolUse struct {
	ID        string
	Name      string
	Arguments map[string]interface{}
}

// ToolOutcome is the ToolResult correlated back to a ToolUse by CallID.
type ToolOutcome struct {
	CallID      string
	Status      string
	Payload     string
	ExecutionID string
	Reason      string
}

// ChatResult is the §6A chat response shape.
type ChatResult struct {
	ConversationID      string
	ResponseText        string
	ToolUses            []ToolUse
	ToolResults         []ToolOutcome
	PendingExecutionID  string
}

// ChatUseCase drives one user turn: load-or-create the Conversation, run it
// through the Conversation Driver under the per-conversation busy lock, and
// persist the result. It performs no classification or tool dispatch
// itself — that is the Driver's and Execution Engine's job.
type ChatUseCase struct {
	conversations repository.ConversationRepository
	driver        *service.ConversationDriver
	logger        *zap.Logger
}

// NewChatUseCase wires the use case to its repository and driver.
func NewChatUseCase(conversations repository.ConversationRepository, driver *service.ConversationDriver, logger *zap.Logger) *ChatUseCase {
	return &ChatUseCase{conversations: conversations, driver: driver, logger: logger}
}

// Execute runs cmd to completion, an approval gate, or the iteration cap.
func (uc *ChatUseCase) Execute(ctx context.Context, cmd ChatCommand) (*ChatResult, error) {
	conv, isNew, err := uc.loadOrCreate(ctx, cmd.ConversationID)
	if err != nil {
		return nil, err
	}

	if !uc.conversations.TryLock(conv.ID()) {
		return nil, apperrors.NewConversationBusyError(conv.ID())
	}
	defer uc.conversations.Unlock(conv.ID())

	turnsBefore := len(conv.Turns())

	driverResult, eventCh := uc.driver.Run(ctx, conv, cmd.Message, cmd.ApprovalMode, cmd.Model)
	for range eventCh {
		// Drain to completion; the HTTP handler gets the synchronous result.
		// Streaming consumers (future SSE) would fan this channel out instead.
	}

	if err := uc.conversations.Save(ctx, conv); err != nil {
		if isNew {
			uc.logger.Error("failed to persist new conversation", zap.Error(err))
		}
		return nil, apperrors.NewInternalErrorWithCause("failed to persist conversation", err)
	}

	return uc.buildResult(conv, turnsBefore, driverResult), nil
}

func (uc *ChatUseCase) loadOrCreate(ctx context.Context, id string) (*entity.Conversation, bool, error) {
	if id == "" {
		conv, err := entity.NewConversation(uuid.NewString())
		if err != nil {
			return nil, false, err
		}
		return conv, true, nil
	}

	conv, err := uc.conversations.FindByID(ctx, id)
	if err == nil {
		return conv, false, nil
	}

	conv, cerr := entity.NewConversation(id)
	if cerr != nil {
		return nil, false, cerr
	}
	return conv, true, nil
}

// buildResult collects the ToolUse/ToolOutcome pairs introduced by this
// turn from the turns appended since turnsBefore.
func (uc *ChatUseCase) buildResult(conv *entity.Conversation, turnsBefore int, dr *service.DriverResult) *ChatResult {
	return buildChatResult(conv, turnsBefore, dr)
}

// buildChatResult is shared by ChatUseCase and ApprovalUseCase — both
// resume/run the Driver over a Conversation and report the same shape.
func buildChatResult(conv *entity.Conversation, turnsBefore int, dr *service.DriverResult) *ChatResult {
	res := &ChatResult{
		ConversationID:     conv.ID(),
		ResponseText:       dr.FinalContent,
		PendingExecutionID: dr.PendingExecutionID,
	}

	turns := conv.Turns()
	for _, t := range turns[turnsBefore:] {
		switch t.Kind {
		case entity.TurnAssistant:
			for _, c := range t.ToolCalls {
				res.ToolUses = append(res.ToolUses, ToolUse{ID: c.ID, Name: c.Name, Arguments: c.Params})
			}
		case entity.TurnToolResult:
			if t.ToolResult != nil {
				res.ToolResults = append(res.ToolResults, ToolOutcome{
					CallID:      t.ToolResult.CallID,
					Status:      string(t.ToolResult.Status),
					Payload:     t.ToolResult.Payload,
					ExecutionID: t.ToolResult.ExecutionID,
					Reason:      t.ToolResult.Reason,
				})
			}
		}
	}
	return res
}

// ConversationView is the §6A "load conversation" response shape.
type ConversationView struct {
	ID      string
	Title   string
	Turns   []entity.Turn
}

// ListConversationsUseCase serves the §6A "list conversations" operation.
type ListConversationsUseCase struct {
	conversations repository.ConversationRepository
}

func NewListConversationsUseCase(conversations repository.ConversationRepository) *ListConversationsUseCase {
	return &ListConversationsUseCase{conversations: conversations}
}

func (uc *ListConversationsUseCase) Execute(ctx context.Context) ([]repository.ConversationSummary, error) {
	return uc.conversations.List(ctx)
}

// LoadConversationUseCase serves the §6A "load conversation" operation.
type LoadConversationUseCase struct {
	conversations repository.ConversationRepository
}

func NewLoadConversationUseCase(conversations repository.ConversationRepository) *LoadConversationUseCase {
	return &LoadConversationUseCase{conversations: conversations}
}

func (uc *LoadConversationUseCase) Execute(ctx context.Context, id string) (*ConversationView, error) {
	conv, err := uc.conversations.FindByID(ctx, id)
	if err != nil {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("conversation %q not found", id))
	}
	return &ConversationView{ID: conv.ID(), Title: conv.Title(), Turns: conv.Turns()}, nil
}

// DeleteConversationUseCase serves the §6A "delete conversation" operation.
type DeleteConversationUseCase struct {
	conversations repository.ConversationRepository
}

func NewDeleteConversationUseCase(conversations repository.ConversationRepository) *DeleteConversationUseCase {
	return &DeleteConversationUseCase{conversations: conversations}
}

func (uc *DeleteConversationUseCase) Execute(ctx context.Context, id string) error {
	return uc.conversations.Delete(ctx, id)
}
