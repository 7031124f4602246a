package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kubeagent/core/internal/application/usecase"
	"github.com/kubeagent/core/internal/domain/valueobject"
	apperrors "github.com/kubeagent/core/pkg/errors"
)

// ChatHandler is a thin, logic-free pass-through to ChatUseCase (§6A).
type ChatHandler struct {
	chat   *usecase.ChatUseCase
	logger *zap.Logger
}

func NewChatHandler(chat *usecase.ChatUseCase, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{chat: chat, logger: logger}
}

type chatRequest struct {
	Message        string `json:"message" binding:"required"`
	ConversationID string `json:"conversation_id"`
	ApprovalMode   string `json:"approval_mode"`
	Model          string `json:"model"`
}

type toolUseDTO struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

type toolResultDTO struct {
	CallID      string `json:"call_id"`
	Status      string `json:"status"`
	Payload     string `json:"payload"`
	ExecutionID string `json:"execution_id,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

type chatResponse struct {
	ConversationID     string          `json:"conversation_id"`
	ResponseText       string          `json:"response_text"`
	ToolUses           []toolUseDTO    `json:"tool_uses"`
	ToolResults        []toolResultDTO `json:"tool_results"`
	ExecutionID        string          `json:"execution,omitempty"`
}

// Chat handles POST /api/v1/chat.
func (h *ChatHandler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	mode := valueobject.ApprovalNormal
	if req.ApprovalMode != "" {
		m := valueobject.ApprovalMode(req.ApprovalMode)
		if !m.IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid approval_mode"})
			return
		}
		mode = m
	}

	result, err := h.chat.Execute(c.Request.Context(), usecase.ChatCommand{
		ConversationID: req.ConversationID,
		Message:        req.Message,
		ApprovalMode:   mode,
		Model:          req.Model,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, toChatResponse(result))
}

func toChatResponse(r *usecase.ChatResult) chatResponse {
	resp := chatResponse{
		ConversationID: r.ConversationID,
		ResponseText:   r.ResponseText,
		ExecutionID:    r.PendingExecutionID,
	}
	for _, u := range r.ToolUses {
		resp.ToolUses = append(resp.ToolUses, toolUseDTO{ID: u.ID, Name: u.Name, Arguments: u.Arguments})
	}
	for _, t := range r.ToolResults {
		resp.ToolResults = append(resp.ToolResults, toolResultDTO{
			CallID: t.CallID, Status: t.Status, Payload: t.Payload, ExecutionID: t.ExecutionID, Reason: t.Reason,
		})
	}
	return resp
}

// writeError maps the §7 error taxonomy to HTTP status codes.
func writeError(c *gin.Context, logger *zap.Logger, err error) {
	status := http.StatusInternalServerError
	switch {
	case apperrors.IsNotFound(err):
		status = http.StatusNotFound
	case apperrors.IsInvalidInput(err), apperrors.IsBadParams(err):
		status = http.StatusBadRequest
	case apperrors.IsConversationBusy(err):
		status = http.StatusConflict
	case apperrors.IsAlreadyDecided(err):
		status = http.StatusConflict
	case apperrors.IsUnreachable(err), apperrors.IsTimeout(err):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		logger.Error("request failed", zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
