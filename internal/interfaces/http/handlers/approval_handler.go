package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kubeagent/core/internal/application/usecase"
	"github.com/kubeagent/core/internal/domain/valueobject"
)

// ApprovalHandler is a thin, logic-free pass-through to ApprovalUseCase (§6A).
type ApprovalHandler struct {
	approval *usecase.ApprovalUseCase
	logger   *zap.Logger
}

func NewApprovalHandler(approval *usecase.ApprovalUseCase, logger *zap.Logger) *ApprovalHandler {
	return &ApprovalHandler{approval: approval, logger: logger}
}

type approveRequest struct {
	ExecutionID  string `json:"execution_id" binding:"required"`
	Approved     bool   `json:"approved"`
	ApprovalMode string `json:"approval_mode"`
	Model        string `json:"model"`
}

// Approve handles POST /api/v1/approve.
func (h *ApprovalHandler) Approve(c *gin.Context) {
	var req approveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	mode := valueobject.ApprovalNormal
	if req.ApprovalMode != "" {
		mode = valueobject.ApprovalMode(req.ApprovalMode)
	}

	result, err := h.approval.Execute(c.Request.Context(), usecase.ApproveCommand{
		ExecutionID:  req.ExecutionID,
		Approved:     req.Approved,
		ApprovalMode: mode,
		Model:        req.Model,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, toChatResponse(result))
}
