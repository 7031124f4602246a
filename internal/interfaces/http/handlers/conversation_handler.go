package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kubeagent/core/internal/application/usecase"
)

// ConversationHandler serves the §6A list/load/delete conversation
// operations as thin pass-throughs to their use cases.
type ConversationHandler struct {
	list   *usecase.ListConversationsUseCase
	load   *usecase.LoadConversationUseCase
	delete *usecase.DeleteConversationUseCase
	logger *zap.Logger
}

func NewConversationHandler(
	list *usecase.ListConversationsUseCase,
	load *usecase.LoadConversationUseCase,
	del *usecase.DeleteConversationUseCase,
	logger *zap.Logger,
) *ConversationHandler {
	return &ConversationHandler{list: list, load: load, delete: del, logger: logger}
}

// List handles GET /api/v1/conversations.
func (h *ConversationHandler) List(c *gin.Context) {
	summaries, err := h.list.Execute(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, summaries)
}

// Load handles GET /api/v1/conversations/:id.
func (h *ConversationHandler) Load(c *gin.Context) {
	view, err := h.load.Execute(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"conversation_id": view.ID,
		"title":           view.Title,
		"messages":        view.Turns,
	})
}

// Delete handles DELETE /api/v1/conversations/:id.
func (h *ConversationHandler) Delete(c *gin.Context) {
	if err := h.delete.Execute(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": c.Param("id")})
}
