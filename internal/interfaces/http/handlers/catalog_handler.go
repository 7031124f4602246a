package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kubeagent/core/internal/application/usecase"
)

// CatalogHandler serves the §6A list-pending, list-history, and list-tools
// operations as thin pass-throughs to their use cases.
type CatalogHandler struct {
	pending *usecase.ListPendingUseCase
	history *usecase.ListHistoryUseCase
	tools   *usecase.ListToolsUseCase
	logger  *zap.Logger
}

func NewCatalogHandler(
	pending *usecase.ListPendingUseCase,
	history *usecase.ListHistoryUseCase,
	tools *usecase.ListToolsUseCase,
	logger *zap.Logger,
) *CatalogHandler {
	return &CatalogHandler{pending: pending, history: history, tools: tools, logger: logger}
}

// ListPending handles GET /api/v1/pending.
func (h *CatalogHandler) ListPending(c *gin.Context) {
	items, err := h.pending.Execute(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// ListHistory handles GET /api/v1/history.
func (h *CatalogHandler) ListHistory(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	records, err := h.history.Execute(c.Request.Context(), limit)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// ListTools handles GET /api/v1/tools.
func (h *CatalogHandler) ListTools(c *gin.Context) {
	c.JSON(http.StatusOK, h.tools.Execute(c.Request.Context()))
}
