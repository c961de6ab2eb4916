package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quote-sync/internal/adapters/http/dto"
	"github.com/jsamuelsen/quote-sync/internal/app"
)

// SyncHandler exposes manual sync and its status.
type SyncHandler struct {
	service *app.SyncService
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(service *app.SyncService) *SyncHandler {
	return &SyncHandler{service: service}
}

// syncResponse pairs the pass report with the status line it produced.
type syncResponse struct {
	Status string          `json:"status"`
	Report *app.SyncReport `json:"report"`
}

// TriggerSync handles POST /api/v1/sync. It waits for a scheduled pass that
// is already running, then runs its own.
//
// @Summary Run a sync now
// @Tags sync
// @Produce json
// @Success 200 {object} syncResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /api/v1/sync [post]
func (h *SyncHandler) TriggerSync(c *gin.Context) {
	ctx := c.Request.Context()

	report, err := h.service.Sync(ctx)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, syncResponse{
		Status: app.StatusComplete,
		Report: report,
	})
}

// SyncStatus handles GET /api/v1/sync/status.
func (h *SyncHandler) SyncStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Status(c.Request.Context()))
}

// RegisterSyncRoutes registers sync routes on the given router group.
func (h *SyncHandler) RegisterSyncRoutes(rg *gin.RouterGroup) {
	rg.POST("/sync", h.TriggerSync)
	rg.GET("/sync/status", h.SyncStatus)
}
