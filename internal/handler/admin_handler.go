package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pepschool/asset-insight-api/internal/models"
	"github.com/pepschool/asset-insight-api/internal/service"
	"github.com/pepschool/asset-insight-api/pkg/response"
)

type refreshService interface {
	Refresh() (string, error)
}

// AdminHandler serves management-only operational endpoints.
type AdminHandler struct {
	refresh refreshService
	metrics *service.MetricsService
}

// NewAdminHandler constructs the handler.
func NewAdminHandler(refresh refreshService, metrics *service.MetricsService) *AdminHandler {
	return &AdminHandler{refresh: refresh, metrics: metrics}
}

// Refresh godoc
// @Summary Re-ingest source data and recompute the document
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 202 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /refresh [post]
func (h *AdminHandler) Refresh(c *gin.Context) {
	jobID, err := h.refresh.Refresh()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, gin.H{"job_id": jobID, "status": "queued"})
}

// SystemMetrics godoc
// @Summary Aggregated runtime metrics snapshot
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /system/metrics [get]
func (h *AdminHandler) SystemMetrics(c *gin.Context) {
	var snapshot models.SystemMetrics
	if h.metrics != nil {
		snapshot = h.metrics.Snapshot()
	}
	response.OK(c, snapshot)
}
