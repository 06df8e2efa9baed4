package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/pepschool/asset-insight-api/internal/models"
	"github.com/pepschool/asset-insight-api/pkg/response"
)

type findingsService interface {
	AtRisk(ctx context.Context, claims *models.JWTClaims) ([]models.AtRiskFinding, error)
	Weaknesses(ctx context.Context) ([]models.WeaknessFinding, error)
	Anomalies(ctx context.Context, claims *models.JWTClaims) ([]models.AnomalyFinding, error)
}

// FindingsHandler serves the derived finding collections.
type FindingsHandler struct {
	service findingsService
}

// NewFindingsHandler constructs the handler.
func NewFindingsHandler(service findingsService) *FindingsHandler {
	return &FindingsHandler{service: service}
}

// AtRisk godoc
// @Summary Students failing two or more subjects
// @Tags Findings
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /findings/at-risk [get]
func (h *FindingsHandler) AtRisk(c *gin.Context) {
	findings, err := h.service.AtRisk(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, findings)
}

// Weaknesses godoc
// @Summary Skills weak across multiple grades
// @Tags Findings
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /findings/weaknesses [get]
func (h *FindingsHandler) Weaknesses(c *gin.Context) {
	findings, err := h.service.Weaknesses(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, findings)
}

// Anomalies godoc
// @Summary Students with unusual skill profiles
// @Tags Findings
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /findings/anomalies [get]
func (h *FindingsHandler) Anomalies(c *gin.Context) {
	findings, err := h.service.Anomalies(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, findings)
}
