package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pepschool/asset-insight-api/internal/middleware"
	"github.com/pepschool/asset-insight-api/internal/models"
	"github.com/pepschool/asset-insight-api/pkg/response"
)

type documentService interface {
	HasDocument() bool
	DocumentFor(ctx context.Context, claims *models.JWTClaims) (*models.SchoolDocument, error)
	Report(ctx context.Context, claims *models.JWTClaims, classSection, subject string) (*models.ClassSubjectReport, error)
}

// DocumentHandler serves the assembled school document and its per-partition
// reports.
type DocumentHandler struct {
	service documentService
}

// NewDocumentHandler constructs the handler.
func NewDocumentHandler(service documentService) *DocumentHandler {
	return &DocumentHandler{service: service}
}

// Document godoc
// @Summary Complete school analysis document scoped to the caller
// @Tags Document
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /document [get]
func (h *DocumentHandler) Document(c *gin.Context) {
	claims := claimsFromContext(c)
	start := time.Now()
	memoized := h.service.HasDocument()
	doc, err := h.service.DocumentFor(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, memoized)
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = map[string]interface{}{}
	}
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	meta["dataset_hash"] = doc.DatasetHash
	response.OK(c, doc, meta)
}

// Report godoc
// @Summary Single class and subject report
// @Tags Document
// @Produce json
// @Security BearerAuth
// @Param class path string true "Class section, e.g. 6-A"
// @Param subject path string true "Subject name"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /reports/{class}/{subject} [get]
func (h *DocumentHandler) Report(c *gin.Context) {
	claims := claimsFromContext(c)
	report, err := h.service.Report(c.Request.Context(), claims, c.Param("class"), c.Param("subject"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, report)
}
