package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/pepschool/asset-insight-api/internal/models"
	appErrors "github.com/pepschool/asset-insight-api/pkg/errors"
	"github.com/pepschool/asset-insight-api/pkg/response"
)

type authService interface {
	Login(req models.LoginRequest) (*models.LoginResponse, error)
}

// AuthHandler exposes the access-key login endpoint.
type AuthHandler struct {
	service authService
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(service authService) *AuthHandler {
	return &AuthHandler{service: service}
}

// Login godoc
// @Summary Exchange an access key for a scoped token
// @Tags Auth
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Access key"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}
	resp, err := h.service.Login(req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, resp)
}
