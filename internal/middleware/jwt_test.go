package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pepschool/asset-insight-api/internal/models"
	"github.com/pepschool/asset-insight-api/internal/service"
)

func newJWTTestRouter(t *testing.T) (*gin.Engine, *service.AuthService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	authSvc := service.NewAuthService(validator.New(), zap.NewNop(), service.AuthConfig{
		Secret:        "middleware-test-secret",
		Expiration:    time.Hour,
		ManagementKey: "mgmt-key",
		MiddleKey:     "middle-key",
		MiddleClasses: []string{"6-A", "7-A", "8-A"},
	})

	r := gin.New()
	protected := r.Group("", JWT(authSvc))
	protected.GET("/whoami", func(c *gin.Context) {
		claims := c.MustGet(ContextUserKey).(*models.JWTClaims)
		c.JSON(http.StatusOK, gin.H{"role": claims.Role})
	})
	protected.POST("/admin", RequireRoles(models.RoleManagement), func(c *gin.Context) {
		c.Status(http.StatusAccepted)
	})
	return r, authSvc
}

func loginToken(t *testing.T, authSvc *service.AuthService, key string) string {
	t.Helper()
	resp, err := authSvc.Login(models.LoginRequest{AccessKey: key})
	require.NoError(t, err)
	return resp.AccessToken
}

func TestJWTRejectsMissingHeader(t *testing.T) {
	r, _ := newJWTTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTRejectsMalformedHeader(t *testing.T) {
	r, _ := newJWTTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Token abc")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTAttachesClaims(t *testing.T) {
	r, authSvc := newJWTTestRouter(t)
	token := loginToken(t, authSvc, "middle-key")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), string(models.RoleMiddle))
}

func TestRequireRolesBlocksOutsideRole(t *testing.T) {
	r, authSvc := newJWTTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+loginToken(t, authSvc, "middle-key"))
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+loginToken(t, authSvc, "mgmt-key"))
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusAccepted, w.Code)
}
