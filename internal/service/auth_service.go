package service

import (
	"crypto/subtle"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/pepschool/asset-insight-api/internal/models"
	appErrors "github.com/pepschool/asset-insight-api/pkg/errors"
)

// AuthConfig defines the access-key pools and token parameters. Keys may be
// stored as bcrypt hashes (prefixed "$2") or as plain values for development.
type AuthConfig struct {
	Secret            string
	Expiration        time.Duration
	ManagementKey     string
	ElementaryKey     string
	MiddleKey         string
	ElementaryClasses []string
	MiddleClasses     []string
}

// AuthService exchanges shared access keys for role-scoped JWTs.
type AuthService struct {
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.Expiration <= 0 {
		config.Expiration = 24 * time.Hour
	}
	return &AuthService{validator: validate, logger: logger, config: config}
}

// Login resolves the access key to a role and issues a scoped token.
func (s *AuthService) Login(req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	role, allowed, ok := s.resolveKey(req.AccessKey)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid access key")
	}

	token, issuedAt, err := s.generateAccessToken(role, allowed)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}

	s.logger.Info("access key accepted", zap.String("role", string(role)))

	return &models.LoginResponse{
		AccessToken:    token,
		ExpiresIn:      int64(s.config.Expiration.Seconds()),
		Role:           role,
		AllowedClasses: allowed,
		IssuedAt:       issuedAt,
	}, nil
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "unexpected signing method")
		}
		return []byte(s.config.Secret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}

	return claims, nil
}

func (s *AuthService) resolveKey(key string) (models.Role, []string, bool) {
	switch {
	case keyMatches(s.config.ManagementKey, key):
		return models.RoleManagement, nil, true
	case keyMatches(s.config.ElementaryKey, key):
		return models.RoleElementary, s.config.ElementaryClasses, true
	case keyMatches(s.config.MiddleKey, key):
		return models.RoleMiddle, s.config.MiddleClasses, true
	}
	return "", nil, false
}

func keyMatches(configured, presented string) bool {
	if configured == "" {
		return false
	}
	if len(configured) > 1 && configured[:2] == "$2" {
		return bcrypt.CompareHashAndPassword([]byte(configured), []byte(presented)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(configured), []byte(presented)) == 1
}

func (s *AuthService) generateAccessToken(role models.Role, allowed []string) (string, time.Time, error) {
	issuedAt := time.Now().UTC()
	expiresAt := issuedAt.Add(s.config.Expiration)
	claims := &models.JWTClaims{
		Role:           role,
		AllowedClasses: allowed,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   string(role),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, issuedAt, nil
}
