package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role scopes which class sections a caller may see.
type Role string

const (
	RoleManagement Role = "management"
	RoleElementary Role = "elementary"
	RoleMiddle     Role = "middle"
)

// LoginRequest exchanges an access key for a scoped token.
type LoginRequest struct {
	AccessKey string `json:"access_key" validate:"required"`
}

// LoginResponse returns the issued token and visibility scope.
type LoginResponse struct {
	AccessToken    string    `json:"access_token"`
	ExpiresIn      int64     `json:"expires_in"`
	Role           Role      `json:"role"`
	AllowedClasses []string  `json:"allowed_classes"`
	IssuedAt       time.Time `json:"issued_at"`
}

// JWTClaims represents the JWT payload for access tokens. AllowedClasses
// is empty for management, meaning every class is visible.
type JWTClaims struct {
	Role           Role     `json:"role"`
	AllowedClasses []string `json:"allowed_classes,omitempty"`
	jwt.RegisteredClaims
}

// CanSee reports whether the claims grant visibility of a class section.
func (c *JWTClaims) CanSee(classSection string) bool {
	if c.Role == RoleManagement || len(c.AllowedClasses) == 0 {
		return true
	}
	for _, cls := range c.AllowedClasses {
		if cls == classSection {
			return true
		}
	}
	return false
}
