package domain

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	TokenType    string    `json:"token_type"`
}

// Claims carry the principal's login scope so a token minted for one
// portal is rejected by the access check on another.
type Claims struct {
	jwt.RegisteredClaims
	UserID    uuid.UUID  `json:"uid"`
	Email     string     `json:"email,omitempty"`
	Role      Role       `json:"role,omitempty"`
	Internal  bool       `json:"internal,omitempty"`
	Subdomain string     `json:"subdomain,omitempty"`
	Portal    string     `json:"portal,omitempty"`
	SessionID *uuid.UUID `json:"sid,omitempty"`
	TokenType string     `json:"type"`
}
