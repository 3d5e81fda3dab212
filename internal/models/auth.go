package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RegisterRequest creates a professor account.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	FullName string `json:"full_name" validate:"required"`
}

// LoginRequest holds credentials for authenticating a professor.
type LoginRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// LoginResponse returns the issued tokens and account info.
type LoginResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	ExpiresIn    int64         `json:"expires_in"`
	Professor    ProfessorInfo `json:"professor"`
	IssuedAt     time.Time     `json:"issued_at"`
}

// RefreshTokenRequest exchanges a refresh token for a new access token.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
	IP           string `json:"-"`
	UserAgent    string `json:"-"`
}

// RefreshTokenResponse returns the refreshed tokens.
type RefreshTokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	IssuedAt     time.Time `json:"issued_at"`
}

// ProfessorInfo describes the authenticated professor in responses.
type ProfessorInfo struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

// RefreshToken is a persisted opaque refresh token.
type RefreshToken struct {
	ID          string     `db:"id" json:"id"`
	ProfessorID string     `db:"professor_id" json:"professor_id"`
	Token       string     `db:"token" json:"-"`
	ExpiresAt   time.Time  `db:"expires_at" json:"expires_at"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	Revoked     bool       `db:"revoked" json:"revoked"`
	RevokedAt   *time.Time `db:"revoked_at" json:"revoked_at,omitempty"`
	IPAddress   string     `db:"ip_address" json:"-"`
	UserAgent   string     `db:"user_agent" json:"-"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	ProfessorID string `json:"professor_id"`
	Email       string `json:"email"`
	FullName    string `json:"full_name"`
	jwt.RegisteredClaims
}
