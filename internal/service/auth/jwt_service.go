package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
)

// JWTService defines operations for managing JWT authentication tokens.
// Tokens identify the acting user, their company and their role.
type JWTService interface {
	// GenerateToken creates a signed JWT access token for the actor.
	// Returns the token string or an error if token generation fails.
	GenerateToken(ctx context.Context, actor domain.Actor) (string, error)

	// ValidateToken validates the provided access token string and extracts the claims.
	// Returns the claims if the token is valid, or an error if validation
	// fails (expired, invalid signature, missing claims, etc.).
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims represents the custom claims structure for the JWT tokens.
type Claims struct {
	// UserID is the unique identifier of the user the token was issued for.
	UserID uuid.UUID `json:"uid,omitempty"`

	// CompanyID scopes every operation of the token holder.
	CompanyID uuid.UUID `json:"cid,omitempty"`

	// Role is the holder's role within the company.
	Role domain.Role `json:"role,omitempty"`

	// Standard registered JWT claims
	Subject   string    `json:"sub,omitempty"`
	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
	ID        string    `json:"jti,omitempty"`
}

// Actor returns the engine actor described by the claims.
func (c *Claims) Actor() domain.Actor {
	return domain.Actor{
		UserID:    c.UserID,
		CompanyID: c.CompanyID,
		Role:      c.Role,
	}
}
