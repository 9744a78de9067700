package handlers

import (
	"context"

	"github.com/odinbook/backend/internal/auth"
	"github.com/odinbook/backend/internal/content"
	"github.com/odinbook/backend/internal/middleware"
	"github.com/odinbook/backend/internal/models"
	"github.com/odinbook/backend/internal/relations"
)

// CredentialVerifier checks log-in attempts.
type CredentialVerifier interface {
	Verify(ctx context.Context, login auth.Login) (models.User, error)
}

// TokenIssuer signs and verifies session tokens.
type TokenIssuer interface {
	Issue(user models.User) (string, error)
	Verify(token string) (models.UserProjection, error)
}

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Content     *content.Service
	Relations   *relations.Protocol
	Credentials CredentialVerifier
	Tokens      TokenIssuer

	// LoginLimiter guards log-in and sign-up. Nil disables limiting.
	LoginLimiter   middleware.RateLimiter
	MaxUploadBytes int64
}
