package driving

import (
	"context"

	"github.com/custodia-labs/agrisearch-core/internal/core/domain"
)

// AuthService authenticates API clients
type AuthService interface {
	// IssueToken exchanges client credentials for a bearer token
	IssueToken(ctx context.Context, req domain.TokenRequest) (*domain.TokenResponse, error)

	// ValidateToken validates a bearer token and returns the auth context
	ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error)
}
