package services

import (
	"context"
	"time"

	"github.com/custodia-labs/agrisearch-core/internal/core/domain"
	"github.com/custodia-labs/agrisearch-core/internal/core/ports/driven"
	"github.com/custodia-labs/agrisearch-core/internal/core/ports/driving"
)

// Ensure authService implements AuthService
var _ driving.AuthService = (*authService)(nil)

// DefaultTokenTTL is the lifetime of issued client tokens
const DefaultTokenTTL = 24 * time.Hour

// authService implements the AuthService interface
type authService struct {
	authAdapter driven.AuthAdapter
	clients     map[string]string // client id -> bcrypt secret hash
	tokenTTL    time.Duration
}

// NewAuthService creates a new AuthService for the given clients
func NewAuthService(authAdapter driven.AuthAdapter, clients map[string]string, tokenTTL time.Duration) driving.AuthService {
	if tokenTTL <= 0 {
		tokenTTL = DefaultTokenTTL
	}
	copied := make(map[string]string, len(clients))
	for id, hash := range clients {
		copied[id] = hash
	}
	return &authService{
		authAdapter: authAdapter,
		clients:     copied,
		tokenTTL:    tokenTTL,
	}
}

// IssueToken validates client credentials and issues a bearer token
func (s *authService) IssueToken(ctx context.Context, req domain.TokenRequest) (*domain.TokenResponse, error) {
	// Validate input
	if req.ClientID == "" || req.ClientSecret == "" {
		return nil, domain.ErrInvalidInput
	}

	hash, ok := s.clients[req.ClientID]
	if !ok {
		return nil, domain.ErrInvalidCredentials
	}

	// Verify secret
	if !s.authAdapter.VerifySecret(req.ClientSecret, hash) {
		return nil, domain.ErrInvalidCredentials
	}

	now := time.Now()
	expiresAt := now.Add(s.tokenTTL)
	claims := &domain.TokenClaims{
		ClientID:  req.ClientID,
		IssuedAt:  now.Unix(),
		ExpiresAt: expiresAt.Unix(),
	}

	token, err := s.authAdapter.GenerateToken(claims)
	if err != nil {
		return nil, err
	}

	return &domain.TokenResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresAt: expiresAt,
	}, nil
}

// ValidateToken validates a JWT token and returns the auth context
func (s *authService) ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error) {
	if token == "" {
		return nil, domain.ErrTokenInvalid
	}

	// Parse and validate JWT
	claims, err := s.authAdapter.ParseToken(token)
	if err != nil {
		return nil, domain.ErrTokenInvalid
	}

	// Check expiration
	if claims.IsExpired() {
		return nil, domain.ErrTokenExpired
	}

	// Clients removed from config lose access immediately
	if _, ok := s.clients[claims.ClientID]; !ok {
		return nil, domain.ErrUnauthorized
	}

	return &domain.AuthContext{
		ClientID:  claims.ClientID,
		ExpiresAt: time.Unix(claims.ExpiresAt, 0),
	}, nil
}
