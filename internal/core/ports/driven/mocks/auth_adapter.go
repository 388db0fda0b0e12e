package mocks

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/custodia-labs/agrisearch-core/internal/core/domain"
)

// MockAuthAdapter is a mock implementation of AuthAdapter for testing.
// Hashes are "hashed:" + secret; tokens are "token:" + JSON claims.
type MockAuthAdapter struct {
	generateErr error
}

// NewMockAuthAdapter creates a new MockAuthAdapter
func NewMockAuthAdapter() *MockAuthAdapter {
	return &MockAuthAdapter{}
}

func (m *MockAuthAdapter) HashSecret(secret string) (string, error) {
	return "hashed:" + secret, nil
}

func (m *MockAuthAdapter) VerifySecret(secret, hash string) bool {
	return hash == "hashed:"+secret
}

func (m *MockAuthAdapter) GenerateToken(claims *domain.TokenClaims) (string, error) {
	if m.generateErr != nil {
		return "", m.generateErr
	}
	data, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	return "token:" + string(data), nil
}

func (m *MockAuthAdapter) ParseToken(token string) (*domain.TokenClaims, error) {
	raw, ok := strings.CutPrefix(token, "token:")
	if !ok {
		return nil, errors.New("malformed token")
	}
	var claims domain.TokenClaims
	if err := json.Unmarshal([]byte(raw), &claims); err != nil {
		return nil, err
	}
	return &claims, nil
}

// Helper methods for testing

func (m *MockAuthAdapter) SetGenerateError(err error) {
	m.generateErr = err
}
