package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/custodia-labs/agrisearch-core/internal/core/domain"
)

func validClaims(clientID string) *domain.TokenClaims {
	now := time.Now()
	return &domain.TokenClaims{
		ClientID:  clientID,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(time.Hour).Unix(),
	}
}

func TestNewAdapter(t *testing.T) {
	adapter := NewAdapter("test-secret")
	if adapter == nil {
		t.Fatal("expected non-nil adapter")
	}
	if string(adapter.jwtSecret) != "test-secret" {
		t.Error("expected jwt secret to be set")
	}
}

func TestNewAdapterWithCost(t *testing.T) {
	adapter := NewAdapterWithCost("test-secret", 4)
	if adapter.bcryptCost != 4 {
		t.Errorf("expected bcrypt cost 4, got %d", adapter.bcryptCost)
	}
}

func TestHashSecret(t *testing.T) {
	adapter := NewAdapterWithCost("secret", 4) // Low cost for faster tests

	hash, err := adapter.HashSecret("field-office-secret")
	if err != nil {
		t.Fatalf("failed to hash secret: %v", err)
	}
	if hash == "" || hash == "field-office-secret" {
		t.Errorf("unexpected hash %q", hash)
	}
	if !strings.HasPrefix(hash, "$2") {
		t.Errorf("expected bcrypt prefix, got %q", hash)
	}

	again, _ := adapter.HashSecret("field-office-secret")
	if hash == again {
		t.Error("expected different hashes for same secret (due to salt)")
	}
}

func TestVerifySecret(t *testing.T) {
	adapter := NewAdapterWithCost("secret", 4)
	hash, _ := adapter.HashSecret("correct")

	if !adapter.VerifySecret("correct", hash) {
		t.Error("expected verification to succeed")
	}
	if adapter.VerifySecret("wrong", hash) {
		t.Error("expected verification to fail for wrong secret")
	}
	if adapter.VerifySecret("correct", "not-a-valid-hash") {
		t.Error("expected verification to fail for invalid hash")
	}
}

func TestGenerateToken_RequiresClientID(t *testing.T) {
	adapter := NewAdapter("test-jwt-secret")

	if _, err := adapter.GenerateToken(nil); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for nil claims, got %v", err)
	}
	if _, err := adapter.GenerateToken(&domain.TokenClaims{}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for empty client id, got %v", err)
	}
}

func TestGenerateAndParseToken(t *testing.T) {
	adapter := NewAdapter("test-jwt-secret")
	original := validClaims("extension-app")

	token, err := adapter.GenerateToken(original)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	if strings.Count(token, ".") != 2 {
		t.Errorf("expected JWT with 3 parts, got %q", token)
	}

	parsed, err := adapter.ParseToken(token)
	if err != nil {
		t.Fatalf("failed to parse token: %v", err)
	}
	if parsed.ClientID != original.ClientID {
		t.Errorf("expected ClientID %s, got %s", original.ClientID, parsed.ClientID)
	}
	if parsed.ExpiresAt != original.ExpiresAt {
		t.Errorf("expected ExpiresAt %d, got %d", original.ExpiresAt, parsed.ExpiresAt)
	}
	if parsed.IssuedAt != original.IssuedAt {
		t.Errorf("expected IssuedAt %d, got %d", original.IssuedAt, parsed.IssuedAt)
	}
}

func TestParseToken_ExpiredToken(t *testing.T) {
	adapter := NewAdapter("test-jwt-secret")

	past := time.Now().Add(-2 * time.Hour)
	token, _ := adapter.GenerateToken(&domain.TokenClaims{
		ClientID:  "extension-app",
		IssuedAt:  past.Add(-time.Hour).Unix(),
		ExpiresAt: past.Unix(),
	})

	_, err := adapter.ParseToken(token)
	if !errors.Is(err, domain.ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	token, _ := NewAdapter("secret-1").GenerateToken(validClaims("extension-app"))

	_, err := NewAdapter("secret-2").ParseToken(token)
	if !errors.Is(err, domain.ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestParseToken_ForeignIssuer(t *testing.T) {
	claims := jwtClaims{
		ClientID: "extension-app",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	if _, err := NewAdapter("test-secret").ParseToken(token); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestParseToken_MalformedToken(t *testing.T) {
	adapter := NewAdapter("test-secret")

	testCases := []string{
		"",
		"not-a-jwt",
		"invalid.token.here",
		"only.two.parts.missing",
		"header.payload",
	}

	for _, tc := range testCases {
		_, err := adapter.ParseToken(tc)
		if !errors.Is(err, domain.ErrTokenInvalid) {
			t.Errorf("expected ErrTokenInvalid for %q, got %v", tc, err)
		}
	}
}
