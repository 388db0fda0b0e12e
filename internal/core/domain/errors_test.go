package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		msg  string
	}{
		{"ErrNotFound", ErrNotFound, "not found"},
		{"ErrInvalidInput", ErrInvalidInput, "invalid input"},
		{"ErrUnauthorized", ErrUnauthorized, "unauthorized"},
		{"ErrTokenExpired", ErrTokenExpired, "token expired"},
		{"ErrTokenInvalid", ErrTokenInvalid, "token invalid"},
		{"ErrInvalidCredentials", ErrInvalidCredentials, "invalid credentials"},
		{"ErrServiceUnavailable", ErrServiceUnavailable, "service unavailable"},
		{"ErrRetrieval", ErrRetrieval, "retrieval failed"},
		{"ErrGeneration", ErrGeneration, "generation failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.msg {
				t.Errorf("expected %q, got %q", tt.msg, tt.err.Error())
			}
		})
	}
}

func TestErrorsAreDistinct(t *testing.T) {
	allErrors := []error{
		ErrNotFound,
		ErrInvalidInput,
		ErrUnauthorized,
		ErrTokenExpired,
		ErrTokenInvalid,
		ErrInvalidCredentials,
		ErrInvalidProvider,
		ErrServiceUnavailable,
		ErrRetrieval,
		ErrGeneration,
		ErrNoSourcesEnabled,
	}

	for i, err1 := range allErrors {
		for j, err2 := range allErrors {
			if i != j && errors.Is(err1, err2) {
				t.Errorf("errors should be distinct: %v and %v", err1, err2)
			}
		}
	}
}

func TestErrAllAgentsFailed_IsServiceUnavailable(t *testing.T) {
	if !errors.Is(ErrAllAgentsFailed, ErrServiceUnavailable) {
		t.Error("expected ErrAllAgentsFailed to match ErrServiceUnavailable")
	}
}

func TestRetrievalError(t *testing.T) {
	cause := fmt.Errorf("dial tcp: connection refused")
	err := NewRetrievalError(SourceKindWeb, "rice blast", cause)

	if !errors.Is(err, ErrRetrieval) {
		t.Error("expected RetrievalError to match ErrRetrieval")
	}
	if !errors.Is(err, cause) {
		t.Error("expected RetrievalError to unwrap to its cause")
	}

	wrapped := fmt.Errorf("aggregate: %w", err)
	var re *RetrievalError
	if !errors.As(wrapped, &re) {
		t.Fatal("expected errors.As to find RetrievalError")
	}
	if re.Source != SourceKindWeb {
		t.Errorf("expected source web, got %s", re.Source)
	}
	if re.Error() != `web retrieval for "rice blast": dial tcp: connection refused` {
		t.Errorf("unexpected message: %s", re.Error())
	}
}
