package domain

import (
	"errors"
	"fmt"
)

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrTokenExpired indicates the auth token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid indicates the auth token is malformed or invalid
	ErrTokenInvalid = errors.New("token invalid")

	// ErrInvalidCredentials indicates a wrong client id/secret combination
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidProvider indicates an unknown AI or search provider was specified
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrServiceUnavailable indicates no language model backend could be reached
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrRetrieval indicates one retrieval source failed for one sub-query
	ErrRetrieval = errors.New("retrieval failed")

	// ErrGeneration indicates a single language model call failed or timed out
	ErrGeneration = errors.New("generation failed")

	// ErrNoSourcesEnabled indicates both the local store and web search were disabled
	ErrNoSourcesEnabled = errors.New("at least one evidence source must be enabled")

	// ErrAllAgentsFailed indicates every agent of a multi-agent dispatch failed
	ErrAllAgentsFailed = fmt.Errorf("all agents failed: %w", ErrServiceUnavailable)
)

// RetrievalError wraps a retrieval failure with the source and sub-query it came from.
type RetrievalError struct {
	Source   SourceKind
	SubQuery string
	Err      error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("%s retrieval for %q: %v", e.Source, e.SubQuery, e.Err)
}

// Unwrap returns the underlying cause
func (e *RetrievalError) Unwrap() error {
	return e.Err
}

// Is reports ErrRetrieval for every RetrievalError
func (e *RetrievalError) Is(target error) bool {
	return target == ErrRetrieval
}

// NewRetrievalError creates a RetrievalError
func NewRetrievalError(source SourceKind, subQuery string, err error) *RetrievalError {
	return &RetrievalError{Source: source, SubQuery: subQuery, Err: err}
}
