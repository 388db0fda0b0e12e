package driving

import (
	"context"

	"github.com/custodia-labs/agrisearch-core/internal/core/domain"
)

// AgentService dispatches a query to several role-specialised agents
type AgentService interface {
	// Dispatch runs every agent concurrently and returns one response per config, in config order.
	// Returns domain.ErrAllAgentsFailed if no agent succeeded.
	Dispatch(ctx context.Context, query string, configs []domain.AgentConfig) ([]domain.AgentResponse, error)

	// Consult dispatches and merges the agent outputs into one answer
	Consult(ctx context.Context, query string, configs []domain.AgentConfig, mode domain.MergeMode) (*domain.MultiAgentResult, error)

	// DefaultAgents returns the configured agent line-up
	DefaultAgents() []domain.AgentConfig
}
