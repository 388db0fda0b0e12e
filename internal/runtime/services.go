package runtime

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/agrisearch-core/internal/core/domain"
	"github.com/custodia-labs/agrisearch-core/internal/core/ports/driven"
)

// Ensure Services resolves agent endpoints
var _ driven.GeneratorResolver = (*Services)(nil)

// Services holds references to dynamically configurable text generators.
// The primary generator serves refinement, sub-queries and synthesis;
// agent generators are keyed by endpoint for multi-agent dispatch.
// Thread-safe for concurrent access.
type Services struct {
	mu sync.RWMutex

	// Config tracks capability flags
	config *domain.RuntimeConfig

	// Dynamic services (can be nil, updated at runtime)
	generator driven.TextGenerator
	agents    map[string]driven.TextGenerator
}

// NewServices creates a new Services registry
func NewServices(config *domain.RuntimeConfig) *Services {
	return &Services{
		config: config,
		agents: make(map[string]driven.TextGenerator),
	}
}

// Config returns the runtime configuration
func (s *Services) Config() *domain.RuntimeConfig {
	return s.config
}

// Generator returns the current primary generator (may be nil)
func (s *Services) Generator() driven.TextGenerator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generator
}

// SetGenerator updates the primary generator.
// Closes the old generator if present. Updates config flags.
func (s *Services) SetGenerator(gen driven.TextGenerator) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generator != nil && s.generator != gen {
		_ = s.generator.Close()
	}

	s.generator = gen
	s.config.SetGeneratorAvailable(gen != nil)
}

// ValidateAndSetGenerator pings the generator before making it primary
func (s *Services) ValidateAndSetGenerator(ctx context.Context, gen driven.TextGenerator) error {
	if gen == nil {
		s.SetGenerator(nil)
		return nil
	}

	if err := gen.Ping(ctx); err != nil {
		_ = gen.Close()
		return err
	}

	s.SetGenerator(gen)
	return nil
}

// AgentGenerator returns the generator registered for endpoint (may be nil)
func (s *Services) AgentGenerator(endpoint string) driven.TextGenerator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.agents[endpoint]
}

// SetAgentGenerator registers a generator for an agent endpoint.
// A nil generator removes the endpoint.
func (s *Services) SetAgentGenerator(endpoint string, gen driven.TextGenerator) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.agents[endpoint]; ok && old != gen {
		_ = old.Close()
	}
	if gen == nil {
		delete(s.agents, endpoint)
		return
	}
	s.agents[endpoint] = gen
}

// AgentEndpoints returns the registered agent endpoints in sorted order
func (s *Services) AgentEndpoints() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	endpoints := make([]string, 0, len(s.agents))
	for ep := range s.agents {
		endpoints = append(endpoints, ep)
	}
	sort.Strings(endpoints)
	return endpoints
}

// Close shuts down all generators
func (s *Services) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generator != nil {
		_ = s.generator.Close()
		s.generator = nil
	}
	for ep, gen := range s.agents {
		_ = gen.Close()
		delete(s.agents, ep)
	}

	s.config.SetGeneratorAvailable(false)
	return nil
}
