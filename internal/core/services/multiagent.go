package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/agrisearch-core/internal/core/domain"
	"github.com/custodia-labs/agrisearch-core/internal/core/ports/driven"
	"github.com/custodia-labs/agrisearch-core/internal/core/ports/driving"
)

// Ensure multiAgentCoordinator implements AgentService
var _ driving.AgentService = (*multiAgentCoordinator)(nil)

// roleSearchSuffixes narrow an agent's web searches to its specialty
var roleSearchSuffixes = map[domain.AgentRole][]string{
	domain.AgentRoleCropSpecialist:    {"crop management best practices", "varieties yield cultivation"},
	domain.AgentRoleDiseaseExpert:     {"plant disease pest diagnosis", "treatment integrated pest management"},
	domain.AgentRoleEconomicsAnalyst:  {"market price economics", "farm profitability cost analysis"},
	domain.AgentRoleClimateResearcher: {"climate impact weather", "climate adaptation strategies"},
	domain.AgentRoleTechnologyAdvisor: {"agricultural technology innovation", "precision farming tools"},
	domain.AgentRolePolicyAnalyst:     {"agricultural policy government scheme", "regulations subsidies farmers"},
}

// MultiAgentConfig tunes the multi-agent fan-out
type MultiAgentConfig struct {
	// SearchesPerAgent is the number of enhanced web queries per agent
	SearchesPerAgent int

	// ResultsPerAgent caps the deduplicated web results given to an agent
	ResultsPerAgent int

	// AgentTimeout bounds one agent including its searches
	AgentTimeout time.Duration

	Temperature float64
}

// DefaultMultiAgentConfig returns the default fan-out settings
func DefaultMultiAgentConfig() MultiAgentConfig {
	return MultiAgentConfig{
		SearchesPerAgent: 2,
		ResultsPerAgent:  5,
		AgentTimeout:     60 * time.Second,
		Temperature:      0.3,
	}
}

// multiAgentCoordinator implements AgentService
type multiAgentCoordinator struct {
	resolver driven.GeneratorResolver
	search   driven.WebSearchProvider
	merger   *AnswerSynthesizer
	agents   []domain.AgentConfig
	config   MultiAgentConfig
	logger   *slog.Logger
}

// NewMultiAgentCoordinator creates an AgentService.
// search may be nil to run agents without web grounding; merger may be nil,
// in which case concise merges degrade to detailed output.
func NewMultiAgentCoordinator(
	resolver driven.GeneratorResolver,
	search driven.WebSearchProvider,
	merger *AnswerSynthesizer,
	agents []domain.AgentConfig,
	config MultiAgentConfig,
	logger *slog.Logger,
) driving.AgentService {
	defaults := DefaultMultiAgentConfig()
	if config.SearchesPerAgent <= 0 {
		config.SearchesPerAgent = defaults.SearchesPerAgent
	}
	if config.ResultsPerAgent <= 0 {
		config.ResultsPerAgent = defaults.ResultsPerAgent
	}
	if config.AgentTimeout <= 0 {
		config.AgentTimeout = defaults.AgentTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &multiAgentCoordinator{
		resolver: resolver,
		search:   search,
		merger:   merger,
		agents:   append([]domain.AgentConfig(nil), agents...),
		config:   config,
		logger:   logger,
	}
}

// DefaultAgents returns the configured agent line-up
func (c *multiAgentCoordinator) DefaultAgents() []domain.AgentConfig {
	return append([]domain.AgentConfig(nil), c.agents...)
}

// Dispatch runs every agent concurrently. Agent failures are isolated;
// only when all agents fail is domain.ErrAllAgentsFailed returned.
func (c *multiAgentCoordinator) Dispatch(ctx context.Context, query string, configs []domain.AgentConfig) ([]domain.AgentResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", domain.ErrInvalidInput)
	}
	if len(configs) == 0 {
		configs = c.agents
	}
	if len(configs) == 0 {
		return nil, fmt.Errorf("%w: no agents configured", domain.ErrInvalidInput)
	}
	for _, cfg := range configs {
		if !cfg.Role.IsValid() {
			return nil, fmt.Errorf("%w: unknown agent role %q", domain.ErrInvalidInput, cfg.Role)
		}
	}

	responses := make([]domain.AgentResponse, len(configs))
	var g errgroup.Group
	for i, cfg := range configs {
		g.Go(func() error {
			responses[i] = c.runAgent(ctx, query, cfg)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range responses {
		if !r.Succeeded {
			failed++
		}
	}
	c.logger.Info("multi-agent dispatch complete", "agents", len(responses), "failed", failed)

	if failed == len(responses) {
		return responses, domain.ErrAllAgentsFailed
	}
	return responses, nil
}

// runAgent performs one agent's searches and generation under its own timeout
func (c *multiAgentCoordinator) runAgent(ctx context.Context, query string, cfg domain.AgentConfig) domain.AgentResponse {
	start := time.Now()
	resp := domain.AgentResponse{
		Role:       cfg.Role,
		EndpointID: cfg.Endpoint,
		Citations:  []string{},
	}

	agentCtx, cancel := context.WithTimeout(ctx, c.config.AgentTimeout)
	defer cancel()

	fail := func(err error) domain.AgentResponse {
		c.logger.Warn("agent failed", "role", string(cfg.Role), "endpoint", cfg.Endpoint, "error", err)
		resp.Error = err.Error()
		resp.Duration = time.Since(start)
		return resp
	}

	var generator driven.TextGenerator
	if c.resolver != nil {
		generator = c.resolver.AgentGenerator(cfg.Endpoint)
	}
	if generator == nil {
		return fail(fmt.Errorf("%w: no generator for endpoint %q", domain.ErrServiceUnavailable, cfg.Endpoint))
	}

	results := c.searchForAgent(agentCtx, query, cfg.Role)
	resp.SearchResults = results

	answer, err := generator.Generate(agentCtx, buildAgentPrompt(query, cfg.Role, results), driven.GenerateOptions{
		Model:       cfg.Model,
		System:      cfg.Role.SystemPrompt(),
		Temperature: c.config.Temperature,
		Timeout:     c.config.AgentTimeout,
	})
	if err != nil {
		return fail(err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return fail(fmt.Errorf("%w: empty response", domain.ErrGeneration))
	}

	resp.AnswerText = answer
	resp.Citations = agentCitations(answer, results)
	resp.Succeeded = true
	resp.Duration = time.Since(start)
	return resp
}

// searchForAgent runs the role-enhanced searches, deduplicated by URL
func (c *multiAgentCoordinator) searchForAgent(ctx context.Context, query string, role domain.AgentRole) []domain.WebResult {
	if c.search == nil {
		return nil
	}

	seen := make(map[string]bool)
	var results []domain.WebResult
	for _, q := range EnhancedQueries(query, role, c.config.SearchesPerAgent) {
		found, err := c.search.Search(ctx, q, c.config.ResultsPerAgent)
		if err != nil {
			c.logger.Debug("agent web search failed", "role", string(role), "query", q, "error", err)
			continue
		}
		for _, r := range found {
			if r.URL == "" || seen[r.URL] {
				continue
			}
			seen[r.URL] = true
			results = append(results, r)
		}
	}

	if len(results) > c.config.ResultsPerAgent {
		results = results[:c.config.ResultsPerAgent]
	}
	return results
}

// Consult dispatches and merges the agent outputs
func (c *multiAgentCoordinator) Consult(ctx context.Context, query string, configs []domain.AgentConfig, mode domain.MergeMode) (*domain.MultiAgentResult, error) {
	if mode == "" {
		mode = domain.MergeModeDetailed
	}
	if !mode.IsValid() {
		return nil, fmt.Errorf("%w: unknown merge mode %q", domain.ErrInvalidInput, mode)
	}

	start := time.Now()
	responses, err := c.Dispatch(ctx, query, configs)
	if err != nil {
		return nil, err
	}

	citations := MergeAgentCitations(responses)
	failed := 0
	for _, r := range responses {
		if !r.Succeeded {
			failed++
		}
	}

	var answer string
	switch mode {
	case domain.MergeModeConcise:
		answer, err = c.conciseMerge(ctx, query, responses)
		if err != nil {
			c.logger.Warn("concise merge failed, returning detailed analysis", "error", err)
			answer = DetailedMerge(query, responses, citations)
		} else if len(citations) > 0 {
			answer += "\n\n" + formatSources(citations)
		}
	default:
		answer = DetailedMerge(query, responses, citations)
	}

	return &domain.MultiAgentResult{
		Query:        query,
		Mode:         mode,
		Answer:       answer,
		Citations:    citations,
		Responses:    responses,
		AgentCount:   len(responses),
		FailedAgents: failed,
		TotalTime:    time.Since(start),
	}, nil
}

// conciseMerge compresses the agent outputs with one more model call
func (c *multiAgentCoordinator) conciseMerge(ctx context.Context, query string, responses []domain.AgentResponse) (string, error) {
	if c.merger == nil {
		return "", errors.New("no merge generator configured")
	}

	var b strings.Builder
	b.WriteString("You are a senior agricultural advisor. Several experts analysed the farmer's question below.\n")
	b.WriteString("Combine their analyses into ONE practical, actionable answer in under 300 words.\n")
	b.WriteString("Resolve disagreements, remove repetition, and lead with the most important actions.\n\n")
	fmt.Fprintf(&b, "Question: %s\n\n", query)
	for _, r := range responses {
		if !r.Succeeded {
			continue
		}
		fmt.Fprintf(&b, "### %s\n%s\n\n", r.Role.DisplayName(), r.AnswerText)
	}
	b.WriteString("Combined answer:")

	text, _, err := c.merger.generateWithFallback(ctx, b.String(), c.merger.config.Model, c.config.Temperature)
	return text, err
}

// DetailedMerge concatenates successful agent answers under role headings
func DetailedMerge(query string, responses []domain.AgentResponse, citations []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Agricultural Analysis: %s\n", query)

	var failedRoles []string
	for _, r := range responses {
		if !r.Succeeded {
			failedRoles = append(failedRoles, r.Role.DisplayName())
			continue
		}
		fmt.Fprintf(&b, "\n## %s Perspective\n\n%s\n", r.Role.DisplayName(), r.AnswerText)
	}

	if len(failedRoles) > 0 {
		fmt.Fprintf(&b, "\n> Note: %d of %d agents could not respond (%s).\n",
			len(failedRoles), len(responses), strings.Join(failedRoles, ", "))
	}
	if len(citations) > 0 {
		b.WriteString("\n" + formatSources(citations))
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatSources(citations []string) string {
	var b strings.Builder
	b.WriteString("## Sources\n\n")
	for i, c := range citations {
		fmt.Fprintf(&b, "%d. %s\n", i+1, c)
	}
	return b.String()
}

// MergeAgentCitations deduplicates citations across agents in agent order
func MergeAgentCitations(responses []domain.AgentResponse) []string {
	seen := make(map[string]bool)
	merged := []string{}
	for _, r := range responses {
		if !r.Succeeded {
			continue
		}
		for _, c := range r.Citations {
			if seen[c] {
				continue
			}
			seen[c] = true
			merged = append(merged, c)
		}
	}
	return merged
}

// EnhancedQueries builds up to n role-focused web queries for query
func EnhancedQueries(query string, role domain.AgentRole, n int) []string {
	suffixes := roleSearchSuffixes[role]
	if n > len(suffixes) {
		n = len(suffixes)
	}
	queries := make([]string, 0, n)
	for _, s := range suffixes[:n] {
		queries = append(queries, strings.TrimSpace(query)+" "+s)
	}
	return queries
}

// agentCitations formats the results an answer cites, or every result
// when the answer cites none.
func agentCitations(answer string, results []domain.WebResult) []string {
	if len(results) == 0 {
		return []string{}
	}
	cited := domain.ExtractCitations(answer, func(n int) bool { return n <= len(results) })
	if len(cited) == 0 {
		cited = make([]int, len(results))
		for i := range results {
			cited[i] = i + 1
		}
	}

	citations := make([]string, 0, len(cited))
	for _, n := range cited {
		citations = append(citations, FormatWebCitation(results[n-1]))
	}
	return citations
}

// FormatWebCitation renders a result as "title. domain. url"
func FormatWebCitation(r domain.WebResult) string {
	title := strings.TrimSpace(r.Title)
	if title == "" {
		title = r.URL
	}
	return fmt.Sprintf("%s. %s. %s", strings.TrimRight(title, "."), r.Domain(), r.URL)
}

func buildAgentPrompt(query string, role domain.AgentRole, results []domain.WebResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\n", query)
	if len(results) > 0 {
		b.WriteString("Web search results:\n")
		for i, r := range results {
			fmt.Fprintf(&b, "[%d] %s\nURL: %s\n%s\n\n", i+1, r.Title, r.URL, ClipText(domain.NormalizeWhitespace(r.Snippet), 500))
		}
		b.WriteString("Cite the web results you use inline as [n].\n")
	}
	fmt.Fprintf(&b, "Answer from your perspective as a %s. Be specific and practical.", role.DisplayName())
	return b.String()
}

// SuggestRoles ranks roles by keyword overlap with query and returns n of them.
// Roles without matches fill the remainder in canonical order.
func SuggestRoles(query string, n int) []domain.AgentRole {
	all := domain.AllAgentRoles()
	if n < 1 {
		n = 1
	}
	if n > len(all) {
		n = len(all)
	}

	lower := strings.ToLower(query)
	hits := make(map[domain.AgentRole]int, len(all))
	for _, role := range all {
		for _, kw := range role.Keywords() {
			if strings.Contains(lower, kw) {
				hits[role]++
			}
		}
	}

	ranked := append([]domain.AgentRole(nil), all...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return hits[ranked[i]] > hits[ranked[j]]
	})
	return ranked[:n]
}
