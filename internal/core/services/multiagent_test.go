package services

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/custodia-labs/agrisearch-core/internal/core/domain"
	"github.com/custodia-labs/agrisearch-core/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/agrisearch-core/internal/runtime"
)

// createAgentServices registers one mock generator per endpoint
func createAgentServices(generators map[string]*mocks.MockTextGenerator) *runtime.Services {
	services := runtime.NewServices(domain.NewRuntimeConfig("redis"))
	for endpoint, gen := range generators {
		services.SetAgentGenerator(endpoint, gen)
	}
	return services
}

func threeAgents() []domain.AgentConfig {
	return []domain.AgentConfig{
		{Role: domain.AgentRoleCropSpecialist, Endpoint: "http://agent-1:11434"},
		{Role: domain.AgentRoleDiseaseExpert, Endpoint: "http://agent-2:11434"},
		{Role: domain.AgentRoleClimateResearcher, Endpoint: "http://agent-3:11434"},
	}
}

func newAgentGenerator(answer string) *mocks.MockTextGenerator {
	gen := mocks.NewMockTextGenerator()
	gen.SetResponse(answer)
	return gen
}

func TestMultiAgent_PartialFailure(t *testing.T) {
	failing := mocks.NewMockTextGenerator()
	failing.SetFailAll(true)
	services := createAgentServices(map[string]*mocks.MockTextGenerator{
		"http://agent-1:11434": newAgentGenerator("Use tolerant varieties."),
		"http://agent-2:11434": failing,
		"http://agent-3:11434": newAgentGenerator("Expect heavier monsoon rains."),
	})

	coordinator := NewMultiAgentCoordinator(services, nil, nil, nil, DefaultMultiAgentConfig(), nil)
	responses, err := coordinator.Dispatch(context.Background(), "Why are my rice leaves turning yellow?", threeAgents())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(responses) != 3 {
		t.Fatalf("expected 3 responses, got %d", len(responses))
	}
	failed := 0
	for _, r := range responses {
		if !r.Succeeded {
			failed++
			if r.Error == "" {
				t.Error("expected error message on failed agent")
			}
		}
	}
	if failed != 1 || responses[1].Succeeded {
		t.Errorf("expected only agent 2 to fail, got %+v", responses)
	}
	if responses[0].Role != domain.AgentRoleCropSpecialist || responses[2].Role != domain.AgentRoleClimateResearcher {
		t.Error("expected responses in config order")
	}

	merged := DetailedMerge("rice", responses, MergeAgentCitations(responses))
	if !strings.Contains(merged, "## Crop Specialist Perspective") || !strings.Contains(merged, "## Climate Researcher Perspective") {
		t.Errorf("expected perspectives in merged output:\n%s", merged)
	}
	if !strings.Contains(merged, "1 of 3 agents could not respond (Disease Expert)") {
		t.Errorf("expected failure note in merged output:\n%s", merged)
	}
}

func TestMultiAgent_AllFail(t *testing.T) {
	services := createAgentServices(nil)
	coordinator := NewMultiAgentCoordinator(services, nil, nil, nil, DefaultMultiAgentConfig(), nil)

	responses, err := coordinator.Dispatch(context.Background(), "rice", threeAgents())
	if !errors.Is(err, domain.ErrAllAgentsFailed) {
		t.Errorf("expected ErrAllAgentsFailed, got %v", err)
	}
	if !errors.Is(err, domain.ErrServiceUnavailable) {
		t.Errorf("expected ErrServiceUnavailable, got %v", err)
	}
	if len(responses) != 3 {
		t.Errorf("expected responses for every agent, got %d", len(responses))
	}

	if _, err := coordinator.Consult(context.Background(), "rice", threeAgents(), domain.MergeModeDetailed); !errors.Is(err, domain.ErrAllAgentsFailed) {
		t.Errorf("expected Consult to propagate ErrAllAgentsFailed, got %v", err)
	}
}

func TestMultiAgent_InvalidInput(t *testing.T) {
	coordinator := NewMultiAgentCoordinator(createAgentServices(nil), nil, nil, nil, DefaultMultiAgentConfig(), nil)

	tests := []struct {
		name    string
		query   string
		configs []domain.AgentConfig
	}{
		{"empty query", "  ", threeAgents()},
		{"no agents", "rice", nil},
		{"unknown role", "rice", []domain.AgentConfig{{Role: "soil_wizard", Endpoint: "x"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := coordinator.Dispatch(context.Background(), tt.query, tt.configs)
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}

	_, err := coordinator.Consult(context.Background(), "rice", threeAgents(), "verbose")
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for merge mode, got %v", err)
	}
}

func TestMultiAgent_DefaultAgents(t *testing.T) {
	gen := newAgentGenerator("Rotate with legumes.")
	services := createAgentServices(map[string]*mocks.MockTextGenerator{"http://agent-1:11434": gen})
	defaults := threeAgents()[:1]

	coordinator := NewMultiAgentCoordinator(services, nil, nil, defaults, DefaultMultiAgentConfig(), nil)
	if !reflect.DeepEqual(coordinator.DefaultAgents(), defaults) {
		t.Errorf("unexpected default agents %v", coordinator.DefaultAgents())
	}

	responses, err := coordinator.Dispatch(context.Background(), "rice", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(responses) != 1 || !responses[0].Succeeded {
		t.Errorf("expected default agent to run, got %+v", responses)
	}
	if calls := gen.Calls(); len(calls) != 1 || calls[0].Opts.System != domain.AgentRoleCropSpecialist.SystemPrompt() {
		t.Error("expected role system prompt to be sent")
	}
}

func TestMultiAgent_WebGroundingAndCitations(t *testing.T) {
	search := mocks.NewMockWebSearchProvider()
	search.SetDefaultResults([]domain.WebResult{
		{Title: "Rice nutrition.", URL: "https://www.irri.org/nutrition", Snippet: "Nitrogen is key."},
		{Title: "Blast disease", URL: "https://example.com/blast", Snippet: "Blast causes lesions."},
	})
	gen := newAgentGenerator("Apply nitrogen [1].")
	services := createAgentServices(map[string]*mocks.MockTextGenerator{"http://agent-1:11434": gen})

	coordinator := NewMultiAgentCoordinator(services, search, nil, nil, DefaultMultiAgentConfig(), nil)
	responses, err := coordinator.Dispatch(context.Background(), "rice yellowing", threeAgents()[:1])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := search.Queries(); len(got) != 2 || !strings.HasPrefix(got[0], "rice yellowing ") {
		t.Errorf("expected 2 enhanced searches, got %v", got)
	}
	r := responses[0]
	if len(r.SearchResults) != 2 {
		t.Errorf("expected results deduplicated by URL, got %d", len(r.SearchResults))
	}
	want := []string{"Rice nutrition. www.irri.org. https://www.irri.org/nutrition"}
	if !reflect.DeepEqual(r.Citations, want) {
		t.Errorf("expected citations %v, got %v", want, r.Citations)
	}
	if !strings.Contains(gen.Calls()[0].Prompt, "[2] Blast disease") {
		t.Error("expected web context in agent prompt")
	}
}

func TestMultiAgent_ConciseMerge(t *testing.T) {
	services := createAgentServices(map[string]*mocks.MockTextGenerator{
		"http://agent-1:11434": newAgentGenerator("Crop answer."),
		"http://agent-2:11434": newAgentGenerator("Disease answer."),
	})
	mergeGen := mocks.NewMockTextGenerator()
	mergeGen.SetResponse("Top actions: test soil, apply nitrogen.")
	merger := NewAnswerSynthesizer(mergeGen, DefaultSynthesizerConfig(), nil)

	coordinator := NewMultiAgentCoordinator(services, nil, merger, nil, DefaultMultiAgentConfig(), nil)
	result, err := coordinator.Consult(context.Background(), "rice", threeAgents()[:2], domain.MergeModeConcise)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Answer != "Top actions: test soil, apply nitrogen." {
		t.Errorf("unexpected concise answer %q", result.Answer)
	}
	if result.AgentCount != 2 || result.FailedAgents != 0 {
		t.Errorf("unexpected counts %d/%d", result.AgentCount, result.FailedAgents)
	}
	prompt := mergeGen.Calls()[0].Prompt
	if !strings.Contains(prompt, "under 300 words") || !strings.Contains(prompt, "Disease answer.") {
		t.Errorf("unexpected merge prompt:\n%s", prompt)
	}
}

func TestMultiAgent_ConciseMergeDegradesToDetailed(t *testing.T) {
	services := createAgentServices(map[string]*mocks.MockTextGenerator{
		"http://agent-1:11434": newAgentGenerator("Crop answer."),
	})
	mergeGen := mocks.NewMockTextGenerator()
	mergeGen.SetFailAll(true)
	merger := NewAnswerSynthesizer(mergeGen, DefaultSynthesizerConfig(), nil)

	coordinator := NewMultiAgentCoordinator(services, nil, merger, nil, DefaultMultiAgentConfig(), nil)
	result, err := coordinator.Consult(context.Background(), "rice", threeAgents()[:1], domain.MergeModeConcise)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(result.Answer, "# Agricultural Analysis: rice") {
		t.Errorf("expected detailed fallback, got %q", result.Answer)
	}
	if len(mergeGen.Calls()) != 2 {
		t.Errorf("expected primary and fallback merge attempts, got %d", len(mergeGen.Calls()))
	}
}

func TestMergeAgentCitations(t *testing.T) {
	responses := []domain.AgentResponse{
		{Succeeded: true, Citations: []string{"a", "b"}},
		{Succeeded: false, Citations: []string{"z"}},
		{Succeeded: true, Citations: []string{"b", "c"}},
	}
	if got := MergeAgentCitations(responses); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("MergeAgentCitations() = %v", got)
	}
}

func TestSuggestRoles(t *testing.T) {
	got := SuggestRoles("What is the market price impact of drought on maize yield?", 3)
	if len(got) != 3 {
		t.Fatalf("expected 3 roles, got %d", len(got))
	}
	want := map[domain.AgentRole]bool{
		domain.AgentRoleCropSpecialist:    true,
		domain.AgentRoleEconomicsAnalyst:  true,
		domain.AgentRoleClimateResearcher: true,
	}
	for _, r := range got {
		if !want[r] {
			t.Errorf("unexpected role %s", r)
		}
	}

	if got := SuggestRoles("hello", 2); !reflect.DeepEqual(got, domain.AllAgentRoles()[:2]) {
		t.Errorf("expected canonical order without matches, got %v", got)
	}
	if got := SuggestRoles("x", 99); len(got) != 6 {
		t.Errorf("expected n clamped to 6, got %d", len(got))
	}
}
