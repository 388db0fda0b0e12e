package services

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/custodia-labs/agrisearch-core/internal/core/domain"
	"github.com/custodia-labs/agrisearch-core/internal/core/ports/driven/mocks"
)

func threeItemReport() *domain.EvidenceReport {
	return &domain.EvidenceReport{
		SubQueries: []string{"nitrogen for rice"},
		Items: domain.NumberEvidence([]domain.EvidenceItem{
			{SourceKind: domain.SourceKindDatabase, Content: "Apply urea in split doses.", Score: 0.9, Metadata: map[string]string{"source": "rice_guide.pdf"}},
			{SourceKind: domain.SourceKindDatabase, Content: "Crop rotation improves soil.", Score: 0.8},
			{SourceKind: domain.SourceKindWeb, Title: "IRRI", URL: "https://irri.org/n", Content: "Rotate rice with legumes.", Score: 1},
		}),
	}
}

func TestAnswerSynthesizer_ExtractsValidCitations(t *testing.T) {
	gen := mocks.NewMockTextGenerator()
	gen.SetResponse("Use nitrogen fertilizer [1] and rotate crops [3]. See also [7].")

	s := NewAnswerSynthesizer(gen, DefaultSynthesizerConfig(), nil)
	result := s.Synthesize(context.Background(), "How do I fertilize rice?", threeItemReport(), "")

	if !reflect.DeepEqual(result.CitedIndices, []int{1, 3}) {
		t.Errorf("expected cited [1 3], got %v", result.CitedIndices)
	}
	if result.UsedFallbackModel || result.GenerationFailed {
		t.Errorf("unexpected flags: %+v", result)
	}

	calls := gen.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	opts := calls[0].Opts
	if opts.Model != "gemma3:27b" || opts.Temperature != 0.1 || opts.NumCtx != 8192 {
		t.Errorf("unexpected options %+v", opts)
	}
}

func TestAnswerSynthesizer_ModelOverride(t *testing.T) {
	gen := mocks.NewMockTextGenerator()
	gen.SetResponse("answer [1]")

	s := NewAnswerSynthesizer(gen, DefaultSynthesizerConfig(), nil)
	s.Synthesize(context.Background(), "q", threeItemReport(), "llama3.2:3b")

	if got := gen.Calls()[0].Opts.Model; got != "llama3.2:3b" {
		t.Errorf("expected model override, got %q", got)
	}
}

func TestAnswerSynthesizer_FallbackModel(t *testing.T) {
	gen := mocks.NewMockTextGenerator()
	gen.SetResponse("Fallback answer [2].")
	gen.SetFailModel("gemma3:27b")

	s := NewAnswerSynthesizer(gen, DefaultSynthesizerConfig(), nil)
	result := s.Synthesize(context.Background(), "q", threeItemReport(), "")

	if !result.UsedFallbackModel {
		t.Error("expected fallback model to be used")
	}
	if result.GenerationFailed {
		t.Error("expected generation to succeed on fallback")
	}
	if !reflect.DeepEqual(result.CitedIndices, []int{2}) {
		t.Errorf("expected cited [2], got %v", result.CitedIndices)
	}

	calls := gen.Calls()
	if len(calls) != 2 || calls[1].Opts.Model != "gemma3:4b" {
		t.Errorf("expected retry on fallback model, got %+v", calls)
	}
}

func TestAnswerSynthesizer_BothModelsFail(t *testing.T) {
	gen := mocks.NewMockTextGenerator()
	gen.SetFailAll(true)

	s := NewAnswerSynthesizer(gen, DefaultSynthesizerConfig(), nil)
	result := s.Synthesize(context.Background(), "q", threeItemReport(), "")

	if result.AnswerText != ApologyAnswer {
		t.Errorf("expected apology, got %q", result.AnswerText)
	}
	if len(result.CitedIndices) != 0 {
		t.Errorf("expected no citations, got %v", result.CitedIndices)
	}
	if !result.GenerationFailed || !result.UsedFallbackModel {
		t.Errorf("unexpected flags: %+v", result)
	}
	if len(gen.Calls()) != 2 {
		t.Errorf("expected exactly one retry, got %d calls", len(gen.Calls()))
	}
}

func TestAnswerSynthesizer_EmptyResponseUsesFallback(t *testing.T) {
	gen := mocks.NewMockTextGenerator()
	gen.SetResponse("   ")

	s := NewAnswerSynthesizer(gen, DefaultSynthesizerConfig(), nil)
	result := s.Synthesize(context.Background(), "q", threeItemReport(), "")

	if !result.GenerationFailed {
		t.Error("expected generation failure for blank output")
	}
}

func TestAnswerSynthesizer_EmptyReport(t *testing.T) {
	gen := mocks.NewMockTextGenerator()
	gen.SetResponse("No relevant information was found.")

	s := NewAnswerSynthesizer(gen, DefaultSynthesizerConfig(), nil)
	result := s.Synthesize(context.Background(), "q", &domain.EvidenceReport{}, "")

	if result.AnswerText != "No relevant information was found." {
		t.Errorf("unexpected answer %q", result.AnswerText)
	}
	if !strings.Contains(gen.Calls()[0].Prompt, "No relevant evidence was found") {
		t.Error("expected prompt to state that no evidence was found")
	}
}

func TestBuildSynthesisPrompt(t *testing.T) {
	prompt := BuildSynthesisPrompt("How do I fertilize rice?", threeItemReport())

	for _, want := range []string{
		"Question: How do I fertilize rice?",
		"[1] rice_guide.pdf: Apply urea in split doses.",
		"[2] Local knowledge base: Crop rotation improves soil.",
		"[3] IRRI (https://irri.org/n): Rotate rice with legumes.",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
