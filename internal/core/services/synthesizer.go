package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/custodia-labs/agrisearch-core/internal/core/domain"
	"github.com/custodia-labs/agrisearch-core/internal/core/ports/driven"
)

// ApologyAnswer is returned when neither the primary nor the fallback model responds
const ApologyAnswer = "I'm sorry, I could not generate an answer right now because the language model service is unavailable. Please try again later."

// SynthesizerConfig tunes answer generation
type SynthesizerConfig struct {
	// Model is the primary synthesis model; empty uses the generator default
	Model string

	// FallbackModel is tried once when the primary model fails
	FallbackModel string

	Temperature float64
	NumCtx      int

	// Timeout bounds each synthesis attempt
	Timeout time.Duration
}

// DefaultSynthesizerConfig returns the default synthesis settings
func DefaultSynthesizerConfig() SynthesizerConfig {
	return SynthesizerConfig{
		Model:         "gemma3:27b",
		FallbackModel: "gemma3:4b",
		Temperature:   0.1,
		NumCtx:        8192,
		Timeout:       120 * time.Second,
	}
}

// AnswerSynthesizer writes a cited answer from an evidence report
type AnswerSynthesizer struct {
	generator driven.TextGenerator
	config    SynthesizerConfig
	logger    *slog.Logger
}

// NewAnswerSynthesizer creates an AnswerSynthesizer
func NewAnswerSynthesizer(generator driven.TextGenerator, config SynthesizerConfig, logger *slog.Logger) *AnswerSynthesizer {
	if config.Timeout <= 0 {
		config.Timeout = DefaultSynthesizerConfig().Timeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AnswerSynthesizer{generator: generator, config: config, logger: logger}
}

// Synthesize always returns a result. When both models fail the answer is
// ApologyAnswer and GenerationFailed is set.
func (s *AnswerSynthesizer) Synthesize(ctx context.Context, query string, report *domain.EvidenceReport, modelID string) domain.SynthesisResult {
	model := s.config.Model
	if modelID != "" {
		model = modelID
	}

	text, usedFallback, err := s.generateWithFallback(ctx, BuildSynthesisPrompt(query, report), model, s.config.Temperature)
	if err != nil {
		s.logger.Error("answer synthesis failed on primary and fallback model",
			"model", model,
			"fallback_model", s.config.FallbackModel,
			"error", err,
		)
		return domain.SynthesisResult{
			AnswerText:        ApologyAnswer,
			CitedIndices:      []int{},
			UsedFallbackModel: usedFallback,
			GenerationFailed:  true,
		}
	}

	cited := domain.ExtractCitations(text, report.HasIndex)
	if cited == nil {
		cited = []int{}
	}
	if !report.IsEmpty() && len(cited) == 0 {
		s.logger.Warn("answer cites no evidence", "evidence_items", len(report.Items))
	}

	return domain.SynthesisResult{
		AnswerText:        text,
		CitedIndices:      cited,
		UsedFallbackModel: usedFallback,
	}
}

// generateWithFallback tries model, then the fallback model once.
// Each attempt gets its own timeout.
func (s *AnswerSynthesizer) generateWithFallback(ctx context.Context, prompt, model string, temperature float64) (string, bool, error) {
	if s.generator == nil {
		return "", false, fmt.Errorf("%w: no text generator configured", domain.ErrGeneration)
	}

	text, err := s.attempt(ctx, prompt, model, temperature)
	if err == nil {
		return text, false, nil
	}
	s.logger.Warn("primary model failed, retrying with fallback model",
		"model", model,
		"fallback_model", s.config.FallbackModel,
		"error", err,
	)

	text, fallbackErr := s.attempt(ctx, prompt, s.config.FallbackModel, temperature)
	if fallbackErr != nil {
		return "", true, errors.Join(err, fallbackErr)
	}
	return text, true, nil
}

func (s *AnswerSynthesizer) attempt(ctx context.Context, prompt, model string, temperature float64) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	text, err := s.generator.Generate(callCtx, prompt, driven.GenerateOptions{
		Model:       model,
		Temperature: temperature,
		NumCtx:      s.config.NumCtx,
		Timeout:     s.config.Timeout,
	})
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: empty response from %s", domain.ErrGeneration, model)
	}
	return text, nil
}

// BuildSynthesisPrompt embeds every evidence item as a numbered block
func BuildSynthesisPrompt(query string, report *domain.EvidenceReport) string {
	var b strings.Builder
	b.WriteString("You are an agricultural expert assistant helping farmers and researchers.\n")
	b.WriteString("Answer the question using ONLY the evidence provided below.\n")
	b.WriteString("Cite sources inline with their numbers in square brackets, for example [1] or [2][3].\n")
	b.WriteString("Do not cite numbers that are not listed. If the evidence does not answer the question, say so.\n\n")
	fmt.Fprintf(&b, "Question: %s\n\n", query)

	b.WriteString("Evidence:\n")
	if report.IsEmpty() {
		b.WriteString("No relevant evidence was found in the local knowledge base or on the web.\n")
		b.WriteString("Tell the user that no relevant information was found, and only offer general, clearly labelled guidance.\n")
	} else {
		for _, item := range report.Items {
			label := item.Label()
			if item.URL != "" && item.URL != label {
				label = fmt.Sprintf("%s (%s)", label, item.URL)
			}
			fmt.Fprintf(&b, "[%d] %s: %s\n\n", item.CitationIndex, label, item.Content)
		}
	}

	b.WriteString("\nAnswer:")
	return b.String()
}
