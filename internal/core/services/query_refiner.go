package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/custodia-labs/agrisearch-core/internal/core/ports/driven"
)

const (
	refinerTemperature = 0.1
	minRefinedLength   = 3
)

// refinerErrorPhrases are model outputs that signal a failed refinement
var refinerErrorPhrases = map[string]bool{
	"error":                  true,
	"no response generated":  true,
	"unable to refine query": true,
}

// refusalPrefixes open outputs where the model declined or errored
var refusalPrefixes = []string{
	"error:",
	"i cannot",
	"i can't",
	"i can not",
	"i'm sorry",
	"i am sorry",
	"sorry",
	"i'm unable",
	"i am unable",
	"unable to",
	"as an ai",
}

// preamblePrefixes open lines that introduce an answer rather than being one
var preamblePrefixes = []string{
	"here is",
	"here's",
	"here are",
	"sure",
	"certainly",
}

// refinedLabels are labels models put in front of the refined query
var refinedLabels = []string{"refined query:", "refined:", "query:"}

// QueryRefiner restates a raw question as a clearer agricultural query.
// Refinement failure never blocks the pipeline: the raw query is returned.
type QueryRefiner struct {
	generator driven.TextGenerator
	model     string
	logger    *slog.Logger
}

// NewQueryRefiner creates a QueryRefiner. An empty model uses the generator's default.
func NewQueryRefiner(generator driven.TextGenerator, model string, logger *slog.Logger) *QueryRefiner {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryRefiner{generator: generator, model: model, logger: logger}
}

// Refine returns the refined query, or raw unchanged on failure
func (r *QueryRefiner) Refine(ctx context.Context, raw string) string {
	refined, _ := r.refine(ctx, raw)
	return refined
}

// refine also reports the generation error so the orchestrator can detect
// a backend with no reachable model.
func (r *QueryRefiner) refine(ctx context.Context, raw string) (string, error) {
	if r.generator == nil {
		return raw, nil
	}

	out, err := r.generator.Generate(ctx, buildRefinePrompt(raw), driven.GenerateOptions{
		Model:       r.model,
		Temperature: refinerTemperature,
	})
	if err != nil {
		r.logger.Warn("query refinement failed, using raw query", "error", err)
		return raw, err
	}

	refined := cleanRefinedQuery(out)
	if len(refined) < minRefinedLength || isDegenerateRefinement(refined) {
		r.logger.Warn("degenerate refinement output, using raw query", "output", out)
		return raw, nil
	}
	return refined, nil
}

func buildRefinePrompt(raw string) string {
	return fmt.Sprintf(`You are an expert agricultural query refiner.
Rewrite the user's question so it is clearer and more specific for searching agricultural
knowledge sources. Keep the original agricultural intent, crop, region and problem.
Do not answer the question. Respond with the refined query only, on a single line.

User question: %s

Refined query:`, raw)
}

// cleanRefinedQuery returns the first substantive line of the output with
// labels, preamble lines and quotes removed.
func cleanRefinedQuery(out string) string {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(strings.Trim(strings.TrimSpace(line), "*"))
		lower := strings.ToLower(line)
		for _, label := range refinedLabels {
			if strings.HasPrefix(lower, label) {
				line = strings.TrimSpace(line[len(label):])
				break
			}
		}
		line = strings.TrimSpace(strings.Trim(line, "\"'`"))
		if line == "" || isPreambleLine(line) {
			continue
		}
		return line
	}
	return ""
}

// isPreambleLine reports lines such as "Here is a refined version of your query:"
func isPreambleLine(line string) bool {
	if strings.HasSuffix(line, ":") {
		return true
	}
	lower := strings.ToLower(line)
	for _, prefix := range preamblePrefixes {
		if hasWordPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

func isDegenerateRefinement(refined string) bool {
	lower := strings.ToLower(refined)
	if refinerErrorPhrases[strings.TrimRight(lower, ".!")] {
		return true
	}
	for _, prefix := range refusalPrefixes {
		if hasWordPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// hasWordPrefix reports whether s starts with prefix followed by a non-letter
func hasWordPrefix(s, prefix string) bool {
	if !strings.HasPrefix(s, prefix) {
		return false
	}
	rest := s[len(prefix):]
	if rest == "" {
		return true
	}
	r, _ := utf8.DecodeRuneInString(rest)
	return !unicode.IsLetter(r)
}
