package services

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/custodia-labs/agrisearch-core/internal/core/domain"
	"github.com/custodia-labs/agrisearch-core/internal/core/ports/driven"
)

const (
	subQueryTemperature = 0.3
	minSubQueryLength   = 10
)

// listMarker matches leading numbering and bullets such as "1.", "2)", "(3)", "**4.**", "-", "*", "•"
var listMarker = regexp.MustCompile(`^\s*(?:\*\*)?(?:\(?\d+[.):]\s*|[-*•]\s+)`)

// SubQueryGenerator expands one query into focused search queries
type SubQueryGenerator struct {
	generator driven.TextGenerator
	model     string
	logger    *slog.Logger
}

// NewSubQueryGenerator creates a SubQueryGenerator
func NewSubQueryGenerator(generator driven.TextGenerator, model string, logger *slog.Logger) *SubQueryGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubQueryGenerator{generator: generator, model: model, logger: logger}
}

// Generate returns between 1 and count sub-queries.
// When nothing usable is produced the result is [query].
func (g *SubQueryGenerator) Generate(ctx context.Context, query string, count int) []string {
	subQueries, _ := g.generate(ctx, query, count)
	return subQueries
}

func (g *SubQueryGenerator) generate(ctx context.Context, query string, count int) ([]string, error) {
	count = clampSubQueryCount(count)
	if g.generator == nil {
		return []string{query}, nil
	}

	out, err := g.generator.Generate(ctx, buildSubQueryPrompt(query, count), driven.GenerateOptions{
		Model:       g.model,
		Temperature: subQueryTemperature,
	})
	if err != nil {
		g.logger.Warn("sub-query generation failed, using query", "error", err)
		return []string{query}, err
	}

	subQueries := ParseSubQueries(out, query, count)
	if len(subQueries) == 0 {
		g.logger.Warn("no usable sub-queries parsed, using query", "output_length", len(out))
		return []string{query}, nil
	}
	if len(subQueries) < count {
		g.logger.Debug("fewer sub-queries than requested", "requested", count, "got", len(subQueries))
	}
	return subQueries, nil
}

// ParseSubQueries extracts up to count distinct sub-queries from model output.
// Numbered or bulleted lines are taken when present; plain lines are used only
// when the output has no list. Markers, quotes and preamble lines are stripped;
// blanks, short lines, duplicates and lines equal to the original query are dropped.
func ParseSubQueries(output, query string, count int) []string {
	var listed, plain []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if listMarker.MatchString(line) {
			listed = append(listed, listMarker.ReplaceAllString(line, ""))
			continue
		}
		plain = append(plain, strings.TrimLeft(line, "# "))
	}

	candidates := listed
	if len(candidates) == 0 {
		candidates = plain
	}

	seen := map[string]bool{strings.ToLower(strings.TrimSpace(query)): true}
	var result []string
	for _, line := range candidates {
		line = strings.TrimSpace(strings.Trim(strings.TrimSpace(line), "\"'`*"))
		if len(line) < minSubQueryLength || isPreambleLine(line) {
			continue
		}
		key := strings.ToLower(line)
		if seen[key] {
			continue
		}
		seen[key] = true
		result = append(result, line)
		if len(result) == count {
			break
		}
	}
	return result
}

func clampSubQueryCount(count int) int {
	if count < 1 {
		return 1
	}
	if count > domain.MaxSubQueries {
		return domain.MaxSubQueries
	}
	return count
}

func buildSubQueryPrompt(query string, count int) string {
	return fmt.Sprintf(`You are an agricultural research assistant.
Break the following question into exactly %d standalone search queries.
Each query must cover a distinct aspect of the question (causes, management,
economics, climate, policy or technology where relevant) and must make sense
on its own without the original question.

Output one query per line, numbered 1 to %d, with no other text.

Question: %s`, count, count, query)
}
