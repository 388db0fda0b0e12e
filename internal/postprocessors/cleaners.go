package postprocessors

import (
	"strings"

	"github.com/custodia-labs/agrisearch-core/internal/core/ports/driven"
)

// Verify interface compliance
var (
	_ driven.PostProcessor = (*WhitespaceNormalizer)(nil)
	_ driven.PostProcessor = (*Deduplicator)(nil)
	_ driven.PostProcessor = (*Clipper)(nil)
)

// WhitespaceNormalizer collapses whitespace within lines and
// drops chunks that end up empty.
type WhitespaceNormalizer struct{}

func NewWhitespaceNormalizer() *WhitespaceNormalizer {
	return &WhitespaceNormalizer{}
}

func (w *WhitespaceNormalizer) Process(chunks []driven.Chunk) []driven.Chunk {
	result := make([]driven.Chunk, 0, len(chunks))
	for _, chunk := range chunks {
		content := strings.ReplaceAll(chunk.Content, "\r\n", "\n")
		content = strings.ReplaceAll(content, "\r", "\n")

		lines := strings.Split(content, "\n")
		kept := lines[:0]
		blank := false
		for _, line := range lines {
			line = strings.Join(strings.Fields(line), " ")
			if line == "" {
				if blank {
					continue
				}
				blank = true
			} else {
				blank = false
			}
			kept = append(kept, line)
		}

		content = strings.TrimSpace(strings.Join(kept, "\n"))
		if content == "" {
			continue
		}
		chunk.Content = content
		result = append(result, chunk)
	}
	return result
}

func (w *WhitespaceNormalizer) Name() string {
	return "whitespace-normalizer"
}

func (w *WhitespaceNormalizer) Order() int {
	return 5
}

// DeduplicatorConfig configures the deduplicator.
type DeduplicatorConfig struct {
	// MinDuplicateLength is the minimum chunk length checked for duplicates
	MinDuplicateLength int
}

func DefaultDeduplicatorConfig() DeduplicatorConfig {
	return DeduplicatorConfig{MinDuplicateLength: 50}
}

// Deduplicator drops chunks whose case-folded content was already seen.
// Boilerplate repeated across a document (disclaimers, captions) goes first.
type Deduplicator struct {
	config DeduplicatorConfig
}

func NewDeduplicator(config DeduplicatorConfig) *Deduplicator {
	return &Deduplicator{config: config}
}

func (d *Deduplicator) Process(chunks []driven.Chunk) []driven.Chunk {
	if len(chunks) <= 1 {
		return chunks
	}

	seen := make(map[string]bool)
	result := make([]driven.Chunk, 0, len(chunks))
	for _, chunk := range chunks {
		if len(chunk.Content) >= d.config.MinDuplicateLength {
			key := strings.ToLower(strings.Join(strings.Fields(chunk.Content), " "))
			if seen[key] {
				continue
			}
			seen[key] = true
		}
		result = append(result, chunk)
	}
	return result
}

func (d *Deduplicator) Name() string {
	return "deduplicator"
}

func (d *Deduplicator) Order() int {
	return 10
}

// Clipper truncates each chunk to a maximum number of runes.
type Clipper struct {
	maxRunes int
}

// NewClipper creates a clipper; a non-positive limit disables clipping.
func NewClipper(maxRunes int) *Clipper {
	return &Clipper{maxRunes: maxRunes}
}

func (c *Clipper) Process(chunks []driven.Chunk) []driven.Chunk {
	if c.maxRunes <= 0 {
		return chunks
	}
	result := make([]driven.Chunk, len(chunks))
	for i, chunk := range chunks {
		runes := []rune(chunk.Content)
		if len(runes) > c.maxRunes {
			chunk.Content = strings.TrimSpace(string(runes[:c.maxRunes]))
			chunk.EndOffset = chunk.StartOffset + len(chunk.Content)
		}
		result[i] = chunk
	}
	return result
}

func (c *Clipper) Name() string {
	return "clipper"
}

func (c *Clipper) Order() int {
	return 20
}
