package postprocessors

import (
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/agrisearch-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.PostProcessor = (*Chunker)(nil)

// ChunkConfig configures the chunker.
type ChunkConfig struct {
	// MaxChunkSize is the maximum bytes per chunk
	MaxChunkSize int

	// Overlap is the byte overlap between consecutive chunks
	Overlap int

	// PreserveSentences tries to break at sentence boundaries
	PreserveSentences bool

	// PreserveParagraphs tries to break at paragraph boundaries
	PreserveParagraphs bool
}

// DefaultChunkConfig returns the ingestion defaults.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MaxChunkSize:       1000,
		Overlap:            150,
		PreserveSentences:  true,
		PreserveParagraphs: true,
	}
}

// Chunker splits content into overlapping chunks. It runs first.
type Chunker struct {
	config ChunkConfig
}

// NewChunker creates a chunker. A non-positive size falls back to the default,
// and the overlap is kept below half the chunk size.
func NewChunker(config ChunkConfig) *Chunker {
	if config.MaxChunkSize <= 0 {
		config.MaxChunkSize = DefaultChunkConfig().MaxChunkSize
	}
	if config.Overlap < 0 || config.Overlap >= config.MaxChunkSize/2 {
		config.Overlap = config.MaxChunkSize / 4
	}
	return &Chunker{config: config}
}

func (c *Chunker) Process(chunks []driven.Chunk) []driven.Chunk {
	var result []driven.Chunk
	for _, chunk := range chunks {
		result = append(result, c.split(chunk.Content, chunk.StartOffset, len(result))...)
	}
	return result
}

func (c *Chunker) Name() string {
	return "chunker"
}

func (c *Chunker) Order() int {
	return 0
}

func (c *Chunker) split(content string, baseOffset, position int) []driven.Chunk {
	if len(content) <= c.config.MaxChunkSize {
		return []driven.Chunk{{
			Content:     content,
			Position:    position,
			StartOffset: baseOffset,
			EndOffset:   baseOffset + len(content),
		}}
	}

	var chunks []driven.Chunk
	start := 0
	for start < len(content) {
		end := start + c.config.MaxChunkSize
		if end >= len(content) {
			end = len(content)
		} else {
			if bp := c.breakPoint(content, start, end); bp > start {
				end = bp
			}
			if b := runeBoundary(content, end); b > start {
				end = b
			}
		}

		chunks = append(chunks, driven.Chunk{
			Content:     content[start:end],
			Position:    position + len(chunks),
			StartOffset: baseOffset + start,
			EndOffset:   baseOffset + end,
		})
		if end >= len(content) {
			break
		}

		next := runeBoundary(content, end-c.config.Overlap)
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// breakPoint finds the last paragraph, sentence or word break in the
// final 100 bytes before maxEnd.
func (c *Chunker) breakPoint(content string, start, maxEnd int) int {
	searchStart := maxEnd - 100
	if searchStart < start {
		searchStart = start
	}
	window := content[searchStart:maxEnd]

	if c.config.PreserveParagraphs {
		if idx := strings.LastIndex(window, "\n\n"); idx != -1 {
			return searchStart + idx + 2
		}
	}

	if c.config.PreserveSentences {
		best := -1
		for _, ender := range []string{". ", "! ", "? ", ".\n", "!\n", "?\n"} {
			if idx := strings.LastIndex(window, ender); idx != -1 && idx+len(ender) > best {
				best = idx + len(ender)
			}
		}
		if best > 0 {
			return searchStart + best
		}
	}

	if idx := strings.LastIndexAny(window, " \n"); idx != -1 {
		return searchStart + idx + 1
	}
	return maxEnd
}

// runeBoundary moves i back to the start of the rune containing it.
func runeBoundary(s string, i int) int {
	if i <= 0 {
		return 0
	}
	if i >= len(s) {
		return len(s)
	}
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}
