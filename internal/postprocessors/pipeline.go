package postprocessors

import (
	"sort"
	"sync"

	"github.com/custodia-labs/agrisearch-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.PostProcessorPipeline = (*Pipeline)(nil)

// Pipeline chains post-processors, sorted by Order.
type Pipeline struct {
	mu         sync.RWMutex
	processors []driven.PostProcessor
}

// NewPipeline creates an empty pipeline.
func NewPipeline(processors ...driven.PostProcessor) *Pipeline {
	p := &Pipeline{}
	for _, proc := range processors {
		p.Add(proc)
	}
	return p
}

// Add inserts a processor, keeping the pipeline sorted by Order.
func (p *Pipeline) Add(processor driven.PostProcessor) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.processors = append(p.processors, processor)
	sort.SliceStable(p.processors, func(i, j int) bool {
		return p.processors[i].Order() < p.processors[j].Order()
	})
}

// Process runs content through every processor.
// It starts from a single chunk spanning the whole content.
func (p *Pipeline) Process(content string) []driven.Chunk {
	p.mu.RLock()
	processors := make([]driven.PostProcessor, len(p.processors))
	copy(processors, p.processors)
	p.mu.RUnlock()

	chunks := []driven.Chunk{{
		Content:   content,
		EndOffset: len(content),
	}}
	for _, proc := range processors {
		chunks = proc.Process(chunks)
	}
	return chunks
}

// List returns processor names in run order.
func (p *Pipeline) List() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, len(p.processors))
	for i, proc := range p.processors {
		names[i] = proc.Name()
	}
	return names
}

// WebContentPipeline cleans fetched page text for use as evidence:
// whitespace is collapsed, then the text is clipped to maxChars runes.
func WebContentPipeline(maxChars int) *Pipeline {
	return NewPipeline(
		NewWhitespaceNormalizer(),
		NewClipper(maxChars),
	)
}

// IngestPipeline splits documents into indexable chunks and drops repeats.
func IngestPipeline(config ChunkConfig) *Pipeline {
	return NewPipeline(
		NewChunker(config),
		NewWhitespaceNormalizer(),
		NewDeduplicator(DefaultDeduplicatorConfig()),
	)
}
