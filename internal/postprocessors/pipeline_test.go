package postprocessors

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/custodia-labs/agrisearch-core/internal/core/ports/driven"
)

func TestPipeline_OrdersProcessors(t *testing.T) {
	p := NewPipeline()
	p.Add(NewClipper(10))
	p.Add(NewDeduplicator(DefaultDeduplicatorConfig()))
	p.Add(NewChunker(DefaultChunkConfig()))
	p.Add(NewWhitespaceNormalizer())

	names := p.List()
	want := []string{"chunker", "whitespace-normalizer", "deduplicator", "clipper"}
	if len(names) != len(want) {
		t.Fatalf("expected %d processors, got %d", len(want), len(names))
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], names[i])
		}
	}
}

func TestPipeline_Process_NoProcessors(t *testing.T) {
	p := NewPipeline()

	chunks := p.Process("raw text")
	if len(chunks) != 1 || chunks[0].Content != "raw text" {
		t.Errorf("expected content unchanged, got %+v", chunks)
	}
	if chunks[0].EndOffset != len("raw text") {
		t.Errorf("expected end offset %d, got %d", len("raw text"), chunks[0].EndOffset)
	}
}

func TestWebContentPipeline(t *testing.T) {
	p := WebContentPipeline(20)

	chunks := p.Process("  Integrated   pest\r\n\r\n\r\nmanagement reduces spraying costs.  ")
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	got := chunks[0].Content
	if utf8.RuneCountInString(got) > 20 {
		t.Errorf("expected at most 20 runes, got %d", utf8.RuneCountInString(got))
	}
	if !strings.HasPrefix(got, "Integrated pest") {
		t.Errorf("expected collapsed whitespace, got %q", got)
	}
}

func TestWebContentPipeline_BlankContent(t *testing.T) {
	p := WebContentPipeline(100)

	if chunks := p.Process(" \n\t "); len(chunks) != 0 {
		t.Errorf("expected blank content to be dropped, got %+v", chunks)
	}
}

func TestIngestPipeline(t *testing.T) {
	paragraph := strings.Repeat("Drip irrigation saves water in arid regions. ", 10)
	content := paragraph + "\n\n" + paragraph + "\n\n" + "Mulching keeps soil moist."

	p := IngestPipeline(ChunkConfig{MaxChunkSize: 500, Overlap: 0, PreserveParagraphs: true, PreserveSentences: true})
	chunks := p.Process(content)

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	seen := make(map[string]bool)
	for _, c := range chunks {
		if seen[c.Content] {
			t.Errorf("duplicate chunk survived: %q", c.Content)
		}
		seen[c.Content] = true
	}
	last := chunks[len(chunks)-1].Content
	if !strings.Contains(last, "Mulching") {
		t.Errorf("expected final chunk to hold the tail, got %q", last)
	}
}

func TestChunker_SmallContent(t *testing.T) {
	c := NewChunker(DefaultChunkConfig())

	chunks := c.Process([]driven.Chunk{{Content: "short", StartOffset: 7}})
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].StartOffset != 7 || chunks[0].EndOffset != 12 {
		t.Errorf("unexpected offsets %d-%d", chunks[0].StartOffset, chunks[0].EndOffset)
	}
}

func TestChunker_SplitsWithOverlap(t *testing.T) {
	content := strings.Repeat("word ", 100) // 500 bytes
	c := NewChunker(ChunkConfig{MaxChunkSize: 100, Overlap: 20})

	chunks := c.Process([]driven.Chunk{{Content: content}})
	if len(chunks) < 5 {
		t.Fatalf("expected at least 5 chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if len(chunk.Content) > 100 {
			t.Errorf("chunk %d exceeds max size: %d", i, len(chunk.Content))
		}
		if chunk.Position != i {
			t.Errorf("chunk %d has position %d", i, chunk.Position)
		}
		if content[chunk.StartOffset:chunk.EndOffset] != chunk.Content {
			t.Errorf("chunk %d offsets do not match content", i)
		}
		if i > 0 && chunk.StartOffset >= chunks[i-1].EndOffset {
			t.Errorf("chunk %d does not overlap the previous chunk", i)
		}
	}
	if chunks[len(chunks)-1].EndOffset != len(content) {
		t.Error("expected the last chunk to reach the end of the content")
	}
}

func TestChunker_PreferParagraphBreak(t *testing.T) {
	content := strings.Repeat("a", 60) + "\n\n" + strings.Repeat("b", 60)
	c := NewChunker(ChunkConfig{MaxChunkSize: 100, Overlap: 0, PreserveParagraphs: true})

	chunks := c.Process([]driven.Chunk{{Content: content}})
	if len(chunks) < 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Content != strings.Repeat("a", 60)+"\n\n" {
		t.Errorf("expected break after paragraph, got %q", chunks[0].Content)
	}
}

func TestChunker_DoesNotSplitRunes(t *testing.T) {
	content := strings.Repeat("é", 120) // 240 bytes, no break points
	c := NewChunker(ChunkConfig{MaxChunkSize: 51, Overlap: 0})

	chunks := c.Process([]driven.Chunk{{Content: content}})
	var rebuilt strings.Builder
	for _, chunk := range chunks {
		if !utf8.ValidString(chunk.Content) {
			t.Fatalf("chunk is not valid UTF-8: %q", chunk.Content)
		}
		rebuilt.WriteString(chunk.Content)
	}
	if rebuilt.String() != content {
		t.Error("expected chunks without overlap to rebuild the content")
	}
}

func TestNewChunker_SanitisesConfig(t *testing.T) {
	c := NewChunker(ChunkConfig{MaxChunkSize: 0, Overlap: 5000})
	if c.config.MaxChunkSize != DefaultChunkConfig().MaxChunkSize {
		t.Errorf("expected default size, got %d", c.config.MaxChunkSize)
	}
	if c.config.Overlap >= c.config.MaxChunkSize/2 {
		t.Errorf("expected overlap below half the chunk size, got %d", c.config.Overlap)
	}
}

func TestWhitespaceNormalizer(t *testing.T) {
	w := NewWhitespaceNormalizer()

	chunks := w.Process([]driven.Chunk{
		{Content: "Soil  pH\r\n\r\n\r\n\tmatters ", Position: 3, StartOffset: 10, EndOffset: 40},
		{Content: "   \n  "},
	})
	if len(chunks) != 1 {
		t.Fatalf("expected empty chunk to be dropped, got %d", len(chunks))
	}
	if chunks[0].Content != "Soil pH\n\nmatters" {
		t.Errorf("unexpected content %q", chunks[0].Content)
	}
	if chunks[0].Position != 3 || chunks[0].StartOffset != 10 || chunks[0].EndOffset != 40 {
		t.Error("expected position and offsets to be preserved")
	}
}

func TestDeduplicator(t *testing.T) {
	d := NewDeduplicator(DeduplicatorConfig{MinDuplicateLength: 10})
	long := "Crop rotation breaks pest cycles."

	chunks := d.Process([]driven.Chunk{
		{Content: long},
		{Content: "short"},
		{Content: strings.ToUpper(long)},
		{Content: "short"},
		{Content: "Crop  rotation breaks pest cycles."},
	})
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if chunks[0].Content != long || chunks[1].Content != "short" || chunks[2].Content != "short" {
		t.Errorf("unexpected chunks %+v", chunks)
	}
}

func TestClipper(t *testing.T) {
	c := NewClipper(5)

	chunks := c.Process([]driven.Chunk{
		{Content: "ñandú birds", StartOffset: 4},
		{Content: "ok"},
	})
	if chunks[0].Content != "ñandú" {
		t.Errorf("expected rune-safe clip, got %q", chunks[0].Content)
	}
	if chunks[0].EndOffset != 4+len("ñandú") {
		t.Errorf("unexpected end offset %d", chunks[0].EndOffset)
	}
	if chunks[1].Content != "ok" {
		t.Errorf("expected short chunk unchanged, got %q", chunks[1].Content)
	}

	if got := NewClipper(0).Process([]driven.Chunk{{Content: "unbounded"}}); got[0].Content != "unbounded" {
		t.Error("expected zero limit to disable clipping")
	}
}
