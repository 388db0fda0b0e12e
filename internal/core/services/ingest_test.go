package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/custodia-labs/agrisearch-core/internal/core/domain"
	"github.com/custodia-labs/agrisearch-core/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/agrisearch-core/internal/normalisers"
	"github.com/custodia-labs/agrisearch-core/internal/postprocessors"
)

func newTestIngestService() (*mocks.MockVectorStore, *ingestService) {
	store := mocks.NewMockVectorStore()
	svc := NewIngestService(
		store,
		normalisers.DefaultRegistry(),
		postprocessors.IngestPipeline(postprocessors.ChunkConfig{MaxChunkSize: 200, Overlap: 20, PreserveParagraphs: true, PreserveSentences: true}),
		normalisers.MIMETypeForPath,
		nil,
	)
	return store, svc.(*ingestService)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestIngestService_IngestDocument_HTML(t *testing.T) {
	store, svc := newTestIngestService()

	n, err := svc.IngestDocument(context.Background(), "guides/blast.html", "text/html",
		"<html><script>x()</script><h1>Rice blast</h1><p>Use resistant varieties and balanced nitrogen.</p></html>")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 || store.Count() != 1 {
		t.Fatalf("expected 1 chunk, got %d (store %d)", n, store.Count())
	}

	chunks, _ := store.Search(context.Background(), "resistant varieties", 1)
	if len(chunks) != 1 {
		t.Fatal("expected indexed chunk to be searchable")
	}
	c := chunks[0]
	if strings.Contains(c.Text, "<") || strings.Contains(c.Text, "x()") {
		t.Errorf("expected normalised text, got %q", c.Text)
	}
	if c.ID != "guides/blast.html#0" {
		t.Errorf("unexpected chunk id %s", c.ID)
	}
	if c.Metadata["source"] != "guides/blast.html" || c.Metadata["title"] != "Rice blast" {
		t.Errorf("unexpected metadata %v", c.Metadata)
	}
}

func TestIngestService_IngestDocument_Blank(t *testing.T) {
	store, svc := newTestIngestService()

	n, err := svc.IngestDocument(context.Background(), "empty.txt", "text/plain", "  \n\n ")
	if err != nil || n != 0 {
		t.Errorf("expected no chunks and no error, got %d %v", n, err)
	}
	if store.Count() != 0 {
		t.Error("expected nothing indexed")
	}
}

func TestIngestService_IngestDocument_NoStore(t *testing.T) {
	svc := NewIngestService(nil, normalisers.DefaultRegistry(), postprocessors.NewPipeline(), normalisers.MIMETypeForPath, nil)

	_, err := svc.IngestDocument(context.Background(), "a.txt", "text/plain", "text")
	if !errors.Is(err, domain.ErrServiceUnavailable) {
		t.Errorf("expected ErrServiceUnavailable, got %v", err)
	}
}

func TestIngestService_IngestDir(t *testing.T) {
	store, svc := newTestIngestService()
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "rice.md"), "# Rice\n\nTransplant seedlings at 21 days.")
	writeFile(t, filepath.Join(dir, "crops", "wheat.txt"), strings.Repeat("Wheat needs well drained loam soil. ", 12))
	writeFile(t, filepath.Join(dir, "crops", "notes.pdf"), "%PDF-1.4")
	writeFile(t, filepath.Join(dir, "blank.txt"), "   ")
	writeFile(t, filepath.Join(dir, ".git", "config.txt"), "ignored hidden directory")

	stats, err := svc.IngestDir(context.Background(), dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.FilesSeen != 4 {
		t.Errorf("expected 4 files seen, got %d", stats.FilesSeen)
	}
	if stats.FilesIndexed != 2 {
		t.Errorf("expected 2 files indexed, got %d", stats.FilesIndexed)
	}
	if stats.FilesSkipped != 2 {
		t.Errorf("expected 2 files skipped, got %d", stats.FilesSkipped)
	}
	if stats.ChunksIndexed < 3 {
		t.Errorf("expected the long file to be split, got %d chunks", stats.ChunksIndexed)
	}
	if store.Count() != stats.ChunksIndexed {
		t.Errorf("store count %d does not match stats %d", store.Count(), stats.ChunksIndexed)
	}
	if len(stats.Errors) != 0 {
		t.Errorf("unexpected errors %v", stats.Errors)
	}

	chunks, _ := store.Search(context.Background(), "transplant seedlings", 1)
	if len(chunks) == 0 || chunks[0].Metadata["source"] != "rice.md" {
		t.Errorf("expected rice.md chunk, got %+v", chunks)
	}
}

func TestIngestService_IngestDir_NotADirectory(t *testing.T) {
	_, svc := newTestIngestService()
	file := filepath.Join(t.TempDir(), "file.txt")
	writeFile(t, file, "x")

	if _, err := svc.IngestDir(context.Background(), file); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for a file, got %v", err)
	}
	if _, err := svc.IngestDir(context.Background(), filepath.Join(t.TempDir(), "missing")); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for a missing dir, got %v", err)
	}
}

func TestDocumentTitle(t *testing.T) {
	if got := documentTitle("a/soil.md", "\n\nSoil Health\nbody"); got != "Soil Health" {
		t.Errorf("expected first line, got %q", got)
	}
	if got := documentTitle("a/soil.md", strings.Repeat("x", 200)); got != "soil" {
		t.Errorf("expected file name, got %q", got)
	}
}
