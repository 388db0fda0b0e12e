package services

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/agrisearch-core/internal/core/domain"
	"github.com/custodia-labs/agrisearch-core/internal/core/ports/driven"
	"github.com/custodia-labs/agrisearch-core/internal/core/ports/driving"
)

// Ensure ingestService implements IngestService
var _ driving.IngestService = (*ingestService)(nil)

// maxIngestFileBytes skips files too large to hold in memory for chunking
const maxIngestFileBytes = 20 << 20

// MIMEResolver maps a file path to a MIME type; false means unsupported
type MIMEResolver func(path string) (string, bool)

// ingestService implements the IngestService interface
type ingestService struct {
	store       driven.VectorStore
	normalise   driven.NormaliserRegistry
	pipeline    driven.PostProcessorPipeline
	resolveMIME MIMEResolver
	logger      *slog.Logger
}

// NewIngestService creates a new IngestService
func NewIngestService(
	store driven.VectorStore,
	normalise driven.NormaliserRegistry,
	pipeline driven.PostProcessorPipeline,
	resolveMIME MIMEResolver,
	logger *slog.Logger,
) driving.IngestService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ingestService{
		store:       store,
		normalise:   normalise,
		pipeline:    pipeline,
		resolveMIME: resolveMIME,
		logger:      logger,
	}
}

// IngestDocument returns the number of chunks indexed
func (s *ingestService) IngestDocument(ctx context.Context, source, mimeType, content string) (int, error) {
	if s.store == nil {
		return 0, fmt.Errorf("%w: vector store not configured", domain.ErrServiceUnavailable)
	}

	text := content
	if n := s.normalise.Get(mimeType); n != nil {
		text = n.Normalise(content, mimeType)
	}
	if strings.TrimSpace(text) == "" {
		return 0, nil
	}

	title := documentTitle(source, text)
	pieces := s.pipeline.Process(text)
	chunks := make([]domain.ScoredChunk, 0, len(pieces))
	for _, p := range pieces {
		chunks = append(chunks, domain.ScoredChunk{
			ID:   chunkID(source, p.Position),
			Text: p.Content,
			Metadata: map[string]string{
				"source":   source,
				"title":    title,
				"position": strconv.Itoa(p.Position),
				"mime":     mimeType,
			},
		})
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	if err := s.store.Add(ctx, chunks); err != nil {
		return 0, fmt.Errorf("failed to index %s: %w", source, err)
	}
	return len(chunks), nil
}

// IngestDir walks dir and indexes supported files. Per-file failures are
// recorded in the stats and do not stop the walk.
func (s *ingestService) IngestDir(ctx context.Context, dir string) (*domain.IngestStats, error) {
	start := time.Now()
	stats := &domain.IngestStats{}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", domain.ErrInvalidInput, dir)
	}

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			stats.Errors = append(stats.Errors, walkErr.Error())
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		stats.FilesSeen++
		mimeType, ok := s.resolveMIME(path)
		if !ok {
			stats.FilesSkipped++
			return nil
		}

		n, err := s.ingestFile(ctx, dir, path, mimeType)
		if err != nil {
			s.logger.Warn("ingest failed", "path", path, "error", err)
			stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", path, err))
			return nil
		}
		if n == 0 {
			stats.FilesSkipped++
			return nil
		}
		stats.FilesIndexed++
		stats.ChunksIndexed += n
		return nil
	})
	stats.Duration = time.Since(start)
	if err != nil {
		return stats, err
	}

	s.logger.Info("ingestion complete",
		"dir", dir,
		"files_indexed", stats.FilesIndexed,
		"files_skipped", stats.FilesSkipped,
		"chunks", stats.ChunksIndexed,
		"errors", len(stats.Errors),
		"duration", stats.Duration,
	)
	return stats, nil
}

func (s *ingestService) ingestFile(ctx context.Context, root, path, mimeType string) (int, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if info.Size() > maxIngestFileBytes {
		return 0, fmt.Errorf("file too large (%d bytes)", info.Size())
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	source, err := filepath.Rel(root, path)
	if err != nil {
		source = filepath.Base(path)
	}
	return s.IngestDocument(ctx, filepath.ToSlash(source), mimeType, string(raw))
}

// chunkID is stable per source and position, so re-ingesting a file
// overwrites its chunks instead of duplicating them.
func chunkID(source string, position int) string {
	return source + "#" + strconv.Itoa(position)
}

// documentTitle uses the first non-empty line when it is short enough,
// otherwise the file name without extension.
func documentTitle(source, text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len([]rune(line)) <= 120 {
			return line
		}
		break
	}
	base := filepath.Base(source)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
