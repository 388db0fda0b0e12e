package driving

import (
	"context"

	"github.com/custodia-labs/agrisearch-core/internal/core/domain"
)

// IngestService loads documents into the local vector store
type IngestService interface {
	// IngestDocument normalises, chunks and indexes one document
	IngestDocument(ctx context.Context, source, mimeType, content string) (int, error)

	// IngestDir indexes every supported file below dir
	IngestDir(ctx context.Context, dir string) (*domain.IngestStats, error)
}
