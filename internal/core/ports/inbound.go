package ports

import (
	"context"
	"io"

	"github.com/kirillkom/textmill/internal/core/domain"
)

// DocumentIngestor is the inbound contract for document upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.Document, error)
}

// DocumentReader is the inbound read model for document metadata/state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

// DocumentProcessor is the inbound contract for asynchronous document processing.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}

// TextExtractionService is the inbound contract for synchronous extraction
// of an in-memory byte image.
type TextExtractionService interface {
	ExtractBytes(ctx context.Context, data []byte, locale string) (*domain.Extraction, error)
	ExtractToSink(ctx context.Context, data []byte, locale string, sink ContentSink, meta domain.Metadata) error
}
