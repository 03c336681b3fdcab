package ports

import (
	"context"
	"io"

	"github.com/kirillkom/textmill/internal/core/domain"
)

type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	SetDetectedMediaType(ctx context.Context, id string, mediaType string) error
}

type ExtractionRepository interface {
	Save(ctx context.Context, ext *domain.Extraction) error
	GetByDocumentID(ctx context.Context, documentID string) (*domain.Extraction, error)
}

type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

type MessageQueue interface {
	PublishExtractionRequested(ctx context.Context, documentID string) error
	SubscribeExtractionRequested(ctx context.Context, handler func(context.Context, string) error) error
}

// LineageRecorder persists a best-effort provenance trail of what was
// extracted from what. Implementations must tolerate being skipped:
// recording failures never fail a parse.
type LineageRecorder interface {
	RecordExtraction(ctx context.Context, doc *domain.Document, ext *domain.Extraction) error
}
