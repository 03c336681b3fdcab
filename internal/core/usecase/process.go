package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/kirillkom/textmill/internal/core/domain"
	"github.com/kirillkom/textmill/internal/core/ports"
)

type ProcessDocumentUseCase struct {
	repo        ports.DocumentRepository
	extractions ports.ExtractionRepository
	storage     ports.ObjectStorage
	extractor   ports.TextExtractionService
	lineage     ports.LineageRecorder
	locale      string
	logger      *slog.Logger
}

// NewProcessDocumentUseCase wires the worker-side pipeline. lineage may be
// nil when no graph backend is configured.
func NewProcessDocumentUseCase(
	repo ports.DocumentRepository,
	extractions ports.ExtractionRepository,
	storage ports.ObjectStorage,
	extractor ports.TextExtractionService,
	lineage ports.LineageRecorder,
	locale string,
	logger *slog.Logger,
) *ProcessDocumentUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessDocumentUseCase{
		repo:        repo,
		extractions: extractions,
		storage:     storage,
		extractor:   extractor,
		lineage:     lineage,
		locale:      locale,
		logger:      logger,
	}
}

func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) error {
	if err := uc.markStatus(ctx, documentID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	doc, ext, err := uc.processPipeline(ctx, documentID)
	if err != nil {
		if failErr := uc.markFailed(ctx, documentID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	uc.recordLineage(ctx, doc, ext)

	if err := uc.markStatus(ctx, documentID, domain.StatusReady, ""); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}
	return nil
}

func (uc *ProcessDocumentUseCase) processPipeline(ctx context.Context, documentID string) (*domain.Document, *domain.Extraction, error) {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch document by id: %w", err)
	}

	data, err := uc.loadBytes(ctx, doc)
	if err != nil {
		return nil, nil, err
	}

	ext, err := uc.extractor.ExtractBytes(ctx, data, uc.locale)
	if err != nil {
		return nil, nil, fmt.Errorf("extract document text: %w", err)
	}
	ext.DocumentID = doc.ID

	if err := uc.extractions.Save(ctx, ext); err != nil {
		return nil, nil, fmt.Errorf("save extraction result: %w", err)
	}
	if err := uc.repo.SetDetectedMediaType(ctx, doc.ID, ext.ContentType); err != nil {
		return nil, nil, fmt.Errorf("record detected media type: %w", err)
	}
	doc.DetectedMediaType = ext.ContentType

	return doc, ext, nil
}

func (uc *ProcessDocumentUseCase) loadBytes(ctx context.Context, doc *domain.Document) ([]byte, error) {
	reader, err := uc.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("open stored document: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read stored document: %w", err)
	}
	return data, nil
}

// recordLineage is best effort: a graph outage never fails a finished
// extraction.
func (uc *ProcessDocumentUseCase) recordLineage(ctx context.Context, doc *domain.Document, ext *domain.Extraction) {
	if uc.lineage == nil {
		return
	}
	if err := uc.lineage.RecordExtraction(ctx, doc, ext); err != nil {
		uc.logger.Warn("lineage_record_failed", "document_id", doc.ID, "error", err)
	}
}

func (uc *ProcessDocumentUseCase) markStatus(ctx context.Context, documentID string, status domain.DocumentStatus, errMessage string) error {
	return uc.repo.UpdateStatus(ctx, documentID, status, errMessage)
}

func (uc *ProcessDocumentUseCase) markFailed(ctx context.Context, documentID string, processErr error) error {
	if processErr == nil {
		return nil
	}
	return uc.markStatus(ctx, documentID, domain.StatusFailed, processErr.Error())
}
