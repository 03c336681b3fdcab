package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kirillkom/textmill/internal/core/domain"
)

type ExtractionRepository struct {
	db *sql.DB
}

func NewExtractionRepository(db *sql.DB) *ExtractionRepository {
	return &ExtractionRepository{db: db}
}

func (r *ExtractionRepository) Save(ctx context.Context, ext *domain.Extraction) error {
	blocksJSON, err := json.Marshal(ext.Blocks)
	if err != nil {
		return fmt.Errorf("marshal blocks: %w", err)
	}
	metaJSON, err := json.Marshal(ext.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO extractions (document_id, content_type, blocks, metadata, created_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (document_id) DO UPDATE
SET content_type = EXCLUDED.content_type,
    blocks = EXCLUDED.blocks,
    metadata = EXCLUDED.metadata,
    created_at = EXCLUDED.created_at
`, ext.DocumentID, ext.ContentType, blocksJSON, metaJSON, ext.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert extraction: %w", err)
	}
	return nil
}

func (r *ExtractionRepository) GetByDocumentID(ctx context.Context, documentID string) (*domain.Extraction, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT document_id, content_type, blocks, metadata, created_at
FROM extractions
WHERE document_id = $1
`, documentID)

	var ext domain.Extraction
	var blocksRaw, metaRaw []byte

	err := row.Scan(&ext.DocumentID, &ext.ContentType, &blocksRaw, &metaRaw, &ext.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get extraction", fmt.Errorf("document %s", documentID))
		}
		return nil, fmt.Errorf("scan extraction: %w", err)
	}

	if err := json.Unmarshal(blocksRaw, &ext.Blocks); err != nil {
		return nil, fmt.Errorf("unmarshal blocks: %w", err)
	}
	if err := json.Unmarshal(metaRaw, &ext.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return &ext, nil
}
