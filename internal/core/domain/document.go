package domain

import "time"

type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusProcessing DocumentStatus = "processing"
	StatusReady      DocumentStatus = "ready"
	StatusFailed     DocumentStatus = "failed"
)

type Document struct {
	ID                string         `json:"id"`
	Filename          string         `json:"filename"`
	DeclaredMediaType string         `json:"declared_media_type"`
	DetectedMediaType string         `json:"detected_media_type,omitempty"`
	StoragePath       string         `json:"storage_path"`
	Status            DocumentStatus `json:"status"`
	Error             string         `json:"error,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// Extraction is the persisted outcome of one parse: the ordered text
// blocks and the single metadata record.
type Extraction struct {
	DocumentID  string    `json:"document_id,omitempty"`
	ContentType string    `json:"content_type"`
	Blocks      []string  `json:"blocks"`
	Metadata    Metadata  `json:"metadata"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

func (e *Extraction) Text() string {
	out := ""
	for i, block := range e.Blocks {
		if i > 0 {
			out += "\n"
		}
		out += block
	}
	return out
}
