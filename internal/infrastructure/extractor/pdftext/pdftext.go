// Package pdftext emits page text from PDF bodies.
package pdftext

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/textmill/internal/core/ports"
)

type Extractor struct{}

func NewExtractor() *Extractor { return &Extractor{} }

func (e *Extractor) ExtractPDF(ctx context.Context, ra io.ReaderAt, size int64, sink ports.ContentSink) error {
	reader, err := pdf.NewReader(ra, size)
	if err != nil {
		return fmt.Errorf("open pdf: %w", err)
	}

	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return fmt.Errorf("extract page %d: %w", i, err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if err := sink.Paragraph(text); err != nil {
			return err
		}
	}
	return nil
}
