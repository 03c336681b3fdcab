// Package plaintext emits paragraphs from UTF-8 text bodies, splitting
// on blank lines.
package plaintext

import (
	"context"
	"strings"

	"github.com/kirillkom/textmill/internal/core/ports"
)

type Extractor struct{}

func NewExtractor() *Extractor { return &Extractor{} }

func (e *Extractor) ExtractPlainText(ctx context.Context, data []byte, sink ports.ContentSink) error {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")

	for _, block := range strings.Split(text, "\n\n") {
		if err := ctx.Err(); err != nil {
			return err
		}
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		if err := sink.Paragraph(block); err != nil {
			return err
		}
	}
	return nil
}
