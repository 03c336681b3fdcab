package usecase

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/kirillkom/textmill/internal/core/domain"
	"github.com/kirillkom/textmill/internal/core/ports"
)

// ExtractUseCase routes an uploaded byte image to the right parser by
// signature: compound containers go through the Office orchestrator, zip
// packages straight to the package parser, PDFs and plain text to their
// extractors. The sniffer decides, never the file extension.
type ExtractUseCase struct {
	office *OfficeExtractor
	pkg    ports.PackageParser
	pdf    ports.PDFExtractor
	plain  ports.PlainTextExtractor
}

func NewExtractUseCase(
	office *OfficeExtractor,
	pkg ports.PackageParser,
	pdf ports.PDFExtractor,
	plain ports.PlainTextExtractor,
) *ExtractUseCase {
	return &ExtractUseCase{
		office: office,
		pkg:    pkg,
		pdf:    pdf,
		plain:  plain,
	}
}

// ExtractToSink parses data into an externally supplied sink and metadata
// record. The sink receives exactly one StartDocument/EndDocument framing
// pair on success; output already emitted before a fatal error stands as
// written and must be treated as unreliable.
func (uc *ExtractUseCase) ExtractToSink(
	ctx context.Context,
	data []byte,
	locale string,
	sink ports.ContentSink,
	meta domain.Metadata,
) error {
	switch domain.SniffFormat(data) {
	case domain.FormatCompound:
		src := Source{Data: bytes.NewReader(data), Size: int64(len(data))}
		return uc.office.Parse(ctx, src, sink, meta, ParseOptions{Locale: locale})

	case domain.FormatPackage:
		return uc.framed(sink, func() error {
			if err := uc.pkg.ParsePackage(ctx, bytes.NewReader(data), sink, meta); err != nil {
				return domain.WrapError(domain.ErrExtractor, "package extraction", err)
			}
			if pkgType := meta.Get(domain.MetaPackageContentType); pkgType != "" && !meta.Has(domain.MetaContentType) {
				meta.Set(domain.MetaContentType, pkgType)
			}
			return nil
		})

	case domain.FormatPDF:
		return uc.framed(sink, func() error {
			if err := uc.pdf.ExtractPDF(ctx, bytes.NewReader(data), int64(len(data)), sink); err != nil {
				return domain.WrapError(domain.ErrExtractor, "pdf extraction", err)
			}
			meta.Set(domain.MetaContentType, "application/pdf")
			return nil
		})

	case domain.FormatText:
		return uc.framed(sink, func() error {
			if err := uc.plain.ExtractPlainText(ctx, data, sink); err != nil {
				return domain.WrapError(domain.ErrExtractor, "plaintext extraction", err)
			}
			meta.Set(domain.MetaContentType, "text/plain")
			return nil
		})
	}

	return domain.WrapError(domain.ErrBadFormat, "detect source format", errors.New("unrecognized signature"))
}

// ExtractBytes parses data and collects the result in memory.
func (uc *ExtractUseCase) ExtractBytes(ctx context.Context, data []byte, locale string) (*domain.Extraction, error) {
	sink := &blockSink{}
	meta := domain.NewMetadata()
	if err := uc.ExtractToSink(ctx, data, locale, sink, meta); err != nil {
		return nil, err
	}
	return &domain.Extraction{
		ContentType: meta.Get(domain.MetaContentType),
		Blocks:      sink.blocks,
		Metadata:    meta,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// framed wraps the non-compound routes in the document open/close pair;
// the compound route frames inside the orchestrator itself.
func (uc *ExtractUseCase) framed(sink ports.ContentSink, fn func() error) error {
	if err := sink.StartDocument(); err != nil {
		return err
	}
	if err := fn(); err != nil {
		return err
	}
	return sink.EndDocument()
}

// blockSink collects paragraphs in memory for the synchronous API.
type blockSink struct {
	blocks []string
	open   bool
}

func (s *blockSink) StartDocument() error {
	s.open = true
	return nil
}

func (s *blockSink) Paragraph(text string) error {
	s.blocks = append(s.blocks, text)
	return nil
}

func (s *blockSink) EndDocument() error {
	s.open = false
	return nil
}
