package ports

import (
	"context"
	"io"

	"github.com/kirillkom/textmill/internal/core/domain"
)

// ContentSink receives one parse's ordered output: a document-open call,
// any number of paragraph blocks, and a document-close call, delivered in
// call order.
type ContentSink interface {
	StartDocument() error
	Paragraph(text string) error
	EndDocument() error
}

// SummaryExtractor runs the metadata pre-pass over the property-set
// streams, before any document body is touched.
type SummaryExtractor interface {
	ExtractSummary(ctx context.Context, c Container, meta domain.Metadata) error
}

// WordExtractor streams the Word body text into the sink.
type WordExtractor interface {
	ExtractWord(ctx context.Context, c Container, sink ContentSink) error
}

// SlideExtractor streams PowerPoint slide text into the sink.
type SlideExtractor interface {
	ExtractSlides(ctx context.Context, c Container, sink ContentSink) error
}

// WorkbookExtractor renders spreadsheet cells into the sink. Numeric and
// date rendering is locale-sensitive; an empty locale means the platform
// default.
type WorkbookExtractor interface {
	ExtractWorkbook(ctx context.Context, c Container, locale string, sink ContentSink) error
}

// VisioExtractor recovers drawing text as a sequence of strings.
type VisioExtractor interface {
	ExtractVisio(ctx context.Context, c Container) ([]string, error)
}

// PublisherExtractor recovers the Publisher text content as one block.
type PublisherExtractor interface {
	ExtractPublisher(ctx context.Context, c Container) (string, error)
}

// MessageExtractor handles a whole Outlook message in one invocation,
// walking every property stream itself and contributing both body text
// and metadata fields.
type MessageExtractor interface {
	ExtractMessage(ctx context.Context, c Container, sink ContentSink, meta domain.Metadata) error
}

// Decryptor unlocks an encrypted Office payload and exposes the decrypted
// package bytes.
type Decryptor interface {
	Unlock(password string) (bool, error)
	OpenPackage() (io.Reader, error)
}

// DecryptorSource reads the encryption descriptor out of a container that
// classified as Encrypted and builds a Decryptor for it.
type DecryptorSource interface {
	DecryptorFor(ctx context.Context, c Container) (Decryptor, error)
}

// PackageParser parses a zip-based Office package, emitting paragraphs
// into an already-open sink. It never frames the document itself: the
// caller owns the StartDocument/EndDocument pair.
type PackageParser interface {
	ParsePackage(ctx context.Context, r io.Reader, sink ContentSink, meta domain.Metadata) error
}

// PDFExtractor emits page text paragraphs from a PDF image.
type PDFExtractor interface {
	ExtractPDF(ctx context.Context, ra io.ReaderAt, size int64, sink ContentSink) error
}

// PlainTextExtractor emits paragraphs from a UTF-8 text body.
type PlainTextExtractor interface {
	ExtractPlainText(ctx context.Context, data []byte, sink ContentSink) error
}
