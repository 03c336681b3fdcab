package usecase

import (
	"context"
	"io"
	"testing"

	"github.com/kirillkom/textmill/internal/core/domain"
	"github.com/kirillkom/textmill/internal/core/ports"
)

type pdfFake struct {
	calls int
	text  []string
}

func (f *pdfFake) ExtractPDF(_ context.Context, _ io.ReaderAt, _ int64, sink ports.ContentSink) error {
	f.calls++
	for _, t := range f.text {
		if err := sink.Paragraph(t); err != nil {
			return err
		}
	}
	return nil
}

type plainFake struct {
	calls int
}

func (f *plainFake) ExtractPlainText(_ context.Context, data []byte, sink ports.ContentSink) error {
	f.calls++
	return sink.Paragraph(string(data))
}

type extractFixture struct {
	office *officeFixture
	pkg    *pkgFake
	pdf    *pdfFake
	plain  *plainFake
	uc     *ExtractUseCase
}

func newExtractFixture(container *fakeContainer) *extractFixture {
	fx := &extractFixture{
		office: newOfficeFixture(container),
		pkg:    &pkgFake{blocks: []string{"docx text"}, pkgType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
		pdf:    &pdfFake{text: []string{"page one"}},
		plain:  &plainFake{},
	}
	fx.uc = NewExtractUseCase(fx.office.extractor, fx.pkg, fx.pdf, fx.plain)
	return fx
}

var cfbHeader = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

func TestExtractBytesRoutesCompoundToOrchestrator(t *testing.T) {
	fx := newExtractFixture(containerWithRoot("Workbook"))

	ext, err := fx.uc.ExtractBytes(context.Background(), cfbHeader, "")
	if err != nil {
		t.Fatalf("ExtractBytes() error = %v", err)
	}
	if fx.office.workbook.calls != 1 {
		t.Fatalf("workbook calls = %d", fx.office.workbook.calls)
	}
	if ext.ContentType != "application/vnd.ms-excel" {
		t.Fatalf("content type = %q", ext.ContentType)
	}
	if len(ext.Blocks) != 1 || ext.Blocks[0] != "1\t2" {
		t.Fatalf("blocks = %v", ext.Blocks)
	}
}

func TestExtractBytesRoutesZipToPackageParser(t *testing.T) {
	fx := newExtractFixture(nil)

	ext, err := fx.uc.ExtractBytes(context.Background(), []byte("PK\x03\x04...."), "")
	if err != nil {
		t.Fatalf("ExtractBytes() error = %v", err)
	}
	if fx.pkg.calls != 1 {
		t.Fatalf("package parser calls = %d", fx.pkg.calls)
	}
	if fx.office.opener.calls != 0 {
		t.Fatalf("compound opener must not run for zip input")
	}
	if ext.ContentType != "application/vnd.openxmlformats-officedocument.wordprocessingml.document" {
		t.Fatalf("content type = %q", ext.ContentType)
	}
}

func TestExtractBytesRoutesPDF(t *testing.T) {
	fx := newExtractFixture(nil)

	ext, err := fx.uc.ExtractBytes(context.Background(), []byte("%PDF-1.4 body"), "")
	if err != nil {
		t.Fatalf("ExtractBytes() error = %v", err)
	}
	if fx.pdf.calls != 1 {
		t.Fatalf("pdf calls = %d", fx.pdf.calls)
	}
	if ext.ContentType != "application/pdf" {
		t.Fatalf("content type = %q", ext.ContentType)
	}
}

func TestExtractBytesRoutesPlainText(t *testing.T) {
	fx := newExtractFixture(nil)

	ext, err := fx.uc.ExtractBytes(context.Background(), []byte("hello world"), "")
	if err != nil {
		t.Fatalf("ExtractBytes() error = %v", err)
	}
	if fx.plain.calls != 1 {
		t.Fatalf("plain calls = %d", fx.plain.calls)
	}
	if ext.ContentType != "text/plain" {
		t.Fatalf("content type = %q", ext.ContentType)
	}
	if len(ext.Blocks) != 1 || ext.Blocks[0] != "hello world" {
		t.Fatalf("blocks = %v", ext.Blocks)
	}
}

func TestExtractBytesRejectsUnknownSignature(t *testing.T) {
	fx := newExtractFixture(nil)

	_, err := fx.uc.ExtractBytes(context.Background(), []byte{0xFF, 0xFE, 0x00, 0x80}, "")
	if !domain.IsKind(err, domain.ErrBadFormat) {
		t.Fatalf("expected ErrBadFormat, got %v", err)
	}
}

func TestExtractToSinkFramesNonCompoundRoutes(t *testing.T) {
	fx := newExtractFixture(nil)

	sink := &recordingSink{}
	err := fx.uc.ExtractToSink(context.Background(), []byte("plain"), "", sink, domain.NewMetadata())
	if err != nil {
		t.Fatalf("ExtractToSink() error = %v", err)
	}
	if len(sink.events) < 2 || sink.events[0] != "start" || sink.events[len(sink.events)-1] != "end" {
		t.Fatalf("expected framing pair around output, got %v", sink.events)
	}
}
