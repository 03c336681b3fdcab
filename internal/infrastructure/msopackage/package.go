// Package msopackage parses zip-based Office packages (OOXML). It is
// used both for documents submitted as zip directly and for the payload
// recovered from the encrypted-container branch.
package msopackage

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/textmill/internal/core/domain"
	"github.com/kirillkom/textmill/internal/core/ports"
)

const (
	mediaTypeDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mediaTypeXlsx = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mediaTypePptx = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
)

type Parser struct{}

func NewParser() *Parser { return &Parser{} }

func (p *Parser) ParsePackage(ctx context.Context, r io.Reader, sink ports.ContentSink, meta domain.Metadata) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read package: %w", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return domain.WrapError(domain.ErrBadFormat, "open package", err)
	}

	switch {
	case hasFile(zr, "word/document.xml"):
		meta.Set(domain.MetaPackageContentType, mediaTypeDocx)
		return parseWordPackage(ctx, zr, sink)
	case hasFile(zr, "xl/workbook.xml"):
		meta.Set(domain.MetaPackageContentType, mediaTypeXlsx)
		return parseSpreadsheetPackage(ctx, data, sink)
	case hasFile(zr, "ppt/presentation.xml"):
		meta.Set(domain.MetaPackageContentType, mediaTypePptx)
		return parseSlidesPackage(ctx, zr, sink)
	}
	return domain.WrapError(domain.ErrBadFormat, "classify package", fmt.Errorf("unrecognized package layout"))
}

func hasFile(zr *zip.Reader, name string) bool {
	for _, f := range zr.File {
		if f.Name == name {
			return true
		}
	}
	return false
}

func openFile(zr *zip.Reader, name string) (io.ReadCloser, error) {
	for _, f := range zr.File {
		if f.Name == name {
			return f.Open()
		}
	}
	return nil, fmt.Errorf("package member %q missing", name)
}

// parseWordPackage walks word/document.xml, emitting one paragraph per
// <w:p> element from its <w:t> runs.
func parseWordPackage(ctx context.Context, zr *zip.Reader, sink ports.ContentSink) error {
	f, err := openFile(zr, "word/document.xml")
	if err != nil {
		return err
	}
	defer f.Close()
	return emitXMLParagraphs(ctx, f, "p", "t", sink)
}

func parseSlidesPackage(ctx context.Context, zr *zip.Reader, sink ports.ContentSink) error {
	var slides []string
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, "ppt/slides/slide") && strings.HasSuffix(f.Name, ".xml") {
			slides = append(slides, f.Name)
		}
	}
	sort.Slice(slides, func(i, j int) bool { return slideNumber(slides[i]) < slideNumber(slides[j]) })

	for _, name := range slides {
		if err := ctx.Err(); err != nil {
			return err
		}
		f, err := openFile(zr, name)
		if err != nil {
			return err
		}
		err = emitXMLParagraphs(ctx, f, "p", "t", sink)
		f.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func slideNumber(name string) int {
	digits := strings.TrimSuffix(strings.TrimPrefix(name, "ppt/slides/slide"), ".xml")
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return n
}

func parseSpreadsheetPackage(ctx context.Context, data []byte, sink ports.ContentSink) error {
	wb, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return domain.WrapError(domain.ErrBadFormat, "open spreadsheet package", err)
	}
	defer wb.Close()

	for _, sheet := range wb.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return err
		}
		rows, err := wb.GetRows(sheet)
		if err != nil {
			return fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		for _, row := range rows {
			line := strings.TrimRight(strings.Join(row, "\t"), "\t ")
			if line == "" {
				continue
			}
			if err := sink.Paragraph(line); err != nil {
				return err
			}
		}
	}
	return nil
}

// emitXMLParagraphs streams an OOXML part, collecting character data of
// textLocal elements and flushing a paragraph at each closing paraLocal.
func emitXMLParagraphs(ctx context.Context, r io.Reader, paraLocal, textLocal string, sink ports.ContentSink) error {
	dec := xml.NewDecoder(r)
	var sb strings.Builder
	inText := 0

	flush := func() error {
		text := strings.TrimSpace(sb.String())
		sb.Reset()
		if text == "" {
			return nil
		}
		return sink.Paragraph(text)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return domain.WrapError(domain.ErrBadFormat, "decode package xml", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == textLocal {
				inText++
			}
		case xml.EndElement:
			switch t.Name.Local {
			case textLocal:
				if inText > 0 {
					inText--
				}
			case paraLocal:
				if err := flush(); err != nil {
					return err
				}
			}
		case xml.CharData:
			if inText > 0 {
				sb.Write(t)
			}
		}
	}
	return flush()
}
