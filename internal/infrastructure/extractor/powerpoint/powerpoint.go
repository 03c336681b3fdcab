// Package powerpoint extracts slide and notes text from legacy
// PowerPoint binaries. The "PowerPoint Document" stream is a tree of
// 8-byte-headed records; text lives in TextCharsAtom, TextBytesAtom and
// CString leaves.
package powerpoint

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf16"

	"github.com/kirillkom/textmill/internal/core/ports"
)

const (
	recTextCharsAtom = 0x0FA0
	recTextBytesAtom = 0x0FA8
	recCString       = 0x0FBA

	containerVersion = 0x0F
)

type Extractor struct{}

func NewExtractor() *Extractor { return &Extractor{} }

func (e *Extractor) ExtractSlides(ctx context.Context, c ports.Container, sink ports.ContentSink) error {
	stream, ok := c.Stream("PowerPoint Document")
	if !ok {
		return errors.New("PowerPoint Document stream missing")
	}
	data, err := io.ReadAll(stream)
	if err != nil {
		return fmt.Errorf("read PowerPoint Document stream: %w", err)
	}
	return walkRecords(ctx, data, sink)
}

func walkRecords(ctx context.Context, data []byte, sink ports.ContentSink) error {
	pos := 0
	for pos+8 <= len(data) {
		if err := ctx.Err(); err != nil {
			return err
		}
		verInstance := binary.LittleEndian.Uint16(data[pos : pos+2])
		recType := binary.LittleEndian.Uint16(data[pos+2 : pos+4])
		recLen := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		pos += 8
		if recLen < 0 || pos+recLen > len(data) {
			return errors.New("record overruns PowerPoint Document stream")
		}
		payload := data[pos : pos+recLen]
		pos += recLen

		if verInstance&0x0F == containerVersion {
			if err := walkRecords(ctx, payload, sink); err != nil {
				return err
			}
			continue
		}

		switch recType {
		case recTextCharsAtom, recCString:
			if err := emitText(decodeUTF16(payload), sink); err != nil {
				return err
			}
		case recTextBytesAtom:
			if err := emitText(decodeBytes(payload), sink); err != nil {
				return err
			}
		}
	}
	return nil
}

// emitText splits an atom on PowerPoint line separators and delivers each
// non-empty line as a paragraph.
func emitText(text string, sink ports.ContentSink) error {
	for _, line := range strings.FieldsFunc(text, func(r rune) bool {
		return r == '\r' || r == '\v' || r == '\n'
	}) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if err := sink.Paragraph(line); err != nil {
			return err
		}
	}
	return nil
}

func decodeUTF16(payload []byte) string {
	units := make([]uint16, len(payload)/2)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(payload[2*i : 2*i+2])
	}
	return strings.TrimRight(string(utf16.Decode(units)), "\x00")
}

// decodeBytes expands a TextBytesAtom, which stores the low byte of each
// UTF-16 unit.
func decodeBytes(payload []byte) string {
	units := make([]uint16, len(payload))
	for i, b := range payload {
		units[i] = uint16(b)
	}
	return strings.TrimRight(string(utf16.Decode(units)), "\x00")
}
