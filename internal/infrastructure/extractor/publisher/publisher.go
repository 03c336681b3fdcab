// Package publisher recovers text from Publisher binaries. The text
// store lives in the Quill storage, under a QuillSub substorage holding a
// CONTENTS stream of UTF-16LE runs mixed with layout records.
package publisher

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf16"

	"github.com/kirillkom/textmill/internal/core/ports"
)

// minRun filters out the short accidental character sequences that the
// binary layout records produce.
const minRun = 3

type Extractor struct{}

func NewExtractor() *Extractor { return &Extractor{} }

func (e *Extractor) ExtractPublisher(ctx context.Context, c ports.Container) (string, error) {
	stream, ok := c.Stream("Quill", "QuillSub", "CONTENTS")
	if !ok {
		return "", errors.New("Quill CONTENTS stream missing")
	}
	data, err := io.ReadAll(stream)
	if err != nil {
		return "", fmt.Errorf("read CONTENTS stream: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return scanTextRuns(data), nil
}

// scanTextRuns walks the stream as UTF-16LE units and keeps maximal runs
// of printable text, joined as separate lines.
func scanTextRuns(data []byte) string {
	var lines []string
	var run []uint16

	flush := func() {
		if len(run) >= minRun {
			line := strings.TrimSpace(string(utf16.Decode(run)))
			if line != "" {
				lines = append(lines, line)
			}
		}
		run = run[:0]
	}

	for i := 0; i+2 <= len(data); i += 2 {
		u := binary.LittleEndian.Uint16(data[i : i+2])
		if isTextUnit(u) {
			run = append(run, u)
			continue
		}
		flush()
	}
	flush()
	return strings.Join(lines, "\n")
}

func isTextUnit(u uint16) bool {
	if u == '\t' || u == ' ' {
		return true
	}
	r := rune(u)
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsPunct(r) || unicode.IsSymbol(r)
}
