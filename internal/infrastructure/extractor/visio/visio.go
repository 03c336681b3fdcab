// Package visio recovers drawing text from Visio binaries. The chunk
// grammar inside VisioDocument is undocumented, so recovery is
// best-effort: decompress the stream's LZ77 payload and scan it for
// UTF-16LE text runs.
package visio

import (
	"bytes"
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

const (
	visioMagic = "Visio (TM) Drawing"

	// Compressed payload begins past the fixed stream header.
	headerSize = 0x24

	windowSize = 4096
	windowInit = 4078

	minRun = 4
)

type Extractor struct{}

func NewExtractor() *Extractor { return &Extractor{} }

func (e *Extractor) ExtractVisio(ctx context.Context, c ports.Container) ([]string, error) {
	stream, ok := c.Stream("VisioDocument")
	if !ok {
		return nil, errors.New("VisioDocument stream missing")
	}
	data, err := io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("read VisioDocument stream: %w", err)
	}
	if !bytes.HasPrefix(data, []byte(visioMagic)) {
		return nil, errors.New("bad Visio signature")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(data) <= headerSize {
		return nil, nil
	}
	return scanTextRuns(decompress(data[headerSize:])), nil
}

// decompress expands the LZ77 variant used by Visio: a flags byte guards
// eight items, set bits are literals, clear bits are (offset, length)
// references into a 4096-byte ring buffer.
func decompress(data []byte) []byte {
	window := make([]byte, windowSize)
	wpos := windowInit
	var out []byte

	pos := 0
	for pos < len(data) {
		flags := data[pos]
		pos++
		for bit := 0; bit < 8 && pos < len(data); bit++ {
			if flags&(1<<bit) != 0 {
				b := data[pos]
				pos++
				out = append(out, b)
				window[wpos] = b
				wpos = (wpos + 1) % windowSize
				continue
			}
			if pos+2 > len(data) {
				return out
			}
			b1 := int(data[pos])
			b2 := int(data[pos+1])
			pos += 2
			src := b1 | (b2&0xF0)<<4
			length := b2&0x0F + 3
			for i := 0; i < length; i++ {
				b := window[(src+i)%windowSize]
				out = append(out, b)
				window[wpos] = b
				wpos = (wpos + 1) % windowSize
			}
		}
	}
	return out
}

// scanTextRuns keeps maximal runs of printable UTF-16LE units, one string
// per run.
func scanTextRuns(data []byte) []string {
	var runs []string
	var run []uint16

	flush := func() {
		if len(run) >= minRun {
			text := strings.TrimSpace(string(utf16.Decode(run)))
			if text != "" {
				runs = append(runs, text)
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
	return runs
}

func isTextUnit(u uint16) bool {
	if u == '\t' || u == ' ' {
		return true
	}
	r := rune(u)
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsPunct(r) || unicode.IsSymbol(r)
}
