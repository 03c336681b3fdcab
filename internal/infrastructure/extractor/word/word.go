// Package word extracts body text from legacy Word binaries (MS-DOC).
// Text lives in the WordDocument stream but is addressed through the CLX
// piece table stored in the 0Table/1Table stream; each piece is either
// CP-1252 or UTF-16LE encoded.
package word

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf16"

	"github.com/kirillkom/textmill/internal/core/domain"
	"github.com/kirillkom/textmill/internal/core/ports"
)

const (
	fibIdent = 0xA5EC

	flagEncrypted   = 0x0100
	flagWhichTblStm = 0x0200

	offFlags   = 0x0A
	offCcpText = 0x4C
	offFcClx   = 0x01A2
	offLcbClx  = 0x01A6

	pieceCompressed = 0x40000000
	pieceFcMask     = 0x3FFFFFFF
)

type Extractor struct{}

func NewExtractor() *Extractor { return &Extractor{} }

func (e *Extractor) ExtractWord(ctx context.Context, c ports.Container, sink ports.ContentSink) error {
	stream, ok := c.Stream("WordDocument")
	if !ok {
		return errors.New("WordDocument stream missing")
	}
	doc, err := io.ReadAll(stream)
	if err != nil {
		return fmt.Errorf("read WordDocument stream: %w", err)
	}
	if len(doc) < offLcbClx+4 {
		return errors.New("WordDocument stream truncated")
	}
	if binary.LittleEndian.Uint16(doc[0:2]) != fibIdent {
		return errors.New("bad FIB signature")
	}

	flags := binary.LittleEndian.Uint16(doc[offFlags : offFlags+2])
	if flags&flagEncrypted != 0 {
		return domain.WrapError(domain.ErrEncrypted, "word body", errors.New("FIB encryption flag set"))
	}

	tableName := "0Table"
	if flags&flagWhichTblStm != 0 {
		tableName = "1Table"
	}
	tableStream, ok := c.Stream(tableName)
	if !ok {
		return fmt.Errorf("%s stream missing", tableName)
	}
	table, err := io.ReadAll(tableStream)
	if err != nil {
		return fmt.Errorf("read %s stream: %w", tableName, err)
	}

	ccpText := binary.LittleEndian.Uint32(doc[offCcpText : offCcpText+4])
	fcClx := binary.LittleEndian.Uint32(doc[offFcClx : offFcClx+4])
	lcbClx := binary.LittleEndian.Uint32(doc[offLcbClx : offLcbClx+4])
	if uint64(fcClx)+uint64(lcbClx) > uint64(len(table)) {
		return errors.New("CLX out of table stream bounds")
	}

	pieces, err := parseClx(table[fcClx : fcClx+lcbClx])
	if err != nil {
		return err
	}

	text, err := decodePieces(doc, pieces, int(ccpText))
	if err != nil {
		return err
	}

	for _, para := range splitParagraphs(text) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := sink.Paragraph(para); err != nil {
			return err
		}
	}
	return nil
}

type piece struct {
	cp         int
	cpNext     int
	fc         int
	compressed bool
}

// parseClx skips any leading Prc property blocks and decodes the Pcdt's
// piece descriptor array.
func parseClx(clx []byte) ([]piece, error) {
	i := 0
	for i < len(clx) && clx[i] == 0x01 {
		if i+3 > len(clx) {
			return nil, errors.New("truncated Prc in CLX")
		}
		cb := int(binary.LittleEndian.Uint16(clx[i+1 : i+3]))
		i += 3 + cb
	}
	if i >= len(clx) || clx[i] != 0x02 {
		return nil, errors.New("CLX has no piece table")
	}
	i++
	if i+4 > len(clx) {
		return nil, errors.New("truncated piece table header")
	}
	lcb := int(binary.LittleEndian.Uint32(clx[i : i+4]))
	i += 4
	if lcb < 4 || i+lcb > len(clx) || (lcb-4)%12 != 0 {
		return nil, errors.New("bad piece table size")
	}
	n := (lcb - 4) / 12
	plc := clx[i : i+lcb]

	pieces := make([]piece, 0, n)
	for k := 0; k < n; k++ {
		cp := int(binary.LittleEndian.Uint32(plc[4*k : 4*k+4]))
		cpNext := int(binary.LittleEndian.Uint32(plc[4*(k+1) : 4*(k+1)+4]))
		pcd := plc[4*(n+1)+8*k : 4*(n+1)+8*k+8]
		fcRaw := binary.LittleEndian.Uint32(pcd[2:6])
		pieces = append(pieces, piece{
			cp:         cp,
			cpNext:     cpNext,
			fc:         int(fcRaw & pieceFcMask),
			compressed: fcRaw&pieceCompressed != 0,
		})
	}
	return pieces, nil
}

// decodePieces walks the piece table in CP order, stopping after ccpText
// characters of main document text.
func decodePieces(doc []byte, pieces []piece, ccpText int) (string, error) {
	var sb strings.Builder
	remaining := ccpText

	for _, p := range pieces {
		if remaining <= 0 {
			break
		}
		count := p.cpNext - p.cp
		if count <= 0 {
			continue
		}
		if count > remaining {
			count = remaining
		}
		if p.compressed {
			start := p.fc / 2
			end := start + count
			if start < 0 || end > len(doc) {
				return "", errors.New("compressed piece out of bounds")
			}
			for _, b := range doc[start:end] {
				sb.WriteRune(cp1252Rune(b))
			}
		} else {
			end := p.fc + 2*count
			if p.fc < 0 || end > len(doc) {
				return "", errors.New("unicode piece out of bounds")
			}
			units := make([]uint16, count)
			for j := 0; j < count; j++ {
				units[j] = binary.LittleEndian.Uint16(doc[p.fc+2*j : p.fc+2*j+2])
			}
			sb.WriteString(string(utf16.Decode(units)))
		}
		remaining -= count
	}
	return sb.String(), nil
}

// splitParagraphs breaks on paragraph and cell marks, dropping control
// characters Word embeds in the text run.
func splitParagraphs(text string) []string {
	var out []string
	var sb strings.Builder

	flush := func() {
		para := strings.TrimSpace(sb.String())
		sb.Reset()
		if para != "" {
			out = append(out, para)
		}
	}

	for _, r := range text {
		switch r {
		case '\r', 0x07:
			flush()
		case 0x0B:
			sb.WriteByte('\n')
		case 0x00, 0x13, 0x14, 0x15, 0x01, 0x08:
			// field and object markers carry no text
		default:
			sb.WriteRune(r)
		}
	}
	flush()
	return out
}

// cp1252Rune maps a CP-1252 byte to its rune; the 0x80..0x9F block is the
// only part that differs from Latin-1.
func cp1252Rune(b byte) rune {
	if b < 0x80 || b > 0x9F {
		return rune(b)
	}
	return cp1252High[b-0x80]
}

var cp1252High = [32]rune{
	0x20AC, 0xFFFD, 0x201A, 0x0192, 0x201E, 0x2026, 0x2020, 0x2021,
	0x02C6, 0x2030, 0x0160, 0x2039, 0x0152, 0xFFFD, 0x017D, 0xFFFD,
	0xFFFD, 0x2018, 0x2019, 0x201C, 0x201D, 0x2022, 0x2013, 0x2014,
	0x02DC, 0x2122, 0x0161, 0x203A, 0x0153, 0xFFFD, 0x017E, 0x0178,
}
