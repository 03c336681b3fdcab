// Package excel extracts cell text from legacy Excel binaries (BIFF8).
// Strings are resolved through the shared string table, which may be
// split across Continue records with a fresh option-flags byte at each
// boundary. Numeric and date rendering honors the parse locale.
package excel

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"
	"unicode/utf16"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/kirillkom/textmill/internal/core/ports"
)

const (
	recBOF      = 0x0809
	recEOF      = 0x000A
	recContinue = 0x003C
	recDate1904 = 0x0022
	recFormat   = 0x041E
	recXF       = 0x00E0
	recSST      = 0x00FC
	recLabelSst = 0x00FD
	recLabel    = 0x0204
	recNumber   = 0x0203
	recRK       = 0x027E
	recMulRk    = 0x00BD
	recBoolErr  = 0x0205
	recFormula  = 0x0006
	recString   = 0x0207
)

type Extractor struct{}

func NewExtractor() *Extractor { return &Extractor{} }

func (e *Extractor) ExtractWorkbook(ctx context.Context, c ports.Container, locale string, sink ports.ContentSink) error {
	stream, ok := c.Stream("Workbook")
	if !ok {
		return errors.New("Workbook stream missing")
	}
	data, err := io.ReadAll(stream)
	if err != nil {
		return fmt.Errorf("read Workbook stream: %w", err)
	}

	w := &walker{
		printer: newPrinter(locale),
		sink:    sink,
		curRow:  -1,
	}
	return w.walk(ctx, data)
}

type walker struct {
	printer *message.Printer
	sink    ports.ContentSink

	sst         []string
	date1904    bool
	xfFormats   []uint16
	dateFormats map[uint16]bool

	curRow         int
	cells          []string
	pendingFormula bool
	sinkErr        error
}

func (w *walker) walk(ctx context.Context, data []byte) error {
	if len(data) < 4 || binary.LittleEndian.Uint16(data[0:2]) != recBOF {
		return errors.New("Workbook stream does not start with BOF")
	}
	w.dateFormats = builtinDateFormats()

	pos := 0
	for pos+4 <= len(data) {
		if err := ctx.Err(); err != nil {
			return err
		}
		id := binary.LittleEndian.Uint16(data[pos : pos+2])
		size := int(binary.LittleEndian.Uint16(data[pos+2 : pos+4]))
		if pos+4+size > len(data) {
			return errors.New("record overruns Workbook stream")
		}
		payload := data[pos+4 : pos+4+size]
		pos += 4 + size

		switch id {
		case recSST:
			// Gather the record plus its Continue tail before parsing.
			segs := [][]byte{payload}
			for pos+4 <= len(data) && binary.LittleEndian.Uint16(data[pos:pos+2]) == recContinue {
				contSize := int(binary.LittleEndian.Uint16(data[pos+2 : pos+4]))
				if pos+4+contSize > len(data) {
					return errors.New("Continue record overruns Workbook stream")
				}
				segs = append(segs, data[pos+4:pos+4+contSize])
				pos += 4 + contSize
			}
			if err := w.parseSST(segs); err != nil {
				return err
			}
		case recDate1904:
			w.date1904 = len(payload) > 0 && payload[0]&1 == 1
		case recFormat:
			w.noteFormat(payload)
		case recXF:
			if len(payload) >= 4 {
				w.xfFormats = append(w.xfFormats, binary.LittleEndian.Uint16(payload[2:4]))
			}
		case recLabelSst:
			if len(payload) >= 10 {
				isst := binary.LittleEndian.Uint32(payload[6:10])
				if int(isst) < len(w.sst) {
					w.cell(rowOf(payload), w.sst[isst])
				}
			}
		case recLabel:
			if len(payload) >= 9 {
				if s, _, err := parseUnicodeString(payload, 6); err == nil {
					w.cell(rowOf(payload), s)
				}
			}
		case recNumber:
			if len(payload) >= 14 {
				v := math.Float64frombits(binary.LittleEndian.Uint64(payload[6:14]))
				w.cell(rowOf(payload), w.render(v, xfOf(payload)))
			}
		case recRK:
			if len(payload) >= 10 {
				rk := binary.LittleEndian.Uint32(payload[6:10])
				w.cell(rowOf(payload), w.render(decodeRK(rk), xfOf(payload)))
			}
		case recMulRk:
			w.mulRk(payload)
		case recBoolErr:
			if len(payload) >= 8 {
				w.cell(rowOf(payload), boolErrText(payload[6], payload[7]))
			}
		case recFormula:
			w.formula(payload)
		case recString:
			if w.pendingFormula {
				w.pendingFormula = false
				if s, _, err := parseUnicodeString(payload, 0); err == nil {
					w.appendCell(s)
				}
			}
		case recEOF:
			w.flushRow()
		}
	}
	w.flushRow()
	return w.sinkErr
}

func (w *walker) mulRk(payload []byte) {
	// rw, colFirst, then 6-byte (ixfe, rk) pairs, then colLast.
	if len(payload) < 12 {
		return
	}
	row := int(binary.LittleEndian.Uint16(payload[0:2]))
	n := (len(payload) - 6) / 6
	for k := 0; k < n; k++ {
		off := 4 + 6*k
		ixfe := binary.LittleEndian.Uint16(payload[off : off+2])
		rk := binary.LittleEndian.Uint32(payload[off+2 : off+6])
		w.cell(row, w.render(decodeRK(rk), ixfe))
	}
}

func (w *walker) formula(payload []byte) {
	if len(payload) < 14 {
		return
	}
	cached := payload[6:14]
	if binary.LittleEndian.Uint16(cached[6:8]) == 0xFFFF {
		switch cached[0] {
		case 0: // string result follows in a String record
			if row := rowOf(payload); row != w.curRow {
				w.flushRow()
				w.curRow = row
			}
			w.pendingFormula = true
		case 1:
			w.cell(rowOf(payload), boolErrText(cached[2], 0))
		case 2:
			w.cell(rowOf(payload), boolErrText(cached[2], 1))
		}
		return
	}
	v := math.Float64frombits(binary.LittleEndian.Uint64(cached))
	w.cell(rowOf(payload), w.render(v, xfOf(payload)))
}

func rowOf(payload []byte) int {
	return int(binary.LittleEndian.Uint16(payload[0:2]))
}

func xfOf(payload []byte) uint16 {
	return binary.LittleEndian.Uint16(payload[4:6])
}

// cell registers a value, flushing the previous row when the row index
// moves.
func (w *walker) cell(row int, value string) {
	if row != w.curRow {
		w.flushRow()
		w.curRow = row
	}
	w.appendCell(value)
}

func (w *walker) appendCell(value string) {
	w.cells = append(w.cells, value)
}

func (w *walker) flushRow() {
	if len(w.cells) == 0 {
		return
	}
	line := strings.TrimRight(strings.Join(w.cells, "\t"), "\t ")
	w.cells = w.cells[:0]
	if line == "" {
		return
	}
	if w.sinkErr == nil {
		w.sinkErr = w.sink.Paragraph(line)
	}
}

func (w *walker) render(v float64, ixfe uint16) string {
	if int(ixfe) < len(w.xfFormats) && w.dateFormats[w.xfFormats[ixfe]] {
		return w.renderDate(v)
	}
	return w.printer.Sprint(number.Decimal(v))
}

func (w *walker) renderDate(serial float64) string {
	epoch := time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)
	if w.date1904 {
		epoch = time.Date(1904, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	t := epoch.Add(time.Duration(serial * 24 * float64(time.Hour)))
	if frac := serial - math.Floor(serial); frac > 1e-9 {
		return t.Format("2006-01-02 15:04:05")
	}
	return t.Format("2006-01-02")
}

// noteFormat marks custom number formats whose pattern contains date or
// time tokens.
func (w *walker) noteFormat(payload []byte) {
	if len(payload) < 5 {
		return
	}
	ifmt := binary.LittleEndian.Uint16(payload[0:2])
	pattern, _, err := parseUnicodeString(payload, 2)
	if err != nil {
		return
	}
	lower := strings.ToLower(pattern)
	if strings.ContainsAny(lower, "ymdhs") && !strings.Contains(lower, "general") {
		w.dateFormats[ifmt] = true
	}
}

func builtinDateFormats() map[uint16]bool {
	set := make(map[uint16]bool)
	for ifmt := uint16(14); ifmt <= 22; ifmt++ {
		set[ifmt] = true
	}
	for ifmt := uint16(45); ifmt <= 47; ifmt++ {
		set[ifmt] = true
	}
	return set
}

// parseSST reads the shared string table across Continue segments. When a
// string's character run crosses a segment boundary, the new segment
// opens with a fresh option-flags byte.
func (w *walker) parseSST(segs [][]byte) error {
	r := &segReader{segs: segs}
	if _, err := r.u32(); err != nil { // cstTotal
		return err
	}
	unique, err := r.u32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < unique; i++ {
		s, err := r.readString()
		if err != nil {
			return fmt.Errorf("shared string %d: %w", i, err)
		}
		w.sst = append(w.sst, s)
	}
	return nil
}

type segReader struct {
	segs [][]byte
	si   int
	off  int
}

func (r *segReader) u8() (byte, error) {
	for r.si < len(r.segs) && r.off >= len(r.segs[r.si]) {
		r.si++
		r.off = 0
	}
	if r.si >= len(r.segs) {
		return 0, io.ErrUnexpectedEOF
	}
	b := r.segs[r.si][r.off]
	r.off++
	return b, nil
}

func (r *segReader) u16() (uint16, error) {
	lo, err := r.u8()
	if err != nil {
		return 0, err
	}
	hi, err := r.u8()
	if err != nil {
		return 0, err
	}
	return uint16(lo) | uint16(hi)<<8, nil
}

func (r *segReader) u32() (uint32, error) {
	lo, err := r.u16()
	if err != nil {
		return 0, err
	}
	hi, err := r.u16()
	if err != nil {
		return 0, err
	}
	return uint32(lo) | uint32(hi)<<16, nil
}

func (r *segReader) skip(n int) error {
	for i := 0; i < n; i++ {
		if _, err := r.u8(); err != nil {
			return err
		}
	}
	return nil
}

// atBoundary reports whether the next byte starts a new segment.
func (r *segReader) atBoundary() bool {
	return r.si < len(r.segs) && r.off >= len(r.segs[r.si])
}

func (r *segReader) readString() (string, error) {
	cch, err := r.u16()
	if err != nil {
		return "", err
	}
	flags, err := r.u8()
	if err != nil {
		return "", err
	}
	var cRun uint16
	var cbExt uint32
	if flags&0x08 != 0 {
		if cRun, err = r.u16(); err != nil {
			return "", err
		}
	}
	if flags&0x04 != 0 {
		if cbExt, err = r.u32(); err != nil {
			return "", err
		}
	}

	highByte := flags&0x01 != 0
	runes := make([]uint16, 0, cch)
	for read := uint16(0); read < cch; read++ {
		if r.atBoundary() {
			// Continued character run: re-read the option flags.
			b, err := r.u8()
			if err != nil {
				return "", err
			}
			highByte = b&0x01 != 0
		}
		if highByte {
			u, err := r.u16()
			if err != nil {
				return "", err
			}
			runes = append(runes, u)
		} else {
			b, err := r.u8()
			if err != nil {
				return "", err
			}
			runes = append(runes, uint16(b))
		}
	}

	if err := r.skip(int(cRun) * 4); err != nil {
		return "", err
	}
	if err := r.skip(int(cbExt)); err != nil {
		return "", err
	}
	return string(utf16.Decode(runes)), nil
}

// parseUnicodeString decodes a non-continued XLUnicodeString at pos.
func parseUnicodeString(data []byte, pos int) (string, int, error) {
	if pos+3 > len(data) {
		return "", 0, io.ErrUnexpectedEOF
	}
	cch := int(binary.LittleEndian.Uint16(data[pos : pos+2]))
	flags := data[pos+2]
	pos += 3

	var cRun, cbExt int
	if flags&0x08 != 0 {
		if pos+2 > len(data) {
			return "", 0, io.ErrUnexpectedEOF
		}
		cRun = int(binary.LittleEndian.Uint16(data[pos : pos+2]))
		pos += 2
	}
	if flags&0x04 != 0 {
		if pos+4 > len(data) {
			return "", 0, io.ErrUnexpectedEOF
		}
		cbExt = int(binary.LittleEndian.Uint32(data[pos : pos+4]))
		pos += 4
	}

	var s string
	if flags&0x01 != 0 {
		if pos+2*cch > len(data) {
			return "", 0, io.ErrUnexpectedEOF
		}
		units := make([]uint16, cch)
		for i := 0; i < cch; i++ {
			units[i] = binary.LittleEndian.Uint16(data[pos+2*i : pos+2*i+2])
		}
		s = string(utf16.Decode(units))
		pos += 2 * cch
	} else {
		if pos+cch > len(data) {
			return "", 0, io.ErrUnexpectedEOF
		}
		units := make([]uint16, cch)
		for i := 0; i < cch; i++ {
			units[i] = uint16(data[pos+i])
		}
		s = string(utf16.Decode(units))
		pos += cch
	}
	pos += cRun*4 + cbExt
	return s, pos, nil
}

func decodeRK(rk uint32) float64 {
	var v float64
	if rk&0x02 != 0 {
		v = float64(int32(rk) >> 2)
	} else {
		v = math.Float64frombits(uint64(rk&0xFFFFFFFC) << 32)
	}
	if rk&0x01 != 0 {
		v /= 100
	}
	return v
}

func boolErrText(value, isErr byte) string {
	if isErr == 0 {
		if value != 0 {
			return "TRUE"
		}
		return "FALSE"
	}
	if text, ok := biffErrors[value]; ok {
		return text
	}
	return "#ERR!"
}

var biffErrors = map[byte]string{
	0x00: "#NULL!",
	0x07: "#DIV/0!",
	0x0F: "#VALUE!",
	0x17: "#REF!",
	0x1D: "#NAME?",
	0x24: "#NUM!",
	0x2A: "#N/A",
}

func newPrinter(locale string) *message.Printer {
	tag, err := language.Parse(locale)
	if err != nil || locale == "" {
		tag = language.Und
	}
	return message.NewPrinter(tag)
}
