package excel

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"math"
	"testing"

	"github.com/kirillkom/textmill/internal/core/ports"
)

type memEntry struct {
	name string
	data []byte
}

func (e *memEntry) Name() string                     { return e.name }
func (e *memEntry) IsStorage() bool                  { return false }
func (e *memEntry) Children() []ports.ContainerEntry { return nil }
func (e *memEntry) Size() int64                      { return int64(len(e.data)) }
func (e *memEntry) Open() io.Reader                  { return bytes.NewReader(e.data) }

type memContainer struct {
	entries []*memEntry
}

func (c *memContainer) Root() []ports.ContainerEntry {
	out := make([]ports.ContainerEntry, len(c.entries))
	for i, e := range c.entries {
		out[i] = e
	}
	return out
}

func (c *memContainer) Entry(path ...string) (ports.ContainerEntry, bool) {
	if len(path) != 1 {
		return nil, false
	}
	for _, e := range c.entries {
		if e.name == path[0] {
			return e, true
		}
	}
	return nil, false
}

func (c *memContainer) Stream(path ...string) (io.Reader, bool) {
	entry, ok := c.Entry(path...)
	if !ok {
		return nil, false
	}
	return entry.Open(), true
}

func (c *memContainer) Close() error { return nil }

type collectSink struct {
	paragraphs []string
}

func (s *collectSink) StartDocument() error { return nil }
func (s *collectSink) Paragraph(text string) error {
	s.paragraphs = append(s.paragraphs, text)
	return nil
}
func (s *collectSink) EndDocument() error { return nil }

func rec(id uint16, payload []byte) []byte {
	out := make([]byte, 4+len(payload))
	binary.LittleEndian.PutUint16(out[0:2], id)
	binary.LittleEndian.PutUint16(out[2:4], uint16(len(payload)))
	copy(out[4:], payload)
	return out
}

func cellHeader(row, col, ixfe uint16) []byte {
	out := make([]byte, 6)
	binary.LittleEndian.PutUint16(out[0:2], row)
	binary.LittleEndian.PutUint16(out[2:4], col)
	binary.LittleEndian.PutUint16(out[4:6], ixfe)
	return out
}

func numberRec(row, ixfe uint16, v float64) []byte {
	payload := make([]byte, 14)
	copy(payload, cellHeader(row, 0, ixfe))
	binary.LittleEndian.PutUint64(payload[6:14], math.Float64bits(v))
	return rec(recNumber, payload)
}

func xfRec(ifmt uint16) []byte {
	payload := make([]byte, 20)
	binary.LittleEndian.PutUint16(payload[2:4], ifmt)
	return rec(recXF, payload)
}

// sstRec builds an SST holding ASCII strings.
func sstRec(strs ...string) []byte {
	var payload bytes.Buffer
	head := make([]byte, 8)
	binary.LittleEndian.PutUint32(head[0:4], uint32(len(strs)))
	binary.LittleEndian.PutUint32(head[4:8], uint32(len(strs)))
	payload.Write(head)
	for _, s := range strs {
		hdr := make([]byte, 3)
		binary.LittleEndian.PutUint16(hdr[0:2], uint16(len(s)))
		payload.Write(hdr)
		payload.WriteString(s)
	}
	return rec(recSST, payload.Bytes())
}

func labelSstRec(row, ixfe uint16, isst uint32) []byte {
	payload := make([]byte, 10)
	copy(payload, cellHeader(row, 0, ixfe))
	binary.LittleEndian.PutUint32(payload[6:10], isst)
	return rec(recLabelSst, payload)
}

func workbook(records ...[]byte) *memContainer {
	var stream bytes.Buffer
	stream.Write(rec(recBOF, make([]byte, 16)))
	for _, r := range records {
		stream.Write(r)
	}
	stream.Write(rec(recEOF, nil))
	return &memContainer{entries: []*memEntry{{name: "Workbook", data: stream.Bytes()}}}
}

func extract(t *testing.T, c *memContainer, locale string) []string {
	t.Helper()
	sink := &collectSink{}
	if err := NewExtractor().ExtractWorkbook(context.Background(), c, locale, sink); err != nil {
		t.Fatalf("ExtractWorkbook() error = %v", err)
	}
	return sink.paragraphs
}

func TestExtractWorkbookRows(t *testing.T) {
	c := workbook(
		xfRec(0),
		sstRec("Hello"),
		labelSstRec(0, 0, 0),
		numberRec(0, 0, 3.5),
		numberRec(1, 0, 42),
	)

	got := extract(t, c, "")
	if len(got) != 2 || got[0] != "Hello\t3.5" || got[1] != "42" {
		t.Fatalf("rows = %v", got)
	}
}

func TestSharedStringsSpanContinueRecords(t *testing.T) {
	// "HelloWorld" split after "Hello"; the continued run re-opens with a
	// fresh option-flags byte.
	var first bytes.Buffer
	head := make([]byte, 8)
	binary.LittleEndian.PutUint32(head[0:4], 1)
	binary.LittleEndian.PutUint32(head[4:8], 1)
	first.Write(head)
	hdr := make([]byte, 3)
	binary.LittleEndian.PutUint16(hdr[0:2], 10)
	first.Write(hdr)
	first.WriteString("Hello")

	second := append([]byte{0x00}, []byte("World")...)

	c := workbook(
		xfRec(0),
		append(rec(recSST, first.Bytes()), rec(recContinue, second)...),
		labelSstRec(0, 0, 0),
	)

	got := extract(t, c, "")
	if len(got) != 1 || got[0] != "HelloWorld" {
		t.Fatalf("rows = %v", got)
	}
}

func TestDateFormattedCell(t *testing.T) {
	c := workbook(
		xfRec(0),
		xfRec(14),
		numberRec(0, 1, 36526),
	)

	got := extract(t, c, "")
	if len(got) != 1 || got[0] != "2000-01-01" {
		t.Fatalf("rows = %v", got)
	}
}

func TestLocaleNumberRendering(t *testing.T) {
	c := workbook(
		xfRec(0),
		numberRec(0, 0, 3.5),
	)

	got := extract(t, c, "de")
	if len(got) != 1 || got[0] != "3,5" {
		t.Fatalf("rows = %v", got)
	}
}

func TestBoolAndErrorCells(t *testing.T) {
	boolCell := make([]byte, 8)
	copy(boolCell, cellHeader(0, 0, 0))
	boolCell[6] = 1
	boolCell[7] = 0

	errCell := make([]byte, 8)
	copy(errCell, cellHeader(0, 1, 0))
	errCell[6] = 0x07
	errCell[7] = 1

	c := workbook(
		xfRec(0),
		rec(recBoolErr, boolCell),
		rec(recBoolErr, errCell),
	)

	got := extract(t, c, "")
	if len(got) != 1 || got[0] != "TRUE\t#DIV/0!" {
		t.Fatalf("rows = %v", got)
	}
}

func TestRejectsStreamWithoutBOF(t *testing.T) {
	c := &memContainer{entries: []*memEntry{{name: "Workbook", data: []byte("not a workbook")}}}
	if err := NewExtractor().ExtractWorkbook(context.Background(), c, "", &collectSink{}); err == nil {
		t.Fatalf("expected error for stream without BOF")
	}
}

func TestDecodeRK(t *testing.T) {
	// Integer 42 shifted left two with the integer flag.
	if v := decodeRK(42<<2 | 0x02); v != 42 {
		t.Fatalf("integer RK = %v", v)
	}
	// Same with the div-100 flag.
	if v := decodeRK(42<<2 | 0x03); v != 0.42 {
		t.Fatalf("scaled RK = %v", v)
	}
}
