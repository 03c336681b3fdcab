package powerpoint

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"testing"
	"unicode/utf16"

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

func record(verInstance, recType uint16, payload []byte) []byte {
	out := make([]byte, 8+len(payload))
	binary.LittleEndian.PutUint16(out[0:2], verInstance)
	binary.LittleEndian.PutUint16(out[2:4], recType)
	binary.LittleEndian.PutUint32(out[4:8], uint32(len(payload)))
	copy(out[8:], payload)
	return out
}

func utf16Payload(s string) []byte {
	units := utf16.Encode([]rune(s))
	out := make([]byte, 2*len(units))
	for i, u := range units {
		binary.LittleEndian.PutUint16(out[2*i:2*i+2], u)
	}
	return out
}

func presentation(records ...[]byte) *memContainer {
	return &memContainer{entries: []*memEntry{
		{name: "PowerPoint Document", data: bytes.Join(records, nil)},
	}}
}

func TestExtractSlidesFindsNestedTextAtoms(t *testing.T) {
	inner := bytes.Join([][]byte{
		record(0x0000, recTextCharsAtom, utf16Payload("Title slide")),
		record(0x0000, recTextBytesAtom, []byte("Body text\rsecond line")),
	}, nil)
	c := presentation(
		record(0x000F, 0x03EE, inner), // slide container
		record(0x0000, recCString, utf16Payload("comment")),
	)

	sink := &collectSink{}
	if err := NewExtractor().ExtractSlides(context.Background(), c, sink); err != nil {
		t.Fatalf("ExtractSlides() error = %v", err)
	}
	want := []string{"Title slide", "Body text", "second line", "comment"}
	if len(sink.paragraphs) != len(want) {
		t.Fatalf("paragraphs = %v", sink.paragraphs)
	}
	for i, p := range want {
		if sink.paragraphs[i] != p {
			t.Fatalf("paragraph %d = %q, want %q", i, sink.paragraphs[i], p)
		}
	}
}

func TestExtractSlidesRejectsTruncatedRecord(t *testing.T) {
	data := record(0x0000, recTextCharsAtom, utf16Payload("x"))
	binary.LittleEndian.PutUint32(data[4:8], 1<<20) // length beyond stream
	c := presentation(data)

	if err := NewExtractor().ExtractSlides(context.Background(), c, &collectSink{}); err == nil {
		t.Fatalf("expected error for overrunning record")
	}
}

func TestExtractSlidesMissingStream(t *testing.T) {
	c := &memContainer{}
	if err := NewExtractor().ExtractSlides(context.Background(), c, &collectSink{}); err == nil {
		t.Fatalf("expected error when stream is absent")
	}
}
