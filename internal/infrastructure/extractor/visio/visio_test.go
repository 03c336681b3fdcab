package visio

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"strings"
	"testing"
	"unicode/utf16"

	"github.com/kirillkom/textmill/internal/core/ports"
)

type pathContainer struct {
	streams map[string][]byte
}

func (c *pathContainer) Root() []ports.ContainerEntry { return nil }

func (c *pathContainer) Entry(path ...string) (ports.ContainerEntry, bool) { return nil, false }

func (c *pathContainer) Stream(path ...string) (io.Reader, bool) {
	data, ok := c.streams[strings.Join(path, "/")]
	if !ok {
		return nil, false
	}
	return bytes.NewReader(data), true
}

func (c *pathContainer) Close() error { return nil }

func utf16Bytes(s string) []byte {
	units := utf16.Encode([]rune(s))
	out := make([]byte, 2*len(units))
	for i, u := range units {
		binary.LittleEndian.PutUint16(out[2*i:2*i+2], u)
	}
	return out
}

// literals wraps raw bytes in all-literal LZ77 groups.
func literals(raw []byte) []byte {
	var out []byte
	for len(raw) > 0 {
		n := len(raw)
		if n > 8 {
			n = 8
		}
		out = append(out, 0xFF)
		out = append(out, raw[:n]...)
		raw = raw[n:]
	}
	return out
}

func visioStream(compressed []byte) []byte {
	header := make([]byte, headerSize)
	copy(header, visioMagic)
	return append(header, compressed...)
}

func TestExtractVisioRecoversTextRuns(t *testing.T) {
	var raw bytes.Buffer
	raw.Write(utf16Bytes("Drawing label"))
	raw.Write([]byte{0x00, 0x00, 0x03, 0x00})
	raw.Write(utf16Bytes("Second shape"))

	c := &pathContainer{streams: map[string][]byte{
		"VisioDocument": visioStream(literals(raw.Bytes())),
	}}

	got, err := NewExtractor().ExtractVisio(context.Background(), c)
	if err != nil {
		t.Fatalf("ExtractVisio() error = %v", err)
	}
	if len(got) != 2 || got[0] != "Drawing label" || got[1] != "Second shape" {
		t.Fatalf("runs = %v", got)
	}
}

func TestExtractVisioRejectsBadSignature(t *testing.T) {
	c := &pathContainer{streams: map[string][]byte{
		"VisioDocument": make([]byte, 64),
	}}
	if _, err := NewExtractor().ExtractVisio(context.Background(), c); err == nil {
		t.Fatalf("expected error for missing magic")
	}
}

func TestDecompressBackReference(t *testing.T) {
	// Three literals then a reference re-reading them from the window.
	compressed := []byte{0x07, 'a', 'b', 'c', 0xEE, 0xF0}
	got := decompress(compressed)
	if string(got) != "abcabc" {
		t.Fatalf("decompress = %q", got)
	}
}

func TestDecompressTruncatedReference(t *testing.T) {
	got := decompress([]byte{0x00, 0xEE})
	if len(got) != 0 {
		t.Fatalf("decompress = %q", got)
	}
}
