package plaintext

import (
	"context"
	"testing"
)

type collectSink struct {
	paragraphs []string
}

func (s *collectSink) StartDocument() error { return nil }
func (s *collectSink) Paragraph(text string) error {
	s.paragraphs = append(s.paragraphs, text)
	return nil
}
func (s *collectSink) EndDocument() error { return nil }

func TestExtractPlainTextSplitsOnBlankLines(t *testing.T) {
	sink := &collectSink{}
	data := []byte("first block\nstill first\r\n\r\nsecond block\n\n\n")
	if err := NewExtractor().ExtractPlainText(context.Background(), data, sink); err != nil {
		t.Fatalf("ExtractPlainText() error = %v", err)
	}
	if len(sink.paragraphs) != 2 {
		t.Fatalf("paragraphs = %v", sink.paragraphs)
	}
	if sink.paragraphs[0] != "first block\nstill first" || sink.paragraphs[1] != "second block" {
		t.Fatalf("paragraphs = %v", sink.paragraphs)
	}
}

func TestExtractPlainTextEmptyInput(t *testing.T) {
	sink := &collectSink{}
	if err := NewExtractor().ExtractPlainText(context.Background(), nil, sink); err != nil {
		t.Fatalf("ExtractPlainText() error = %v", err)
	}
	if len(sink.paragraphs) != 0 {
		t.Fatalf("paragraphs = %v", sink.paragraphs)
	}
}
