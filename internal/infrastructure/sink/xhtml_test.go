package sink

import (
	"bytes"
	"strings"
	"testing"

	"golang.org/x/net/html"
)

func TestXHTMLDocument(t *testing.T) {
	var buf bytes.Buffer
	s := NewXHTML(&buf)
	if err := s.StartDocument(); err != nil {
		t.Fatalf("StartDocument() error = %v", err)
	}
	if err := s.Paragraph("plain text"); err != nil {
		t.Fatalf("Paragraph() error = %v", err)
	}
	if err := s.Paragraph(`a < b & "c"`); err != nil {
		t.Fatalf("Paragraph() error = %v", err)
	}
	if err := s.EndDocument(); err != nil {
		t.Fatalf("EndDocument() error = %v", err)
	}

	doc, err := html.Parse(&buf)
	if err != nil {
		t.Fatalf("output does not parse: %v", err)
	}

	var paragraphs []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "p" {
			var sb strings.Builder
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.TextNode {
					sb.WriteString(c.Data)
				}
			}
			paragraphs = append(paragraphs, sb.String())
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if len(paragraphs) != 2 || paragraphs[0] != "plain text" || paragraphs[1] != `a < b & "c"` {
		t.Fatalf("paragraphs = %v", paragraphs)
	}
}
