// Package sink provides ContentSink implementations for rendering
// extraction output.
package sink

import (
	"fmt"
	"io"

	"golang.org/x/net/html"
)

// XHTML renders the block stream as a minimal XHTML document, one <p>
// element per paragraph.
type XHTML struct {
	w     io.Writer
	paras int
}

func NewXHTML(w io.Writer) *XHTML { return &XHTML{w: w} }

// Paragraphs reports how many paragraphs were written so far.
func (s *XHTML) Paragraphs() int { return s.paras }

func (s *XHTML) StartDocument() error {
	_, err := fmt.Fprint(s.w, "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n<html xmlns=\"http://www.w3.org/1999/xhtml\">\n<body>\n")
	return err
}

func (s *XHTML) Paragraph(text string) error {
	s.paras++
	_, err := fmt.Fprintf(s.w, "<p>%s</p>\n", html.EscapeString(text))
	return err
}

func (s *XHTML) EndDocument() error {
	_, err := fmt.Fprint(s.w, "</body>\n</html>\n")
	return err
}
