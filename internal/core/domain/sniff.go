package domain

import (
	"bytes"
	"unicode/utf8"
)

// SourceFormat is the outer container family of an uploaded byte image,
// decided from leading bytes. File extensions are never consulted: the
// same reasoning that forces entry-name classification inside a compound
// container applies one level up.
type SourceFormat int

const (
	FormatUnknown SourceFormat = iota
	FormatCompound
	FormatPackage
	FormatPDF
	FormatText
)

var (
	compoundMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
	zipMagic      = []byte{'P', 'K', 0x03, 0x04}
	pdfMagic      = []byte("%PDF-")
)

// SniffFormat inspects leading bytes and reports the container family.
// Anything that is not a recognized binary signature but decodes as UTF-8
// is treated as plain text.
func SniffFormat(data []byte) SourceFormat {
	switch {
	case bytes.HasPrefix(data, compoundMagic):
		return FormatCompound
	case bytes.HasPrefix(data, zipMagic):
		return FormatPackage
	case bytes.HasPrefix(data, pdfMagic):
		return FormatPDF
	case len(data) > 0 && utf8.Valid(data):
		return FormatText
	}
	return FormatUnknown
}
