// Package outlook extracts message text from MSG files. Each MAPI
// property is stored in its own "__substg1.0_" stream whose name suffix
// encodes the property id and type.
package outlook

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/kirillkom/textmill/internal/core/domain"
	"github.com/kirillkom/textmill/internal/core/ports"
)

const propStreamPrefix = "__substg1.0_"

// MAPI property ids carrying the fields we surface.
const (
	propSubject    = 0x0037
	propSenderName = 0x0C1A
	propDisplayTo  = 0x0E04
	propDisplayCc  = 0x0E03
	propDisplayBcc = 0x0E02
	propBody       = 0x1000
)

// MAPI string property types.
const (
	typeString8 = 0x001E
	typeUnicode = 0x001F
)

type Extractor struct{}

func NewExtractor() *Extractor { return &Extractor{} }

func (e *Extractor) ExtractMessage(ctx context.Context, c ports.Container, sink ports.ContentSink, meta domain.Metadata) error {
	var subject, body string

	for _, entry := range c.Root() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if entry.IsStorage() {
			continue
		}
		propID, propType, ok := parsePropStreamName(entry.Name())
		if !ok {
			continue
		}
		value, err := readStringProperty(entry, propType)
		if err != nil {
			return fmt.Errorf("read message property %04X: %w", propID, err)
		}
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}

		switch propID {
		case propSubject:
			subject = value
			meta.Set(domain.MetaSubject, value)
		case propSenderName:
			meta.Set(domain.MetaMessageFrom, value)
		case propDisplayTo:
			meta.Set(domain.MetaMessageTo, value)
		case propDisplayCc:
			meta.Set(domain.MetaMessageCc, value)
		case propDisplayBcc:
			meta.Set(domain.MetaMessageBcc, value)
		case propBody:
			body = value
		}
	}

	if subject != "" {
		if err := sink.Paragraph(subject); err != nil {
			return err
		}
	}
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimRight(line, "\r")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if err := sink.Paragraph(line); err != nil {
			return err
		}
	}
	return nil
}

// parsePropStreamName splits "__substg1.0_PPPPTTTT" into property id and
// type.
func parsePropStreamName(name string) (propID, propType uint16, ok bool) {
	if !strings.HasPrefix(name, propStreamPrefix) {
		return 0, 0, false
	}
	suffix := name[len(propStreamPrefix):]
	if len(suffix) != 8 {
		return 0, 0, false
	}
	id, err := strconv.ParseUint(suffix[:4], 16, 16)
	if err != nil {
		return 0, 0, false
	}
	typ, err := strconv.ParseUint(suffix[4:], 16, 16)
	if err != nil {
		return 0, 0, false
	}
	return uint16(id), uint16(typ), true
}

func readStringProperty(entry ports.ContainerEntry, propType uint16) (string, error) {
	switch propType {
	case typeString8, typeUnicode:
	default:
		return "", nil
	}
	data, err := io.ReadAll(entry.Open())
	if err != nil {
		return "", err
	}
	if propType == typeUnicode {
		units := make([]uint16, len(data)/2)
		for i := range units {
			units[i] = binary.LittleEndian.Uint16(data[2*i : 2*i+2])
		}
		return strings.TrimRight(string(utf16.Decode(units)), "\x00"), nil
	}
	return strings.TrimRight(string(data), "\x00"), nil
}
