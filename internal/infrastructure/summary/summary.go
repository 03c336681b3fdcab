// Package summary runs the metadata pre-pass over OLE property-set
// streams (\x05SummaryInformation and friends) so author/title/date
// fields are available even when body extraction later fails.
package summary

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf16"

	"github.com/richardlehane/msoleps"

	"github.com/kirillkom/textmill/internal/core/domain"
	"github.com/kirillkom/textmill/internal/core/ports"
)

type Extractor struct{}

func NewExtractor() *Extractor { return &Extractor{} }

func (e *Extractor) ExtractSummary(ctx context.Context, c ports.Container, meta domain.Metadata) error {
	props := msoleps.New()
	var firstErr error

	for _, entry := range c.Root() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if entry.IsStorage() || !isPropertyStream(entry.Name()) {
			continue
		}
		if err := props.Reset(entry.Open()); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("read property set %q: %w", entry.Name(), err)
			}
			continue
		}
		for _, prop := range props.Property {
			if field, ok := metadataField(prop.Name); ok {
				meta.Set(field, strings.TrimSpace(prop.String()))
			}
		}
	}
	return firstErr
}

// isPropertyStream checks the first UTF-16 code unit of the entry name,
// the property-set marker convention.
func isPropertyStream(name string) bool {
	if name == "" {
		return false
	}
	units := utf16.Encode([]rune(name))
	return len(units) > 0 && msoleps.IsMSOLEPS(units[0])
}

// metadataField maps well-known summary property names onto metadata
// fields. Matching is tolerant of the casing/spacing variants seen across
// writers.
func metadataField(propName string) (string, bool) {
	key := strings.ToLower(propName)
	key = strings.ReplaceAll(key, " ", "")
	key = strings.ReplaceAll(key, "_", "")

	switch key {
	case "title":
		return domain.MetaTitle, true
	case "subject":
		return domain.MetaSubject, true
	case "author":
		return domain.MetaAuthor, true
	case "keywords":
		return domain.MetaKeywords, true
	case "comments":
		return domain.MetaComments, true
	case "lastauthor", "lastsavedby":
		return domain.MetaLastAuthor, true
	case "appname", "applicationname":
		return domain.MetaApplication, true
	case "createtime", "created", "creationdate":
		return domain.MetaCreated, true
	case "lastsavetime", "lastsaved", "modified", "lastmodified":
		return domain.MetaModified, true
	}
	return "", false
}
