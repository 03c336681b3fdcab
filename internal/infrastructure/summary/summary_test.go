package summary

import (
	"testing"

	"github.com/kirillkom/textmill/internal/core/domain"
)

func TestIsPropertyStream(t *testing.T) {
	if !isPropertyStream("\x05SummaryInformation") {
		t.Fatalf("summary stream not recognized")
	}
	if !isPropertyStream("\x05DocumentSummaryInformation") {
		t.Fatalf("document summary stream not recognized")
	}
	if isPropertyStream("WordDocument") || isPropertyStream("") {
		t.Fatalf("plain streams must not match")
	}
}

func TestMetadataFieldMapping(t *testing.T) {
	cases := map[string]string{
		"Title":        domain.MetaTitle,
		"Author":       domain.MetaAuthor,
		"Last Author":  domain.MetaLastAuthor,
		"LastAuthor":   domain.MetaLastAuthor,
		"AppName":      domain.MetaApplication,
		"CreateTime":   domain.MetaCreated,
		"LastSaveTime": domain.MetaModified,
		"Subject":      domain.MetaSubject,
		"Keywords":     domain.MetaKeywords,
		"Comments":     domain.MetaComments,
	}
	for prop, want := range cases {
		got, ok := metadataField(prop)
		if !ok || got != want {
			t.Fatalf("metadataField(%q) = %q/%v, want %q", prop, got, ok, want)
		}
	}
	if _, ok := metadataField("PageCount"); ok {
		t.Fatalf("unmapped properties must be skipped")
	}
}
