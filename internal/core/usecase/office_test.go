package usecase

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/kirillkom/textmill/internal/core/domain"
	"github.com/kirillkom/textmill/internal/core/ports"
)

type fakeEntry struct {
	name     string
	storage  bool
	children []ports.ContainerEntry
	data     string
}

func (e *fakeEntry) Name() string                     { return e.name }
func (e *fakeEntry) IsStorage() bool                  { return e.storage }
func (e *fakeEntry) Children() []ports.ContainerEntry { return e.children }
func (e *fakeEntry) Size() int64                      { return int64(len(e.data)) }
func (e *fakeEntry) Open() io.Reader                  { return strings.NewReader(e.data) }

type fakeContainer struct {
	root   []ports.ContainerEntry
	closed bool
}

func containerWithRoot(names ...string) *fakeContainer {
	c := &fakeContainer{}
	for _, name := range names {
		c.root = append(c.root, &fakeEntry{name: name})
	}
	return c
}

func (c *fakeContainer) Root() []ports.ContainerEntry { return c.root }

func (c *fakeContainer) Stream(path ...string) (io.Reader, bool) {
	entry, ok := c.Entry(path...)
	if !ok || entry.IsStorage() {
		return nil, false
	}
	return entry.Open(), true
}

func (c *fakeContainer) Entry(path ...string) (ports.ContainerEntry, bool) {
	entries := c.root
	var found ports.ContainerEntry
	for _, name := range path {
		found = nil
		for _, e := range entries {
			if e.Name() == name {
				found = e
				break
			}
		}
		if found == nil {
			return nil, false
		}
		entries = found.Children()
	}
	return found, found != nil
}

func (c *fakeContainer) Close() error {
	c.closed = true
	return nil
}

type fakeOpener struct {
	container *fakeContainer
	err       error
	calls     int
}

func (o *fakeOpener) OpenContainer(io.ReaderAt, int64) (ports.Container, error) {
	o.calls++
	if o.err != nil {
		return nil, o.err
	}
	return o.container, nil
}

type recordingSink struct {
	events []string
}

func (s *recordingSink) StartDocument() error { s.events = append(s.events, "start"); return nil }
func (s *recordingSink) Paragraph(text string) error {
	s.events = append(s.events, "p:"+text)
	return nil
}
func (s *recordingSink) EndDocument() error { s.events = append(s.events, "end"); return nil }

func (s *recordingSink) paragraphs() []string {
	var out []string
	for _, ev := range s.events {
		if strings.HasPrefix(ev, "p:") {
			out = append(out, strings.TrimPrefix(ev, "p:"))
		}
	}
	return out
}

type summaryFake struct {
	calls int
	err   error
	meta  map[string]string
}

func (f *summaryFake) ExtractSummary(_ context.Context, _ ports.Container, meta domain.Metadata) error {
	f.calls++
	for k, v := range f.meta {
		meta.Set(k, v)
	}
	return f.err
}

type wordFake struct {
	calls int
	text  []string
	err   error
}

func (f *wordFake) ExtractWord(_ context.Context, _ ports.Container, sink ports.ContentSink) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	for _, t := range f.text {
		if err := sink.Paragraph(t); err != nil {
			return err
		}
	}
	return nil
}

type slidesFake struct {
	calls int
	text  []string
}

func (f *slidesFake) ExtractSlides(_ context.Context, _ ports.Container, sink ports.ContentSink) error {
	f.calls++
	for _, t := range f.text {
		if err := sink.Paragraph(t); err != nil {
			return err
		}
	}
	return nil
}

type workbookFake struct {
	calls   int
	locales []string
	text    []string
}

func (f *workbookFake) ExtractWorkbook(_ context.Context, _ ports.Container, locale string, sink ports.ContentSink) error {
	f.calls++
	f.locales = append(f.locales, locale)
	for _, t := range f.text {
		if err := sink.Paragraph(t); err != nil {
			return err
		}
	}
	return nil
}

type visioFake struct {
	calls int
	texts []string
}

func (f *visioFake) ExtractVisio(context.Context, ports.Container) ([]string, error) {
	f.calls++
	return f.texts, nil
}

type publisherFake struct {
	calls int
	text  string
}

func (f *publisherFake) ExtractPublisher(context.Context, ports.Container) (string, error) {
	f.calls++
	return f.text, nil
}

type messageFake struct {
	calls int
	text  []string
	meta  map[string]string
}

func (f *messageFake) ExtractMessage(_ context.Context, _ ports.Container, sink ports.ContentSink, meta domain.Metadata) error {
	f.calls++
	for k, v := range f.meta {
		meta.Set(k, v)
	}
	for _, t := range f.text {
		if err := sink.Paragraph(t); err != nil {
			return err
		}
	}
	return nil
}

type decryptorFake struct {
	unlockOK    bool
	unlockErr   error
	passwords   []string
	payload     string
	openErr     error
	openCalls   int
	unlockCalls int
}

func (f *decryptorFake) Unlock(password string) (bool, error) {
	f.unlockCalls++
	f.passwords = append(f.passwords, password)
	return f.unlockOK, f.unlockErr
}

func (f *decryptorFake) OpenPackage() (io.Reader, error) {
	f.openCalls++
	if f.openErr != nil {
		return nil, f.openErr
	}
	return strings.NewReader(f.payload), nil
}

type cryptoFake struct {
	dec *decryptorFake
	err error
}

func (f *cryptoFake) DecryptorFor(context.Context, ports.Container) (ports.Decryptor, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.dec, nil
}

type pkgFake struct {
	calls    int
	received string
	blocks   []string
	pkgType  string
	err      error
}

func (f *pkgFake) ParsePackage(_ context.Context, r io.Reader, sink ports.ContentSink, meta domain.Metadata) error {
	f.calls++
	raw, _ := io.ReadAll(r)
	f.received = string(raw)
	if f.err != nil {
		return f.err
	}
	meta.Set(domain.MetaPackageContentType, f.pkgType)
	for _, b := range f.blocks {
		if err := sink.Paragraph(b); err != nil {
			return err
		}
	}
	return nil
}

type officeFixture struct {
	opener    *fakeOpener
	summary   *summaryFake
	word      *wordFake
	slides    *slidesFake
	workbook  *workbookFake
	visio     *visioFake
	publisher *publisherFake
	message   *messageFake
	crypto    *cryptoFake
	pkg       *pkgFake
	extractor *OfficeExtractor
}

func newOfficeFixture(container *fakeContainer) *officeFixture {
	f := &officeFixture{
		opener:    &fakeOpener{container: container},
		summary:   &summaryFake{},
		word:      &wordFake{text: []string{"word body"}},
		slides:    &slidesFake{text: []string{"slide one"}},
		workbook:  &workbookFake{text: []string{"1\t2"}},
		visio:     &visioFake{texts: []string{"shape a", "shape b"}},
		publisher: &publisherFake{text: "publisher text"},
		message:   &messageFake{text: []string{"mail body"}},
		crypto:    &cryptoFake{dec: &decryptorFake{unlockOK: true, payload: "PK\x03\x04zipped"}},
		pkg:       &pkgFake{blocks: []string{"package text"}, pkgType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
	}
	f.extractor = NewOfficeExtractor(
		f.opener, f.summary, f.word, f.slides, f.workbook,
		f.visio, f.publisher, f.message, f.crypto, f.pkg, nil,
	)
	return f
}

func (f *officeFixture) parse(t *testing.T, opts ParseOptions) (*recordingSink, domain.Metadata) {
	t.Helper()
	sink := &recordingSink{}
	meta := domain.NewMetadata()
	err := f.extractor.Parse(context.Background(), Source{Data: strings.NewReader(""), Size: 0}, sink, meta, opts)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return sink, meta
}

func TestParseWorkbookScenario(t *testing.T) {
	fx := newOfficeFixture(containerWithRoot("Workbook"))
	sink, meta := fx.parse(t, ParseOptions{})

	if fx.workbook.calls != 1 {
		t.Fatalf("expected one workbook invocation, got %d", fx.workbook.calls)
	}
	if len(fx.workbook.locales) != 1 || fx.workbook.locales[0] != "" {
		t.Fatalf("expected default locale, got %v", fx.workbook.locales)
	}
	if meta.Get(domain.MetaContentType) != "application/vnd.ms-excel" {
		t.Fatalf("content type = %q", meta.Get(domain.MetaContentType))
	}
	want := []string{"start", "p:1\t2", "end"}
	if strings.Join(sink.events, ",") != strings.Join(want, ",") {
		t.Fatalf("sink events = %v", sink.events)
	}
}

func TestParsePassesConfiguredLocale(t *testing.T) {
	fx := newOfficeFixture(containerWithRoot("Workbook"))
	fx.parse(t, ParseOptions{Locale: "de-DE"})

	if len(fx.workbook.locales) != 1 || fx.workbook.locales[0] != "de-DE" {
		t.Fatalf("expected configured locale to reach the extractor, got %v", fx.workbook.locales)
	}
}

func TestParseOutlookDedup(t *testing.T) {
	fx := newOfficeFixture(containerWithRoot("__substg1.0_001A001E", "__substg1.0_0C1A001F", "__substg1.0_1000001F"))
	sink, meta := fx.parse(t, ParseOptions{})

	if fx.message.calls != 1 {
		t.Fatalf("expected exactly one message extraction for %d sibling streams, got %d", 3, fx.message.calls)
	}
	if meta.Get(domain.MetaContentType) != "application/vnd.ms-outlook" {
		t.Fatalf("content type = %q", meta.Get(domain.MetaContentType))
	}
	if got := sink.paragraphs(); len(got) != 1 || got[0] != "mail body" {
		t.Fatalf("paragraphs = %v", got)
	}
}

func TestParseContentTypeFirstMatchWins(t *testing.T) {
	fx := newOfficeFixture(containerWithRoot("junk", "Workbook", "WordDocument"))
	_, meta := fx.parse(t, ParseOptions{})

	if meta.Get(domain.MetaContentType) != "application/vnd.ms-excel" {
		t.Fatalf("expected first non-Unknown tag to stamp content type, got %q", meta.Get(domain.MetaContentType))
	}
	// Later matches still dispatch, they just do not overwrite the type.
	if fx.word.calls != 1 || fx.workbook.calls != 1 {
		t.Fatalf("dispatch counts word=%d workbook=%d", fx.word.calls, fx.workbook.calls)
	}
}

func TestParseUnmatchedEntriesAreSkippedSilently(t *testing.T) {
	fx := newOfficeFixture(containerWithRoot("\x05SummaryInformation", "\x01CompObj", "\x01Ole10Native", "CONTENTS"))
	sink, meta := fx.parse(t, ParseOptions{})

	if got := sink.paragraphs(); len(got) != 0 {
		t.Fatalf("expected no body text, got %v", got)
	}
	// OleNative and Works classify without dispatching; the first of them
	// still stamps the content type.
	if meta.Get(domain.MetaContentType) != "application/x-msoffice" {
		t.Fatalf("content type = %q", meta.Get(domain.MetaContentType))
	}
}

func TestParseVisioEmitsOneBlockPerString(t *testing.T) {
	fx := newOfficeFixture(containerWithRoot("VisioDocument"))
	sink, _ := fx.parse(t, ParseOptions{})

	want := []string{"shape a", "shape b"}
	got := sink.paragraphs()
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("paragraphs = %v, want %v", got, want)
	}
}

func TestParsePublisherEmitsSingleBlock(t *testing.T) {
	fx := newOfficeFixture(containerWithRoot("Quill"))
	sink, meta := fx.parse(t, ParseOptions{})

	if fx.publisher.calls != 1 {
		t.Fatalf("publisher calls = %d", fx.publisher.calls)
	}
	if got := sink.paragraphs(); len(got) != 1 || got[0] != "publisher text" {
		t.Fatalf("paragraphs = %v", got)
	}
	if meta.Get(domain.MetaContentType) != "application/x-mspublisher" {
		t.Fatalf("content type = %q", meta.Get(domain.MetaContentType))
	}
}

func TestParseSummaryPrepassRunsBeforeWalkAndIsNonFatal(t *testing.T) {
	fx := newOfficeFixture(containerWithRoot("WordDocument"))
	fx.summary.err = errors.New("truncated property stream")
	fx.summary.meta = map[string]string{domain.MetaAuthor: "jdoe"}

	sink, meta := fx.parse(t, ParseOptions{})
	if fx.summary.calls != 1 {
		t.Fatalf("summary calls = %d", fx.summary.calls)
	}
	if meta.Get(domain.MetaAuthor) != "jdoe" {
		t.Fatalf("expected partial summary metadata to survive, got %v", meta)
	}
	if got := sink.paragraphs(); len(got) != 1 || got[0] != "word body" {
		t.Fatalf("body extraction should still run, got %v", got)
	}
}

func TestParseEncryptedRecoverySuccess(t *testing.T) {
	fx := newOfficeFixture(containerWithRoot("EncryptedPackage"))
	sink, meta := fx.parse(t, ParseOptions{})

	dec := fx.crypto.dec
	if dec.unlockCalls != 1 || dec.passwords[0] != DefaultRecoveryPassword {
		t.Fatalf("unlock calls = %d passwords = %v", dec.unlockCalls, dec.passwords)
	}
	if fx.pkg.calls != 1 {
		t.Fatalf("package parser calls = %d", fx.pkg.calls)
	}
	if fx.pkg.received != "PK\x03\x04zipped" {
		t.Fatalf("package parser received %q", fx.pkg.received)
	}
	// Output sourced entirely from the zip re-parse.
	if got := sink.paragraphs(); len(got) != 1 || got[0] != "package text" {
		t.Fatalf("paragraphs = %v", got)
	}
	if meta.Get(domain.MetaContentType) != "application/x-msoffice" {
		t.Fatalf("content type = %q", meta.Get(domain.MetaContentType))
	}
	if meta.Get(domain.MetaPackageContentType) == "" {
		t.Fatalf("expected package content type from re-parse, got %v", meta)
	}
}

func TestParseEncryptedUnlockFailure(t *testing.T) {
	fx := newOfficeFixture(containerWithRoot("EncryptedPackage"))
	fx.crypto.dec.unlockOK = false
	fx.summary.meta = map[string]string{domain.MetaTitle: "locked doc"}

	sink := &recordingSink{}
	meta := domain.NewMetadata()
	err := fx.extractor.Parse(context.Background(), Source{Data: strings.NewReader(""), Size: 0}, sink, meta, ParseOptions{})
	if !domain.IsKind(err, domain.ErrEncrypted) {
		t.Fatalf("expected ErrEncrypted, got %v", err)
	}
	if got := sink.paragraphs(); len(got) != 0 {
		t.Fatalf("expected no body text, got %v", got)
	}
	if fx.pkg.calls != 0 {
		t.Fatalf("package parser must not run after failed unlock")
	}
	// Pre-pass metadata stays; the sink was never closed.
	if meta.Get(domain.MetaTitle) != "locked doc" {
		t.Fatalf("metadata = %v", meta)
	}
	for _, ev := range sink.events {
		if ev == "end" {
			t.Fatalf("sink must not be finalized on fatal error: %v", sink.events)
		}
	}
}

func TestParseBadFormat(t *testing.T) {
	fx := newOfficeFixture(nil)
	fx.opener.err = errors.New("bad header signature")

	sink := &recordingSink{}
	err := fx.extractor.Parse(context.Background(), Source{Data: strings.NewReader("x"), Size: 1}, sink, domain.NewMetadata(), ParseOptions{})
	if !domain.IsKind(err, domain.ErrBadFormat) {
		t.Fatalf("expected ErrBadFormat, got %v", err)
	}
	if len(sink.events) != 0 {
		t.Fatalf("no sink activity expected before a valid open, got %v", sink.events)
	}
}

func TestParseDelegateErrorCarriesFormatCode(t *testing.T) {
	fx := newOfficeFixture(containerWithRoot("WordDocument"))
	fx.word.err = errors.New("piece table out of range")

	err := fx.extractor.Parse(context.Background(), Source{Data: strings.NewReader(""), Size: 0}, &recordingSink{}, domain.NewMetadata(), ParseOptions{})
	if !domain.IsKind(err, domain.ErrExtractor) {
		t.Fatalf("expected ErrExtractor, got %v", err)
	}
	if !strings.Contains(err.Error(), "doc extraction") {
		t.Fatalf("expected format code in error, got %v", err)
	}
}

func TestParseReusesOpenContainer(t *testing.T) {
	container := containerWithRoot("Workbook")
	fx := newOfficeFixture(nil)

	sink := &recordingSink{}
	err := fx.extractor.Parse(context.Background(), Source{Container: container}, sink, domain.NewMetadata(), ParseOptions{})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if fx.opener.calls != 0 {
		t.Fatalf("an already-open container must not be re-opened")
	}
	if container.closed {
		t.Fatalf("caller-owned container must not be closed by the parse")
	}
}

func TestParseClosesContainerItOpened(t *testing.T) {
	container := containerWithRoot("Workbook")
	fx := newOfficeFixture(container)
	fx.parse(t, ParseOptions{})
	if !container.closed {
		t.Fatalf("orchestrator must close containers it opened")
	}
}

func TestParseStateIsPerParse(t *testing.T) {
	fx := newOfficeFixture(containerWithRoot("__substg1.0_001A001E"))
	fx.parse(t, ParseOptions{})

	// A second parse gets fresh dedup state and extracts again.
	fx.opener.container = containerWithRoot("__substg1.0_001A001E")
	fx.parse(t, ParseOptions{})
	if fx.message.calls != 2 {
		t.Fatalf("expected dedup state to reset between parses, calls = %d", fx.message.calls)
	}
}
