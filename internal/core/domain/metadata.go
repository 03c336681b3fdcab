package domain

// Metadata field names written by the extraction pipeline. Content-Type is
// owned by the compound-container orchestrator and set at most once per
// parse; the other fields come from the summary pre-pass and the Outlook
// message extractor.
const (
	MetaContentType        = "Content-Type"
	MetaPackageContentType = "Package-Content-Type"

	MetaTitle       = "Title"
	MetaSubject     = "Subject"
	MetaAuthor      = "Author"
	MetaKeywords    = "Keywords"
	MetaComments    = "Comments"
	MetaLastAuthor  = "Last-Author"
	MetaApplication = "Application-Name"
	MetaCreated     = "Creation-Date"
	MetaModified    = "Last-Modified"

	MetaMessageFrom = "Message-From"
	MetaMessageTo   = "Message-To"
	MetaMessageCc   = "Message-Cc"
	MetaMessageBcc  = "Message-Bcc"
)

// Metadata is one parse's field/value record. It is parse-local mutable
// state: each Parse call must be given its own instance.
type Metadata map[string]string

func NewMetadata() Metadata {
	return make(Metadata)
}

func (m Metadata) Set(field, value string) {
	if value == "" {
		return
	}
	m[field] = value
}

func (m Metadata) Get(field string) string {
	return m[field]
}

func (m Metadata) Has(field string) bool {
	_, ok := m[field]
	return ok
}
