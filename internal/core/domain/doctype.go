package domain

import "strings"

// DocType identifies the legacy Office format stored inside an OLE2
// compound container. The same container layout is shared by Word, Excel,
// PowerPoint, Visio, Publisher, Works and Outlook, so the real type is
// recovered from the names of the container's directory entries, never
// from the file extension.
type DocType int

const (
	TypeUnknown DocType = iota
	TypeWorkbook
	TypeOleNative
	TypeWordDocument
	TypeEncrypted
	TypePowerpoint
	TypePublisher
	TypeVisio
	TypeWorks
	TypeOutlook
)

type docTypeInfo struct {
	code      string
	mediaType string
}

var docTypeTable = map[DocType]docTypeInfo{
	TypeUnknown:      {code: "unknown", mediaType: "application/x-msoffice"},
	TypeWorkbook:     {code: "xls", mediaType: "application/vnd.ms-excel"},
	TypeOleNative:    {code: "ole", mediaType: "application/x-msoffice"},
	TypeWordDocument: {code: "doc", mediaType: "application/msword"},
	TypeEncrypted:    {code: "ole", mediaType: "application/x-msoffice"},
	TypePowerpoint:   {code: "ppt", mediaType: "application/vnd.ms-powerpoint"},
	TypePublisher:    {code: "pub", mediaType: "application/x-mspublisher"},
	TypeVisio:        {code: "vsd", mediaType: "application/vnd.visio"},
	TypeWorks:        {code: "wps", mediaType: "application/vnd.ms-works"},
	TypeOutlook:      {code: "msg", mediaType: "application/vnd.ms-outlook"},
}

// Code returns the short format code used in diagnostics and logs.
func (t DocType) Code() string {
	if info, ok := docTypeTable[t]; ok {
		return info.code
	}
	return docTypeTable[TypeUnknown].code
}

// MediaType returns the canonical media type used for metadata tagging.
func (t DocType) MediaType() string {
	if info, ok := docTypeTable[t]; ok {
		return info.mediaType
	}
	return docTypeTable[TypeUnknown].mediaType
}

func (t DocType) String() string {
	return t.Code()
}

const (
	// outlookPropPrefix marks the property streams an Outlook message is
	// spread across. Every such sibling classifies as Outlook, so callers
	// must deduplicate before extracting.
	outlookPropPrefix = "__substg1.0_"

	// oleNativeStream carries a mandatory \x01 control prefix. A name that
	// merely contains "Ole10Native" does not match.
	oleNativeStream = "\x01Ole10Native"
)

// DetectEntryType classifies a single directory entry by name. Comparison
// is exact and case-sensitive, evaluated in fixed priority order with the
// first match winning. The function is total: unmatched names are Unknown.
func DetectEntryType(name string) DocType {
	switch {
	case name == "Workbook":
		return TypeWorkbook
	case name == "EncryptedPackage":
		return TypeEncrypted
	case name == "WordDocument":
		return TypeWordDocument
	case name == "Quill":
		return TypePublisher
	case name == "PowerPoint Document":
		return TypePowerpoint
	case name == "VisioDocument":
		return TypeVisio
	case name == "CONTENTS":
		return TypeWorks
	case strings.HasPrefix(name, outlookPropPrefix):
		return TypeOutlook
	case name == oleNativeStream:
		return TypeOleNative
	}
	return TypeUnknown
}

// DetectContainerType classifies a whole storage by its direct children,
// in stored order: the first child with a non-Unknown tag decides. It does
// not descend into grandchildren, so a type signal must appear among the
// direct children of the storage being classified. Empty and all-Unknown
// storages are Unknown.
func DetectContainerType(childNames []string) DocType {
	for _, name := range childNames {
		if t := DetectEntryType(name); t != TypeUnknown {
			return t
		}
	}
	return TypeUnknown
}
