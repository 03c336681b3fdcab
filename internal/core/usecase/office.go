package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/kirillkom/textmill/internal/core/domain"
	"github.com/kirillkom/textmill/internal/core/ports"
)

// DefaultRecoveryPassword is the well-known password some encrypted Office
// documents accept, allowing automated unlocking without user credentials.
const DefaultRecoveryPassword = "VelvetSweatshop"

// ParseOptions carries per-parse configuration. Locale affects numeric and
// date rendering in spreadsheet extraction; empty means platform default.
type ParseOptions struct {
	Locale string
}

// Source presents the input either as a raw container image or as an
// already-open container handle. When Container is non-nil it is used
// as-is and never re-opened; its lifetime stays with the caller.
type Source struct {
	Data      io.ReaderAt
	Size      int64
	Container ports.Container
}

// OfficeExtractor classifies the root entries of an OLE2 compound
// container and routes each one to the matching format extractor,
// merging their output into a single ordered sink and one metadata
// record.
type OfficeExtractor struct {
	opener    ports.ContainerOpener
	summary   ports.SummaryExtractor
	word      ports.WordExtractor
	slides    ports.SlideExtractor
	workbook  ports.WorkbookExtractor
	visio     ports.VisioExtractor
	publisher ports.PublisherExtractor
	message   ports.MessageExtractor
	crypto    ports.DecryptorSource
	pkg       ports.PackageParser
	logger    *slog.Logger
}

func NewOfficeExtractor(
	opener ports.ContainerOpener,
	summary ports.SummaryExtractor,
	word ports.WordExtractor,
	slides ports.SlideExtractor,
	workbook ports.WorkbookExtractor,
	visio ports.VisioExtractor,
	publisher ports.PublisherExtractor,
	message ports.MessageExtractor,
	crypto ports.DecryptorSource,
	pkg ports.PackageParser,
	logger *slog.Logger,
) *OfficeExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &OfficeExtractor{
		opener:    opener,
		summary:   summary,
		word:      word,
		slides:    slides,
		workbook:  workbook,
		visio:     visio,
		publisher: publisher,
		message:   message,
		crypto:    crypto,
		pkg:       pkg,
		logger:    logger,
	}
}

// parseState is the per-parse mutable state: the Outlook dedup flag and
// the content-type-set flag. A fresh value is allocated for every Parse
// call so concurrent parses on different containers cannot interfere.
type parseState struct {
	outlookDone    bool
	contentTypeSet bool
}

// Parse runs one full extraction pass: open container, metadata pre-pass,
// root walk with classify-and-dispatch, sink finalization.
//
// Failure taxonomy: domain.ErrBadFormat when the bytes are not a valid
// compound file, domain.ErrEncrypted when an encrypted entry cannot be
// unlocked, domain.ErrExtractor wrapping whatever a delegate reported.
// All are fatal for the whole parse; partial sink output already emitted
// stands as written and callers must treat it as unreliable.
func (e *OfficeExtractor) Parse(
	ctx context.Context,
	src Source,
	sink ports.ContentSink,
	meta domain.Metadata,
	opts ParseOptions,
) error {
	container := src.Container
	if container == nil {
		opened, err := e.opener.OpenContainer(src.Data, src.Size)
		if err != nil {
			return domain.WrapError(domain.ErrBadFormat, "open compound container", err)
		}
		container = opened
		defer container.Close()
	}

	// Summary properties come first so author/title/date fields survive
	// even when body extraction later fails or is partial. A broken
	// property stream is not fatal.
	if err := e.summary.ExtractSummary(ctx, container, meta); err != nil {
		e.logger.Warn("summary_prepass_failed", "error", err)
	}

	state := &parseState{}
	if err := sink.StartDocument(); err != nil {
		return fmt.Errorf("open sink: %w", err)
	}

	for _, entry := range container.Root() {
		docType := domain.DetectEntryType(entry.Name())
		if docType != domain.TypeUnknown && !state.contentTypeSet {
			meta.Set(domain.MetaContentType, docType.MediaType())
			state.contentTypeSet = true
		}
		if err := e.dispatch(ctx, docType, container, sink, meta, opts, state); err != nil {
			return err
		}
	}

	if err := sink.EndDocument(); err != nil {
		return fmt.Errorf("close sink: %w", err)
	}
	return nil
}

func (e *OfficeExtractor) dispatch(
	ctx context.Context,
	docType domain.DocType,
	container ports.Container,
	sink ports.ContentSink,
	meta domain.Metadata,
	opts ParseOptions,
	state *parseState,
) error {
	switch docType {
	case domain.TypePublisher:
		text, err := e.publisher.ExtractPublisher(ctx, container)
		if err != nil {
			return e.delegateErr(docType, err)
		}
		if text != "" {
			if err := sink.Paragraph(text); err != nil {
				return e.delegateErr(docType, err)
			}
		}

	case domain.TypeWordDocument:
		if err := e.word.ExtractWord(ctx, container, sink); err != nil {
			return e.delegateErr(docType, err)
		}

	case domain.TypePowerpoint:
		if err := e.slides.ExtractSlides(ctx, container, sink); err != nil {
			return e.delegateErr(docType, err)
		}

	case domain.TypeWorkbook:
		if err := e.workbook.ExtractWorkbook(ctx, container, opts.Locale, sink); err != nil {
			return e.delegateErr(docType, err)
		}

	case domain.TypeVisio:
		texts, err := e.visio.ExtractVisio(ctx, container)
		if err != nil {
			return e.delegateErr(docType, err)
		}
		for _, text := range texts {
			if err := sink.Paragraph(text); err != nil {
				return e.delegateErr(docType, err)
			}
		}

	case domain.TypeOutlook:
		// An Outlook message spreads its body across many property
		// streams that each classify as Outlook; extract once for the
		// whole container and skip the remaining matches silently.
		if state.outlookDone {
			return nil
		}
		state.outlookDone = true
		if err := e.message.ExtractMessage(ctx, container, sink, meta); err != nil {
			return e.delegateErr(docType, err)
		}

	case domain.TypeEncrypted:
		return e.recoverEncrypted(ctx, container, sink, meta)

	case domain.TypeUnknown, domain.TypeOleNative, domain.TypeWorks:
		// Classified but not extracted here: these are left for the
		// generic/embedded-object path.
	}
	return nil
}

// recoverEncrypted unlocks an EncryptedPackage entry with the well-known
// recovery password and re-parses the decrypted payload as a zip-based
// Office package. This is a one-level format switch, not a second
// compound-file pass.
func (e *OfficeExtractor) recoverEncrypted(
	ctx context.Context,
	container ports.Container,
	sink ports.ContentSink,
	meta domain.Metadata,
) error {
	dec, err := e.crypto.DecryptorFor(ctx, container)
	if err != nil {
		return domain.WrapError(domain.ErrEncrypted, "read encryption descriptor", err)
	}
	ok, err := dec.Unlock(DefaultRecoveryPassword)
	if err != nil {
		return domain.WrapError(domain.ErrEncrypted, "unlock encrypted package", err)
	}
	if !ok {
		return domain.WrapError(
			domain.ErrEncrypted,
			"unlock encrypted package",
			errors.New("recovery password rejected"),
		)
	}
	payload, err := dec.OpenPackage()
	if err != nil {
		return domain.WrapError(domain.ErrEncrypted, "open decrypted package", err)
	}
	if err := e.pkg.ParsePackage(ctx, payload, sink, meta); err != nil {
		return e.delegateErr(domain.TypeEncrypted, err)
	}
	return nil
}

// delegateErr surfaces a collaborator failure with the triggering entry's
// format code attached for diagnostics.
func (e *OfficeExtractor) delegateErr(docType domain.DocType, err error) error {
	return domain.WrapError(domain.ErrExtractor, docType.Code()+" extraction", err)
}
