package httpadapter

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/oapi-codegen/runtime"

	"github.com/kirillkom/textmill/internal/config"
	"github.com/kirillkom/textmill/internal/core/domain"
	"github.com/kirillkom/textmill/internal/core/ports"
	"github.com/kirillkom/textmill/internal/infrastructure/sink"
	"github.com/kirillkom/textmill/internal/observability/metrics"
)

type Router struct {
	cfg         config.Config
	ingest      ports.DocumentIngestor
	docs        ports.DocumentReader
	extractions ports.ExtractionRepository
	extractor   ports.TextExtractionService
	httpMetrics *metrics.HTTPServerMetrics
}

func NewRouter(
	cfg config.Config,
	ingest ports.DocumentIngestor,
	docs ports.DocumentReader,
	extractions ports.ExtractionRepository,
	extractor ports.TextExtractionService,
	httpMetrics *metrics.HTTPServerMetrics,
) *Router {
	return &Router{
		cfg:         cfg,
		ingest:      ingest,
		docs:        docs,
		extractions: extractions,
		extractor:   extractor,
		httpMetrics: httpMetrics,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/documents", rt.uploadDocument)
	mux.HandleFunc("/v1/documents/", rt.documentSubtree)
	mux.HandleFunc("/v1/extract", rt.extract)

	handler := http.Handler(mux)
	if validator, err := newOpenAPIMiddleware(); err != nil {
		slog.Error("openapi validation disabled", "error", err)
	} else {
		handler = validator(handler)
	}
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxConcurrent, time.Second)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if rt.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.MaxUploadBytes)
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	doc, err := rt.ingest.Upload(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) documentSubtree(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	if id, ok := strings.CutSuffix(path, "/text"); ok {
		rt.getDocumentText(w, r, id)
		return
	}
	rt.getDocumentByID(w, r, path)
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request, id string) {
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}
	doc, err := rt.docs.GetByID(r.Context(), id)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) getDocumentText(w http.ResponseWriter, r *http.Request, id string) {
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}
	ext, err := rt.extractions.GetByDocumentID(r.Context(), id)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, ext)
}

// extract runs a synchronous extraction over the raw request body. The
// locale query parameter steers spreadsheet number rendering; format
// selects the JSON block response (default) or an XHTML rendition.
func (rt *Router) extract(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if rt.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.MaxUploadBytes)
	}

	var locale, format string
	if err := runtime.BindQueryParameter("form", true, false, "locale", r.URL.Query(), &locale); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid locale parameter"})
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "format", r.URL.Query(), &format); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid format parameter"})
		return
	}
	if locale == "" {
		locale = rt.cfg.ExtractLocale
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "read request body"})
		return
	}
	if len(data) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "request body is required"})
		return
	}

	start := time.Now()
	switch format {
	case "", "text":
		ext, err := rt.extractor.ExtractBytes(r.Context(), data, locale)
		if err != nil {
			rt.recordExtraction("", 0, start, err)
			writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
			return
		}
		rt.recordExtraction(ext.ContentType, len(ext.Blocks), start, nil)
		writeJSON(w, http.StatusOK, ext)
	case "xhtml":
		var buf bytes.Buffer
		meta := domain.NewMetadata()
		xhtml := sink.NewXHTML(&buf)
		if err := rt.extractor.ExtractToSink(r.Context(), data, locale, xhtml, meta); err != nil {
			rt.recordExtraction(meta.Get(domain.MetaContentType), 0, start, err)
			writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
			return
		}
		rt.recordExtraction(meta.Get(domain.MetaContentType), xhtml.Paragraphs(), start, nil)
		w.Header().Set("Content-Type", "application/xhtml+xml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "format must be text or xhtml"})
	}
}

func (rt *Router) recordExtraction(contentType string, blocks int, start time.Time, err error) {
	if rt.httpMetrics == nil {
		return
	}
	rt.httpMetrics.RecordExtraction("api", contentType, blocks, time.Since(start), err)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
