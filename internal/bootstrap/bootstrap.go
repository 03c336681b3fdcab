package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/textmill/internal/config"
	"github.com/kirillkom/textmill/internal/core/ports"
	"github.com/kirillkom/textmill/internal/core/usecase"
	"github.com/kirillkom/textmill/internal/infrastructure/cfb"
	"github.com/kirillkom/textmill/internal/infrastructure/extractor/excel"
	"github.com/kirillkom/textmill/internal/infrastructure/extractor/outlook"
	"github.com/kirillkom/textmill/internal/infrastructure/extractor/pdftext"
	"github.com/kirillkom/textmill/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/textmill/internal/infrastructure/extractor/powerpoint"
	"github.com/kirillkom/textmill/internal/infrastructure/extractor/publisher"
	"github.com/kirillkom/textmill/internal/infrastructure/extractor/visio"
	"github.com/kirillkom/textmill/internal/infrastructure/extractor/word"
	"github.com/kirillkom/textmill/internal/infrastructure/graph"
	"github.com/kirillkom/textmill/internal/infrastructure/msopackage"
	"github.com/kirillkom/textmill/internal/infrastructure/offcrypto"
	"github.com/kirillkom/textmill/internal/infrastructure/queue/nats"
	"github.com/kirillkom/textmill/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/textmill/internal/infrastructure/resilience"
	"github.com/kirillkom/textmill/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/textmill/internal/infrastructure/summary"
	"github.com/kirillkom/textmill/internal/observability/logging"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue       ports.MessageQueue
	Repo        ports.DocumentRepository
	Extractions ports.ExtractionRepository
	IngestUC    ports.DocumentIngestor
	ProcessUC   ports.DocumentProcessor
	ExtractSvc  ports.TextExtractionService

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger := logging.NewJSONLogger("textmill", cfg.LogLevel)

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	extractions := postgres.NewExtractionRepository(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	extractSvc := NewExtractionService(logger)

	var lineage ports.LineageRecorder
	var lineageClose func()
	if cfg.Neo4jEnabled {
		recorder, err := graph.NewRecorder(cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword, executor)
		if err != nil {
			return nil, fmt.Errorf("init lineage recorder: %w", err)
		}
		lineage = recorder
		lineageClose = func() { _ = recorder.Close(context.Background()) }
	}

	ingestUC := usecase.NewIngestDocumentUseCase(repo, storage, queue)
	processUC := usecase.NewProcessDocumentUseCase(repo, extractions, storage, extractSvc, lineage, cfg.ExtractLocale, logger)

	return &App{
		Config: cfg,
		Logger: logger,

		Queue:       queue,
		Repo:        repo,
		Extractions: extractions,
		IngestUC:    ingestUC,
		ProcessUC:   processUC,
		ExtractSvc:  extractSvc,

		closeFn: func() {
			queue.Close()
			if lineageClose != nil {
				lineageClose()
			}
			_ = db.Close()
		},
	}, nil
}

// NewExtractionService assembles the full parser stack without any
// backing services. Used standalone by the MCP server.
func NewExtractionService(logger *slog.Logger) ports.TextExtractionService {
	pkg := msopackage.NewParser()
	office := usecase.NewOfficeExtractor(
		cfb.NewOpener(),
		summary.NewExtractor(),
		word.NewExtractor(),
		powerpoint.NewExtractor(),
		excel.NewExtractor(),
		visio.NewExtractor(),
		publisher.NewExtractor(),
		outlook.NewExtractor(),
		offcrypto.NewSource(),
		pkg,
		logger,
	)
	return usecase.NewExtractUseCase(office, pkg, pdftext.NewExtractor(), plaintext.NewExtractor())
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
