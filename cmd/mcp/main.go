package main

import (
	"log"

	"github.com/kirillkom/textmill/internal/adapters/mcpserver"
	"github.com/kirillkom/textmill/internal/bootstrap"
	"github.com/kirillkom/textmill/internal/observability/logging"
)

func main() {
	logger := logging.NewJSONLogger("mcp", "info")
	extractor := bootstrap.NewExtractionService(logger)

	if err := mcpserver.New(extractor).Serve(); err != nil {
		log.Fatalf("mcp server error: %v", err)
	}
}
