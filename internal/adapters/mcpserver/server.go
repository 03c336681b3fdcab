// Package mcpserver exposes the extraction stack over the Model Context
// Protocol, so agent tooling can classify and read legacy Office files
// without going through the HTTP API.
package mcpserver

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/textmill/internal/core/domain"
	"github.com/kirillkom/textmill/internal/core/ports"
	"github.com/kirillkom/textmill/internal/infrastructure/cfb"
)

type Server struct {
	extractor ports.TextExtractionService
	opener    ports.ContainerOpener
	server    *server.MCPServer
}

func New(extractor ports.TextExtractionService) *Server {
	s := &Server{
		extractor: extractor,
		opener:    cfb.NewOpener(),
	}

	s.server = server.NewMCPServer(
		"textmill",
		"1.0.0",
		server.WithToolCapabilities(true),
	)
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	extractTool := mcp.NewTool("extract_text",
		mcp.WithDescription("Extract the text content of a legacy Office, OOXML, PDF or plain text file"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path of the file to extract"),
		),
		mcp.WithString("locale",
			mcp.Description("BCP 47 locale for spreadsheet number rendering (default: none)"),
		),
	)
	s.server.AddTool(extractTool, s.handleExtractText)

	detectTool := mcp.NewTool("detect_type",
		mcp.WithDescription("Detect the document type of a file by inspecting its bytes"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path of the file to classify"),
		),
	)
	s.server.AddTool(detectTool, s.handleDetectType)
}

func (s *Server) handleExtractText(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	locale := request.GetString("locale", "")

	data, err := os.ReadFile(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("read file: %v", err)), nil
	}

	ext, err := s.extractor.ExtractBytes(ctx, data, locale)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("extract: %v", err)), nil
	}
	if len(ext.Blocks) == 0 {
		return mcp.NewToolResultText("(no text content)"), nil
	}
	return mcp.NewToolResultText(ext.Text()), nil
}

func (s *Server) handleDetectType(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("read file: %v", err)), nil
	}

	switch domain.SniffFormat(data) {
	case domain.FormatCompound:
		docType, err := s.classifyCompound(ctx, data)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("%s (%s)", docType.Code(), docType.MediaType())), nil
	case domain.FormatPackage:
		return mcp.NewToolResultText("zip package (application/zip)"), nil
	case domain.FormatPDF:
		return mcp.NewToolResultText("pdf (application/pdf)"), nil
	case domain.FormatText:
		return mcp.NewToolResultText("text (text/plain)"), nil
	default:
		return mcp.NewToolResultText("unknown (application/octet-stream)"), nil
	}
}

func (s *Server) classifyCompound(ctx context.Context, data []byte) (domain.DocType, error) {
	c, err := s.opener.OpenContainer(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return domain.TypeUnknown, fmt.Errorf("open container: %v", err)
	}
	defer c.Close()

	names := make([]string, 0, len(c.Root()))
	for _, entry := range c.Root() {
		names = append(names, entry.Name())
	}
	return domain.DetectContainerType(names), nil
}

func (s *Server) Serve() error {
	return server.ServeStdio(s.server)
}
