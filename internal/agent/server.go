// Package agent implements the agent tool dispatch: the three
// JSON-schema'd tools — search, read_chunk, list_documents — an LLM
// agent calls against the storage façade and search index. It is wired
// as an mcp.Server plus one mcp.AddTool call per tool, each backed by a
// typed Go handler.
package agent

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/insightd/internal/pipeline"
	"github.com/Aman-CERP/insightd/internal/search"
	"github.com/Aman-CERP/insightd/internal/storage"
	"github.com/Aman-CERP/insightd/pkg/version"
)

// Tuning constants for the search tool's hybrid query parameters and
// result caps. Unlike the pipeline's batching knobs, these are part of
// the external tool contract, not a performance-only tunable, so they
// are not exposed through internal/config.
const (
	searchSemanticRatio = 0.6
	searchMinScore      = 0.15
	searchLimit         = 15
	passageChars        = 500
	listDocumentsLimit  = 25
)

// Server wraps an mcp.Server configured with the three document-search
// tools. It is constructed once per running node and registered tools
// read the same storage.Facade and search.Index the pipeline writes to,
// so a query always sees the latest indexed state.
type Server struct {
	mcp *mcp.Server

	facade      *storage.Facade
	index       *search.Index
	embedder    *pipeline.EmbedderCell
	collections CollectionSet

	logger *slog.Logger
}

// NewServer builds a Server and registers its tools. embedder may report
// a nil Get() if no model is configured yet; the search tool falls back
// to keyword-only ranking in that case.
func NewServer(facade *storage.Facade, index *search.Index, embedder *pipeline.EmbedderCell, collections CollectionSet, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		facade:      facade,
		index:       index,
		embedder:    embedder,
		collections: collections,
		logger:      logger,
	}

	s.mcp = mcp.NewServer(&mcp.Implementation{
		Name:    "insightd",
		Version: version.Version,
	}, nil)

	s.registerTools()
	return s
}

// MCPServer returns the underlying SDK server, e.g. for Server.Run over
// an stdio transport.
func (s *Server) MCPServer() *mcp.Server { return s.mcp }

// Serve runs the MCP server over stdio until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("starting agent tool dispatch server", slog.String("transport", "stdio"))
	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && err != context.Canceled {
		s.logger.Error("agent tool dispatch server stopped with error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("agent tool dispatch server stopped")
	return nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search",
		Description: "Hybrid keyword+vector search over every document in the active collections. Use this to find passages relevant to a question.",
	}, s.searchHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "read_chunk",
		Description: "Read the full text of one chunk of a document by document id and chunk index, as returned by search.",
	}, s.readChunkHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_documents",
		Description: "List documents available in the active collections, grouped by collection.",
	}, s.listDocumentsHandler)

	s.logger.Debug("agent tools registered", slog.Int("count", 3))
}

// textResult wraps a plain string as the tool's entire response; all
// three tools return a single text block.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}
