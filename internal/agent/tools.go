package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/insightd/internal/apperrors"
	"github.com/Aman-CERP/insightd/internal/keyspace"
	"github.com/Aman-CERP/insightd/internal/search"
)

// SearchInput is the search tool's input schema.
type SearchInput struct {
	Query string `json:"query" jsonschema:"the search query to run against the active collections"`
}

// SearchOutput carries the tool's formatted text alongside a typed copy
// of it, so the MCP SDK has a schema to describe even though the primary
// payload is the CallToolResult text content.
type SearchOutput struct {
	Text string `json:"text"`
}

func (s *Server) searchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, SearchOutput{}, apperrors.New(apperrors.ErrCodeInvalidQuery, "query parameter is required and must be non-empty", nil)
	}

	ids := s.collections.ActiveCollections()
	collectionIDs := make([]string, len(ids))
	for i, ns := range ids {
		collectionIDs[i] = ns.String()
	}

	req := search.QueryRequest{
		Query:         query,
		Limit:         searchLimit,
		CollectionIDs: collectionIDs,
		SemanticRatio: searchSemanticRatio,
		MinScore:      searchMinScore,
	}

	if embedder := s.embedder.Get(); embedder != nil && embedder.Available(ctx) {
		vectors, err := embedder.EmbedBatch(ctx, []string{query})
		if err != nil {
			s.logger.Warn("query embedding failed, falling back to keyword-only search",
				slog.String("error", err.Error()))
			req.SemanticRatio = 0
		} else if len(vectors) == 1 {
			req.QueryVector = vectors[0]
		}
	} else {
		// No model configured:
		// degrade to pure BM25 rather than fail the whole tool call.
		req.SemanticRatio = 0
	}

	result, err := s.index.Query(req)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	text := s.formatSearchResults(result)
	return textResult(text), SearchOutput{Text: text}, nil
}

func (s *Server) formatSearchResults(result search.QueryResult) string {
	if len(result.Hits) == 0 {
		return "No results found."
	}

	names := s.collectionNames()

	var b strings.Builder
	for i, hit := range result.Hits {
		collName := names[hit.CollectionID]
		if collName == "" {
			collName = hit.CollectionID
		}
		fmt.Fprintf(&b, "%d. %s (%s) — collection %q, doc %s, chunk %d, score %.3f\n",
			i+1, hit.ParentName, pageRange(hit.StartPage, hit.EndPage), collName, hit.ParentID, hit.ChunkIndex, hit.Score)
		b.WriteString(passage(hit.ChunkRow))
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// collectionNames maps every active namespace id to its display name, for
// search's "collection name" output field.
func (s *Server) collectionNames() map[string]string {
	names := make(map[string]string)
	for _, ns := range s.collections.ActiveCollections() {
		meta, err := s.facade.GetCollectionMeta(ns)
		if err != nil {
			continue
		}
		names[ns.String()] = meta.Name
	}
	return names
}

func pageRange(start, end int) string {
	if start == end {
		return fmt.Sprintf("p.%d", start)
	}
	return fmt.Sprintf("p.%d-%d", start, end)
}

// passage strips the "[parent_name]\n\n" prefix the index stores the
// content under — the name is already shown in the result
// header — and truncates to passageChars runes.
func passage(row search.ChunkRow) string {
	content := row.Content
	prefix := "[" + row.ParentName + "]\n\n"
	content = strings.TrimPrefix(content, prefix)

	runes := []rune(content)
	if len(runes) > passageChars {
		return string(runes[:passageChars]) + "…"
	}
	return content
}

// ReadChunkInput is the read_chunk tool's input schema.
type ReadChunkInput struct {
	DocumentID string `json:"document_id" jsonschema:"the document id returned by search or list_documents"`
	ChunkIndex int    `json:"chunk_index" jsonschema:"the chunk index within the document, as returned by search"`
}

// ReadChunkOutput is read_chunk's response.
type ReadChunkOutput struct {
	Text string `json:"text"`
}

func (s *Server) readChunkHandler(_ context.Context, _ *mcp.CallToolRequest, input ReadChunkInput) (*mcp.CallToolResult, ReadChunkOutput, error) {
	row, ok, err := s.index.GetChunk(input.DocumentID, input.ChunkIndex)
	if err != nil {
		return nil, ReadChunkOutput{}, err
	}
	if !ok {
		text := fmt.Sprintf("no chunk found for document %s at index %d", input.DocumentID, input.ChunkIndex)
		return textResult(text), ReadChunkOutput{Text: text}, nil
	}

	text := strings.TrimPrefix(row.Content, "["+row.ParentName+"]\n\n")
	return textResult(text), ReadChunkOutput{Text: text}, nil
}

// ListDocumentsInput is list_documents' input schema — it takes no
// parameters.
type ListDocumentsInput struct{}

// ListDocumentsOutput is list_documents' response.
type ListDocumentsOutput struct {
	Text string `json:"text"`
}

func (s *Server) listDocumentsHandler(_ context.Context, _ *mcp.CallToolRequest, _ ListDocumentsInput) (*mcp.CallToolResult, ListDocumentsOutput, error) {
	var b strings.Builder
	count := 0

	for _, ns := range s.collections.ActiveCollections() {
		if count >= listDocumentsLimit {
			break
		}

		docs, names, ok := s.listOneCollection(ns)
		if !ok || len(docs) == 0 {
			continue
		}

		fmt.Fprintf(&b, "## %s\n", names)
		for _, d := range docs {
			if count >= listDocumentsLimit {
				break
			}
			fmt.Fprintf(&b, "- %s (%d pages) — %s\n", d.Name, d.PageCount, d.ID)
			count++
		}
	}

	text := b.String()
	if text == "" {
		text = "No documents found."
	} else {
		text = strings.TrimRight(text, "\n")
	}
	return textResult(text), ListDocumentsOutput{Text: text}, nil
}

func (s *Server) listOneCollection(ns keyspace.NamespaceID) (docs []documentSummary, name string, ok bool) {
	meta, err := s.facade.GetCollectionMeta(ns)
	if err != nil {
		return nil, "", false
	}
	all, err := s.facade.ListDocuments(ns)
	if err != nil {
		return nil, "", false
	}

	summaries := make([]documentSummary, len(all))
	for i, d := range all {
		summaries[i] = documentSummary{ID: d.ID, Name: d.Name, PageCount: d.PageCount}
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Name < summaries[j].Name })
	return summaries, meta.Name, true
}

type documentSummary struct {
	ID        string
	Name      string
	PageCount int
}
