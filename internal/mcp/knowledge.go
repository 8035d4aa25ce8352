package mcp

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/koopa0/kiosk/internal/knowledge"
)

// KnowledgeSearchInput is the input schema for the knowledge_search tool.
type KnowledgeSearchInput struct {
	Query      string `json:"query" jsonschema:"Search text, matched by semantic similarity"`
	Collection string `json:"collection,omitempty" jsonschema:"Restrict to one collection: faq or business_rule. Omit to search both."`
	Limit      int    `json:"limit,omitempty" jsonschema:"Maximum results to return (default 5)"`
}

// knowledgeMatch is the wire shape of one search hit.
type knowledgeMatch struct {
	Collection string  `json:"collection"`
	Category   string  `json:"category,omitempty"`
	Content    string  `json:"content"`
	AppliesTo  string  `json:"applies_to,omitempty"`
	Exceptions string  `json:"exceptions,omitempty"`
	SourceURL  string  `json:"source_url,omitempty"`
	Score      float64 `json:"score"`
}

// registerKnowledgeSearch registers the knowledge_search tool: direct
// corpus lookup without running the routing pipeline.
func (s *Server) registerKnowledgeSearch() error {
	inputSchema, err := jsonschema.For[KnowledgeSearchInput](nil)
	if err != nil {
		return fmt.Errorf("schema for knowledge_search: %w", err)
	}

	sdk.AddTool(s.mcpServer, &sdk.Tool{
		Name: "knowledge_search",
		Description: "Search the help-center knowledge corpus by semantic " +
			"similarity. Returns FAQ articles and business rules with " +
			"relevance scores, applicability, and exceptions.",
		InputSchema: inputSchema,
	}, s.KnowledgeSearch)

	return nil
}

// KnowledgeSearch handles the knowledge_search MCP tool call.
func (s *Server) KnowledgeSearch(ctx context.Context, _ *sdk.CallToolRequest, in KnowledgeSearchInput) (*sdk.CallToolResult, any, error) {
	limit := in.Limit
	if limit <= 0 {
		limit = knowledge.DefaultTopK
	}

	var (
		matches []knowledge.Match
		err     error
	)
	if in.Collection == "" {
		matches, err = s.knowledge.HybridSearch(ctx, in.Query, limit)
	} else {
		collection := knowledge.Collection(in.Collection)
		if !collection.Valid() {
			return errorResult(fmt.Sprintf("unknown collection %q; use faq or business_rule", in.Collection)), nil, nil
		}
		matches, err = s.knowledge.Search(ctx, collection, in.Query, knowledge.WithLimit(limit))
	}
	if err != nil {
		return nil, nil, fmt.Errorf("knowledge_search failed: %w", err)
	}

	out := make([]knowledgeMatch, len(matches))
	for i, m := range matches {
		out[i] = knowledgeMatch{
			Collection: string(m.Collection),
			Category:   m.Category,
			Content:    m.Content,
			AppliesTo:  m.AppliesTo,
			Exceptions: m.Exceptions,
			SourceURL:  m.SourceURL,
			Score:      m.Score,
		}
	}
	return jsonResult(map[string]any{"matches": out}), nil, nil
}
