package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/google/uuid"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/koopa0/kiosk/internal/assistant"
)

// ProcessQueryInput is the input schema for the process_query tool.
type ProcessQueryInput struct {
	Message    string `json:"message" jsonschema:"The shopper's natural-language question or request"`
	CustomerID string `json:"customer_id,omitempty" jsonschema:"Optional customer identifier for account-scoped operations"`
	SessionID  string `json:"session_id,omitempty" jsonschema:"Optional session UUID; omit to start a new conversation"`
}

// registerProcessQuery registers the process_query tool: one full
// assistant turn, returning the composed response as JSON.
func (s *Server) registerProcessQuery() error {
	inputSchema, err := jsonschema.For[ProcessQueryInput](nil)
	if err != nil {
		return fmt.Errorf("schema for process_query: %w", err)
	}

	sdk.AddTool(s.mcpServer, &sdk.Tool{
		Name: "process_query",
		Description: "Answer a shopper utterance through the full pipeline: " +
			"classify intent, select a routing strategy, execute storefront " +
			"tool calls, and compose a response with UI components. " +
			"Returns the response JSON including the session id for follow-up turns.",
		InputSchema: inputSchema,
	}, s.ProcessQuery)

	return nil
}

// ProcessQuery handles the process_query MCP tool call.
func (s *Server) ProcessQuery(ctx context.Context, _ *sdk.CallToolRequest, in ProcessQueryInput) (*sdk.CallToolResult, any, error) {
	var sessionID uuid.UUID
	if in.SessionID != "" {
		var err error
		sessionID, err = uuid.Parse(in.SessionID)
		if err != nil {
			return errorResult(fmt.Sprintf("session_id must be a UUID, got %q", in.SessionID)), nil, nil
		}
	}

	resp, err := s.assistant.ProcessQuery(ctx, assistant.Request{
		Message:    in.Message,
		CustomerID: in.CustomerID,
		SessionID:  sessionID,
	})
	switch {
	case errors.Is(err, assistant.ErrEmptyMessage):
		return errorResult("message is required"), nil, nil
	case err != nil:
		return nil, nil, fmt.Errorf("process_query failed: %w", err)
	}

	return jsonResult(resp), nil, nil
}
