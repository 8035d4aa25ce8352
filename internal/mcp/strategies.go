package mcp

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// ListStrategiesInput is the (empty) input schema for list_strategies.
type ListStrategiesInput struct{}

// strategyView is the wire shape of one loaded strategy.
type strategyView struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Conditions []string `json:"conditions"`
	Actions    []string `json:"actions"`
}

// registerListStrategies registers the list_strategies tool.
func (s *Server) registerListStrategies() error {
	inputSchema, err := jsonschema.For[ListStrategiesInput](nil)
	if err != nil {
		return fmt.Errorf("schema for list_strategies: %w", err)
	}

	sdk.AddTool(s.mcpServer, &sdk.Tool{
		Name: "list_strategies",
		Description: "List the currently loaded multi-step strategies: their " +
			"matching conditions and the storefront tools each one invokes.",
		InputSchema: inputSchema,
	}, s.ListStrategies)

	return nil
}

// ListStrategies handles the list_strategies MCP tool call.
func (s *Server) ListStrategies(_ context.Context, _ *sdk.CallToolRequest, _ ListStrategiesInput) (*sdk.CallToolResult, any, error) {
	snap := s.strategies.Strategies()
	out := make([]strategyView, len(snap))
	for i, st := range snap {
		actions := make([]string, len(st.Actions))
		for j, a := range st.Actions {
			actions[j] = a.Tool
		}
		out[i] = strategyView{
			ID:         st.ID,
			Name:       st.Name,
			Conditions: st.Conditions,
			Actions:    actions,
		}
	}
	return jsonResult(map[string]any{"strategies": out}), nil, nil
}
