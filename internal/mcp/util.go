package mcp

import (
	"encoding/json"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// jsonResult marshals data into a single text content block. All tool
// output is JSON; clients parse it.
func jsonResult(data any) *sdk.CallToolResult {
	b, err := json.Marshal(data)
	if err != nil {
		return &sdk.CallToolResult{
			Content: []sdk.Content{&sdk.TextContent{Text: "marshal error"}},
			IsError: true,
		}
	}
	return &sdk.CallToolResult{
		Content: []sdk.Content{&sdk.TextContent{Text: string(b)}},
	}
}

// errorResult reports a caller mistake (bad input) as a tool error so the
// agent can correct and retry, rather than as a protocol failure.
func errorResult(msg string) *sdk.CallToolResult {
	return &sdk.CallToolResult{
		Content: []sdk.Content{&sdk.TextContent{Text: msg}},
		IsError: true,
	}
}
