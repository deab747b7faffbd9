package serve

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/everydev1618/dockwright/tools"
)

// NewMCPServer exposes a script's actions to MCP clients. Only the actions
// registered in the registry are listed, so a client sees the same
// capability set a generation run would.
func NewMCPServer(registry *tools.Tools, version string) *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{Name: "dockwright", Version: version},
		nil,
	)

	for _, schema := range registry.Schema() {
		name := schema.Name
		server.AddTool(&mcp.Tool{
			Name:        name,
			Description: schema.Description,
			InputSchema: schema.InputSchema,
		}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return callAction(ctx, registry, name, req.Params.Arguments), nil
		})
	}

	return server
}

// callAction runs one action. Failures are reported to the client as tool
// errors, not protocol errors, so the caller can react to them.
func callAction(ctx context.Context, registry *tools.Tools, name string, raw json.RawMessage) *mcp.CallToolResult {
	params := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &params); err != nil {
			return errorResult("invalid arguments JSON: " + err.Error())
		}
	}

	out, err := registry.Execute(ctx, name, params)
	if err != nil {
		return errorResult(err.Error())
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: out}},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
		IsError: true,
	}
}
