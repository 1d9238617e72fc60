package kit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Decoder turns raw tool arguments into the request an Endpoint expects.
// Arguments are nil when the client sent none.
type Decoder func(args json.RawMessage) (any, error)

// RegisterMCPTool exposes endpoint as an MCP tool. The JSON-encoded response
// becomes the tool's text content. Decoding and endpoint failures come
// back as tool errors so the model can read them; they never fail the
// protocol exchange.
func RegisterMCPTool(srv *mcp.Server, tool *mcp.Tool, decode Decoder, endpoint Endpoint) {
	srv.AddTool(tool, func(ctx context.Context, call *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		req, err := decode(call.Params.Arguments)
		if err != nil {
			return toolError(fmt.Errorf("invalid arguments: %w", err)), nil
		}

		resp, err := endpoint(WithTransport(ctx, TransportMCP), req)
		if err != nil {
			return toolError(err), nil
		}

		data, err := json.Marshal(resp)
		if err != nil {
			return toolError(fmt.Errorf("marshal %s result: %w", tool.Name, err)), nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}

func toolError(err error) *mcp.CallToolResult {
	res := &mcp.CallToolResult{}
	res.SetError(err)
	return res
}
