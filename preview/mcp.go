package preview

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/instantpreview/kit"
	"github.com/hazyhaar/instantpreview/prefs"
	"github.com/hazyhaar/instantpreview/render"
)

// RegisterMCP registers the preview tools on an MCP server. prefStore may
// be nil, in which case preview_preference is not registered.
func RegisterMCP(srv *mcp.Server, p *Pipeline, r *render.Renderer, prefStore *prefs.Store) {
	registerLinkTool(srv, p, r)
	if prefStore != nil {
		registerPreferenceTool(srv, prefStore)
	}
}

// inputSchema builds a JSON Schema object with type "object".
func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

type linkRequest struct {
	URL string `json:"url"`
}

func registerLinkTool(srv *mcp.Server, p *Pipeline, r *render.Renderer) {
	tool := &mcp.Tool{
		Name:        "preview_link",
		Description: "Preview an internal documentation link: returns the section the link points at as sanitised HTML and Markdown.",
		InputSchema: inputSchema(map[string]any{
			"url": map[string]any{"type": "string", "description": "Absolute URL of the link, optionally with #anchor"},
		}, []string{"url"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		lr := req.(*linkRequest)
		u, err := url.Parse(lr.URL)
		if err != nil || !u.IsAbs() {
			return nil, fmt.Errorf("url must be absolute: %q", lr.URL)
		}
		res, err := p.Run(ctx, u)
		if err != nil {
			return nil, err
		}
		return Present(res, r)
	}

	decode := func(args json.RawMessage) (any, error) {
		var lr linkRequest
		if err := json.Unmarshal(args, &lr); err != nil {
			return nil, err
		}
		return &lr, nil
	}

	kit.RegisterMCPTool(srv, tool, decode, kit.Logging(p.logger, tool.Name)(endpoint))
}

type preferenceRequest struct {
	Value string `json:"value,omitempty"`
}

type preferenceResponse struct {
	Enabled bool   `json:"enabled"`
	Value   string `json:"value"`
}

func registerPreferenceTool(srv *mcp.Server, s *prefs.Store) {
	tool := &mcp.Tool{
		Name:        "preview_preference",
		Description: "Read or change whether link previews are enabled. Omit value to read.",
		InputSchema: inputSchema(map[string]any{
			"value": map[string]any{"type": "string", "description": "New setting: on or off"},
		}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		pr := req.(*preferenceRequest)
		if pr.Value != "" {
			if err := s.Toggle(ctx, pr.Value); err != nil {
				return nil, err
			}
		}
		on := s.Get()
		v := "off"
		if on {
			v = "on"
		}
		return &preferenceResponse{Enabled: on, Value: v}, nil
	}

	decode := func(args json.RawMessage) (any, error) {
		var pr preferenceRequest
		if len(args) > 0 {
			if err := json.Unmarshal(args, &pr); err != nil {
				return nil, err
			}
		}
		switch pr.Value {
		case "", "on", "off":
		default:
			return nil, fmt.Errorf("value must be on or off, got %q", pr.Value)
		}
		return &pr, nil
	}

	kit.RegisterMCPTool(srv, tool, decode, endpoint)
}
