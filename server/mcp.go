package server

import (
	"context"
	"encoding/json"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/carrousel/kit"
)

// RegisterMCP registers the carousel tools on an MCP server.
func (s *Server) RegisterMCP(srv *mcp.Server) {
	s.registerTransformTool(srv)
	s.registerRenderTool(srv)
	s.registerModulesTool(srv)
}

// tool wraps a tool endpoint with tracing and call logging.
func (s *Server) tool(name string, e kit.Endpoint) kit.Endpoint {
	return kit.Chain(s.traced, s.logged(name))(e)
}

// traced gives MCP calls the trace id HTTP requests get from traceID.
func (s *Server) traced(next kit.Endpoint) kit.Endpoint {
	return func(ctx context.Context, req any) (any, error) {
		if kit.GetTraceID(ctx) == "" {
			ctx = kit.WithTraceID(ctx, traceIDs())
		}
		return next(ctx, req)
	}
}

func (s *Server) logged(name string) kit.Middleware {
	return func(next kit.Endpoint) kit.Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			logger := s.logger.With(
				"tool", name,
				"transport", kit.GetTransport(ctx),
				"trace_id", kit.GetTraceID(ctx),
				"duration_ms", time.Since(start).Milliseconds(),
			)
			if err != nil {
				logger.Warn("server: tool failed", "error", err)
			} else {
				logger.Debug("server: tool done")
			}
			return resp, err
		}
	}
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	sch := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		sch["required"] = required
	}
	return sch
}

var carouselProperties = map[string]any{
	"data":            map[string]any{"type": "object", "description": "Carousel document (slides[] with destaques, slides[] plus destaques[], or legacy carrossel[])"},
	"highlight_color": map[string]any{"type": "string", "description": "Highlight text color override, e.g. #ff0000"},
	"highlight_bg":    map[string]any{"type": "string", "description": "Highlight background override"},
}

func decodeTransform(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
	var r TransformRequest
	if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
		return nil, err
	}
	return &kit.MCPDecodeResult{Request: &r}, nil
}

// --- transform ---

func (s *Server) registerTransformTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "carousel_transform",
		Description: "Validate a carousel document and return one template layout per slide.",
		InputSchema: inputSchema(carouselProperties, []string{"data"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		return s.transform(ctx, req.(*TransformRequest))
	}

	kit.RegisterMCPTool(srv, tool, s.tool(tool.Name, endpoint), decodeTransform)
}

// --- render ---

func (s *Server) registerRenderTool(srv *mcp.Server) {
	props := map[string]any{
		"mode":    map[string]any{"type": "string", "enum": []string{"slides", "canvas"}, "description": "One image per slide, or one shared canvas cut into slides"},
		"overlay": map[string]any{"type": "object", "description": "Floating overlay for canvas mode (imageUrl, text, offsetX, offsetY, scale, rotation)"},
	}
	for k, v := range carouselProperties {
		props[k] = v
	}
	tool := &mcp.Tool{
		Name:        "carousel_render",
		Description: "Transform a carousel document and render every slide to PNG. Returns per-slide results and a summary.",
		InputSchema: inputSchema(props, []string{"data"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		return s.renderCarousel(ctx, req.(*TransformRequest))
	}

	kit.RegisterMCPTool(srv, tool, s.tool(tool.Name, endpoint), decodeTransform)
}

// --- modules ---

func (s *Server) registerModulesTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "carousel_modules",
		Description: "List the registered slide modules and carousel styles.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(_ context.Context, _ any) (any, error) {
		return s.listModules(), nil
	}

	decode := func(_ *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: nil}, nil
	}

	kit.RegisterMCPTool(srv, tool, s.tool(tool.Name, endpoint), decode)
}
