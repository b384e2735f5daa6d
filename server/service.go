// Package server exposes composition, carousel transformation and batch
// rendering over HTTP (chi) and MCP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/carrousel/batch"
	"github.com/hazyhaar/carrousel/carousel"
	"github.com/hazyhaar/carrousel/compose"
	"github.com/hazyhaar/carrousel/modules"
	"github.com/hazyhaar/carrousel/renderlog"
)

// ErrBadRequest marks caller mistakes (HTTP 400).
var ErrBadRequest = errors.New("server: bad request")

// Config configures a Server.
type Config struct {
	// Transform holds the default transform options. Request parameters
	// override the highlight colors.
	Transform carousel.Options
	// BatchTimeout bounds one render request. Default 5m.
	BatchTimeout time.Duration
	// MaxBody bounds JSON request bodies. Default 8MB.
	MaxBody int64
	// OutputDir is served under PublicURL when StaticOutput is set.
	OutputDir    string
	PublicURL    string
	StaticOutput bool
}

func (c *Config) defaults() {
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = 5 * time.Minute
	}
	if c.MaxBody <= 0 {
		c.MaxBody = 8 << 20
	}
	if c.PublicURL == "" {
		c.PublicURL = "/output"
	}
}

// Server holds the pipeline behind the HTTP and MCP surfaces.
type Server struct {
	cfg      Config
	reg      *modules.Registry
	composer *compose.Composer
	builder  *carousel.Builder
	batches  *batch.Orchestrator
	history  *renderlog.Store
	metrics  *renderlog.Metrics
	alive    func() bool
	logger   *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithHistory exposes recorded batches under /api/batches.
func WithHistory(s *renderlog.Store) Option { return func(srv *Server) { srv.history = s } }

// WithMetrics exposes render timings under /api/metrics.
func WithMetrics(m *renderlog.Metrics) Option { return func(srv *Server) { srv.metrics = m } }

// WithHealth reports rendering surface liveness on /health.
func WithHealth(alive func() bool) Option { return func(srv *Server) { srv.alive = alive } }

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(srv *Server) {
		if l != nil {
			srv.logger = l
		}
	}
}

// New returns a Server.
func New(cfg Config, reg *modules.Registry, composer *compose.Composer, builder *carousel.Builder, batches *batch.Orchestrator, opts ...Option) *Server {
	cfg.defaults()
	s := &Server{
		cfg:      cfg,
		reg:      reg,
		composer: composer,
		builder:  builder,
		batches:  batches,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ModuleInfo describes a registered module.
type ModuleInfo struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Category     modules.Category `json:"category"`
	StackOrder   int              `json:"stackOrder"`
	Schema       modules.Schema   `json:"schema"`
	Dependencies []string         `json:"dependencies,omitempty"`
	Conflicts    []string         `json:"conflicts,omitempty"`
}

// ModulesResponse lists the registry and the carousel styles.
type ModulesResponse struct {
	Modules []ModuleInfo `json:"modules"`
	Styles  []string     `json:"styles"`
}

// TransformRequest is a raw carousel document plus highlight overrides.
type TransformRequest struct {
	Data                json.RawMessage `json:"data"`
	HighlightColor      string          `json:"highlight_color,omitempty"`
	HighlightBackground string          `json:"highlight_bg,omitempty"`
	// Mode selects "slides" (one image per slide, default) or "canvas"
	// (one shared canvas cut into clips). Render only.
	Mode    string                   `json:"mode,omitempty"`
	Overlay *compose.FloatingOverlay `json:"overlay,omitempty"`
}

// TransformResponse is the layout list of a transformed carousel.
type TransformResponse struct {
	Format      carousel.Format           `json:"format"`
	Layouts     []carousel.TemplateLayout `json:"layouts"`
	Count       int                       `json:"count"`
	Transcripts []string                  `json:"transcripts,omitempty"`
}

// RenderResponse is a transform followed by a batch.
type RenderResponse struct {
	*batch.Result
	Layouts []carousel.TemplateLayout `json:"layouts"`
}

func (s *Server) listModules() *ModulesResponse {
	defs := s.reg.Definitions()
	out := &ModulesResponse{Modules: make([]ModuleInfo, len(defs)), Styles: carousel.StyleKinds()}
	for i, m := range defs {
		out.Modules[i] = ModuleInfo{
			ID:           m.ID,
			Name:         m.Name,
			Category:     m.Category,
			StackOrder:   m.StackOrder,
			Schema:       m.Schema,
			Dependencies: m.Dependencies,
			Conflicts:    m.Conflicts,
		}
	}
	return out
}

func (s *Server) compose(ctx context.Context, req *compose.Request) (*compose.Document, error) {
	doc, err := s.composer.ComposeRequest(ctx, req)
	if errors.Is(err, compose.ErrNoSlides) {
		return nil, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	if err != nil {
		return nil, err
	}
	if len(doc.Diagnostics) > 0 {
		s.logger.Warn("server: compose diagnostics", "count", len(doc.Diagnostics))
	}
	return doc, nil
}

func (s *Server) transformOptions(req *TransformRequest) carousel.Options {
	o := s.cfg.Transform
	if req.HighlightColor != "" {
		o.HighlightColor = req.HighlightColor
	}
	if req.HighlightBackground != "" {
		o.HighlightBackground = req.HighlightBackground
	}
	return o
}

func (s *Server) transform(_ context.Context, req *TransformRequest) (*TransformResponse, error) {
	if len(req.Data) == 0 {
		return nil, fmt.Errorf("%w: data is required", ErrBadRequest)
	}
	c, err := carousel.Normalize(req.Data)
	if err != nil {
		return nil, err
	}
	layouts := carousel.BuildLayouts(c, s.transformOptions(req))
	resp := &TransformResponse{Format: c.Format, Layouts: layouts, Count: len(layouts)}
	if ts, err := carousel.Transcript(layouts); err != nil {
		s.logger.Warn("server: transcript failed", "error", err)
	} else {
		resp.Transcripts = ts
	}
	return resp, nil
}

func (s *Server) renderBatch(ctx context.Context, layouts []carousel.TemplateLayout) *batch.Result {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.BatchTimeout)
	defer cancel()
	return s.batches.RunBatch(ctx, batch.Jobs(layouts))
}

func (s *Server) renderCarousel(ctx context.Context, req *TransformRequest) (*RenderResponse, error) {
	t, err := s.transform(ctx, req)
	if err != nil {
		return nil, err
	}
	switch req.Mode {
	case "", "slides":
		return &RenderResponse{Result: s.renderBatch(ctx, t.Layouts), Layouts: t.Layouts}, nil
	case "canvas":
		ctx, cancel := context.WithTimeout(ctx, s.cfg.BatchTimeout)
		defer cancel()
		return &RenderResponse{Result: s.batches.RunCarousel(ctx, t.Layouts, req.Overlay), Layouts: t.Layouts}, nil
	default:
		return nil, fmt.Errorf("%w: unknown mode %q", ErrBadRequest, req.Mode)
	}
}
