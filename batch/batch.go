// Package batch runs lists of independent render jobs. Each job produces
// one image or one failure record; a failing job never stops the others
// and results always line up with the input positionally.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/carrousel/carousel"
	"github.com/hazyhaar/carrousel/compose"
)

// Job is one render unit.
type Job struct {
	Index  int
	Layout carousel.TemplateLayout
}

// Jobs wraps layouts as jobs indexed by position.
func Jobs(layouts []carousel.TemplateLayout) []Job {
	jobs := make([]Job, len(layouts))
	for i, l := range layouts {
		jobs[i] = Job{Index: i, Layout: l}
	}
	return jobs
}

// JobResult is the outcome of one job.
type JobResult struct {
	Index       int    `json:"index"`
	Success     bool   `json:"success"`
	SlideNumber int    `json:"slideNumber"`
	Filename    string `json:"filename,omitempty"`
	URL         string `json:"url,omitempty"`
	Error       string `json:"error,omitempty"`
	DurationMs  int64  `json:"durationMs"`

	Err error `json:"-"`
}

// Summary counts outcomes once every job finished.
type Summary struct {
	Total      int   `json:"total"`
	Successful int   `json:"successful"`
	Failed     int   `json:"failed"`
	DurationMs int64 `json:"durationMs"`
}

// Result is the outcome of a batch.
type Result struct {
	BatchID string      `json:"batchId"`
	Results []JobResult `json:"results"`
	Summary Summary     `json:"summary"`
	// PDF is the public URL of the bundled slides, when enabled.
	PDF       string    `json:"pdf,omitempty"`
	StartedAt time.Time `json:"startedAt"`
}

func (r *Result) summarize(start time.Time) {
	r.Summary = Summary{Total: len(r.Results), DurationMs: time.Since(start).Milliseconds()}
	for _, jr := range r.Results {
		if jr.Success {
			r.Summary.Successful++
		} else {
			r.Summary.Failed++
		}
	}
}

// Builder composes the document of one layout.
type Builder interface {
	Build(ctx context.Context, l carousel.TemplateLayout) (*compose.Document, error)
}

// BuilderFunc adapts a function to Builder.
type BuilderFunc func(ctx context.Context, l carousel.TemplateLayout) (*compose.Document, error)

func (f BuilderFunc) Build(ctx context.Context, l carousel.TemplateLayout) (*compose.Document, error) {
	return f(ctx, l)
}

// CarouselBuilder composes many layouts onto one canvas.
type CarouselBuilder interface {
	BuildCarousel(ctx context.Context, layouts []carousel.TemplateLayout, overlay *compose.FloatingOverlay) (*compose.Document, error)
}

// Renderer captures documents. *render.Engine implements it.
type Renderer interface {
	RenderSingle(ctx context.Context, index int, doc *compose.Document) ([]byte, error)
	RenderCarousel(ctx context.Context, index int, doc *compose.Document) ([][]byte, error)
}

// Recorder persists batch outcomes.
type Recorder interface {
	Record(ctx context.Context, r *Result) error
}

// Config configures an Orchestrator.
type Config struct {
	// OutputDir receives the images. Created on demand.
	OutputDir string
	// PublicBaseURL prefixes output filenames in results. Default "/output".
	PublicBaseURL string
	// Concurrency bounds concurrent jobs. Values below 2 run sequentially.
	Concurrency int
	// SaveDocuments writes each composed page next to its image.
	SaveDocuments bool
	// PDFBundle writes the successful images of a batch into one PDF.
	PDFBundle bool
}

func (c *Config) defaults() {
	if c.OutputDir == "" {
		c.OutputDir = "output"
	}
	if c.PublicBaseURL == "" {
		c.PublicBaseURL = "/output"
	}
	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
}

// Orchestrator runs batches.
type Orchestrator struct {
	cfg      Config
	renderer Renderer
	fallback Builder
	builders map[string]Builder
	carousel CarouselBuilder
	recorder Recorder
	logger   *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithBuilder routes layouts of style kind to b.
func WithBuilder(kind string, b Builder) Option {
	return func(o *Orchestrator) { o.builders[kind] = b }
}

// WithCarouselBuilder enables RunCarousel.
func WithCarouselBuilder(b CarouselBuilder) Option {
	return func(o *Orchestrator) { o.carousel = b }
}

// WithRecorder persists every batch result.
func WithRecorder(r Recorder) Option { return func(o *Orchestrator) { o.recorder = r } }

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// New returns an Orchestrator. fallback builds every layout whose style
// kind has no dedicated builder.
func New(cfg Config, r Renderer, fallback Builder, opts ...Option) *Orchestrator {
	cfg.defaults()
	o := &Orchestrator{
		cfg:      cfg,
		renderer: r,
		fallback: fallback,
		builders: make(map[string]Builder),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) builder(kind string) Builder {
	if b, ok := o.builders[kind]; ok {
		return b
	}
	return o.fallback
}

// safeBuild turns a builder panic into an error so one job cannot take the
// batch down.
func safeBuild(ctx context.Context, b Builder, l carousel.TemplateLayout) (doc *compose.Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, fmt.Errorf("batch: builder panic: %v", r)
		}
	}()
	if b == nil {
		return nil, fmt.Errorf("batch: no builder for style %q", l.StyleKind)
	}
	return b.Build(ctx, l)
}
