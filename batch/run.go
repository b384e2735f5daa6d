package batch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/carrousel/carousel"
	"github.com/hazyhaar/carrousel/compose"
	"github.com/hazyhaar/carrousel/fsafe"
	"github.com/hazyhaar/carrousel/idgen"
	"github.com/hazyhaar/carrousel/render"
)

// ErrDuplicateFilename is returned for a job whose output name was already
// claimed by an earlier job of the same batch.
var ErrDuplicateFilename = errors.New("batch: duplicate output filename")

// RunBatch runs jobs and returns one result per job, in input order.
// Jobs run sequentially unless Concurrency > 1. Once ctx is done, jobs not
// yet started fail immediately with a *render.RenderTimeoutError.
func (o *Orchestrator) RunBatch(ctx context.Context, jobs []Job) *Result {
	start := time.Now()
	res := &Result{BatchID: idgen.Batch(), Results: make([]JobResult, len(jobs)), StartedAt: start.UTC()}
	log := o.logger.With("batch", res.BatchID)
	log.Info("batch: start", "jobs", len(jobs), "concurrency", o.cfg.Concurrency)

	claims := newClaims()
	if err := os.MkdirAll(o.cfg.OutputDir, 0o755); err != nil {
		for i, j := range jobs {
			res.Results[i] = failed(j, fmt.Errorf("batch: output dir: %w", err), start)
		}
	} else if o.cfg.Concurrency < 2 {
		for i, j := range jobs {
			res.Results[i] = o.runJob(ctx, j, claims)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(o.cfg.Concurrency)
		for i, j := range jobs {
			g.Go(func() error {
				res.Results[i] = o.runJob(ctx, j, claims)
				return nil
			})
		}
		_ = g.Wait()
	}

	if o.cfg.PDFBundle {
		o.bundle(res)
	}
	res.summarize(start)
	log.Info("batch: done", "total", res.Summary.Total, "successful", res.Summary.Successful,
		"failed", res.Summary.Failed, "duration_ms", res.Summary.DurationMs)
	o.record(ctx, res)
	return res
}

func (o *Orchestrator) runJob(ctx context.Context, j Job, claims *claims) JobResult {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return failed(j, &render.RenderTimeoutError{Index: j.Index, Stage: render.StageQueued, Err: err}, start)
	}

	name, err := outputName(j)
	if err != nil {
		return failed(j, err, start)
	}
	if !claims.claim(name) {
		return failed(j, fmt.Errorf("%w: %s", ErrDuplicateFilename, name), start)
	}
	path, err := fsafe.SafePath(o.cfg.OutputDir, name)
	if err != nil {
		return failed(j, err, start)
	}

	doc, err := safeBuild(ctx, o.builder(carouselKind(j.Layout)), j.Layout)
	if err != nil {
		return failed(j, fmt.Errorf("batch: build: %w", err), start)
	}
	for _, d := range doc.Diagnostics {
		o.logger.Warn("batch: composition diagnostic", "job", j.Index, "module", d.ModuleID, "phase", d.Phase, "error", d.Err)
	}
	if o.cfg.SaveDocuments {
		o.saveDocument(path, doc)
	}

	img, err := o.renderer.RenderSingle(ctx, j.Index, doc)
	if err != nil {
		return failed(j, err, start)
	}
	if err := os.WriteFile(path, img, 0o644); err != nil {
		return failed(j, fmt.Errorf("batch: write %s: %w", name, err), start)
	}

	o.logger.Debug("batch: job done", "job", j.Index, "file", name)
	return JobResult{
		Index:       j.Index,
		Success:     true,
		SlideNumber: j.Layout.SlideNumber,
		Filename:    name,
		URL:         o.publicURL(name),
		DurationMs:  time.Since(start).Milliseconds(),
	}
}

// RunCarousel composes all layouts onto one canvas, renders it once and
// cuts one image per layout. Composition or load failures fail every
// result, since no slide can be captured without the page.
func (o *Orchestrator) RunCarousel(ctx context.Context, layouts []carousel.TemplateLayout, overlay *compose.FloatingOverlay) *Result {
	start := time.Now()
	jobs := Jobs(layouts)
	res := &Result{BatchID: idgen.Batch(), Results: make([]JobResult, len(jobs)), StartedAt: start.UTC()}
	log := o.logger.With("batch", res.BatchID)

	failAll := func(err error) *Result {
		log.Warn("batch: carousel failed", "error", err)
		for i, j := range jobs {
			res.Results[i] = failed(j, err, start)
		}
		res.summarize(start)
		o.record(ctx, res)
		return res
	}

	if o.carousel == nil {
		return failAll(errors.New("batch: carousel rendering not configured"))
	}
	if len(layouts) == 0 {
		res.summarize(start)
		return res
	}
	if err := os.MkdirAll(o.cfg.OutputDir, 0o755); err != nil {
		return failAll(fmt.Errorf("batch: output dir: %w", err))
	}

	names := make([]string, len(jobs))
	paths := make([]string, len(jobs))
	claims := newClaims()
	for i, j := range jobs {
		name, err := outputName(j)
		if err == nil && !claims.claim(name) {
			err = fmt.Errorf("%w: %s", ErrDuplicateFilename, name)
		}
		if err == nil {
			paths[i], err = fsafe.SafePath(o.cfg.OutputDir, name)
		}
		if err != nil {
			return failAll(err)
		}
		names[i] = name
	}

	doc, err := o.carousel.BuildCarousel(ctx, layouts, overlay)
	if err != nil {
		return failAll(fmt.Errorf("batch: build carousel: %w", err))
	}
	if o.cfg.SaveDocuments {
		o.saveDocument(filepath.Join(o.cfg.OutputDir, res.BatchID+".png"), doc)
	}
	images, err := o.renderer.RenderCarousel(ctx, 0, doc)
	if err != nil {
		return failAll(err)
	}

	for i, j := range jobs {
		if i >= len(images) {
			res.Results[i] = failed(j, &render.CaptureError{Index: 0, Clip: i, Err: errors.New("missing image")}, start)
			continue
		}
		if err := os.WriteFile(paths[i], images[i], 0o644); err != nil {
			res.Results[i] = failed(j, fmt.Errorf("batch: write %s: %w", names[i], err), start)
			continue
		}
		res.Results[i] = JobResult{
			Index:       j.Index,
			Success:     true,
			SlideNumber: j.Layout.SlideNumber,
			Filename:    names[i],
			URL:         o.publicURL(names[i]),
			DurationMs:  time.Since(start).Milliseconds(),
		}
	}
	if o.cfg.PDFBundle {
		o.bundle(res)
	}
	res.summarize(start)
	log.Info("batch: carousel done", "slides", len(layouts), "successful", res.Summary.Successful)
	o.record(ctx, res)
	return res
}

func failed(j Job, err error, start time.Time) JobResult {
	return JobResult{
		Index:       j.Index,
		SlideNumber: j.Layout.SlideNumber,
		Filename:    j.Layout.Filename,
		Error:       err.Error(),
		Err:         err,
		DurationMs:  time.Since(start).Milliseconds(),
	}
}

// outputName returns the validated image filename of j.
func outputName(j Job) (string, error) {
	name := strings.TrimSpace(j.Layout.Filename)
	if name == "" {
		n := j.Layout.SlideNumber
		if n <= 0 {
			n = j.Index + 1
		}
		name = fmt.Sprintf("slide_%02d.png", n)
	}
	if !strings.EqualFold(filepath.Ext(name), ".png") {
		name += ".png"
	}
	if err := fsafe.ValidateFilename(name); err != nil {
		return "", err
	}
	return name, nil
}

func carouselKind(l carousel.TemplateLayout) string {
	return strings.ToLower(strings.TrimSpace(l.StyleKind))
}

func (o *Orchestrator) publicURL(name string) string {
	return strings.TrimSuffix(o.cfg.PublicBaseURL, "/") + "/" + url.PathEscape(name)
}

func (o *Orchestrator) saveDocument(imagePath string, doc *compose.Document) {
	p := strings.TrimSuffix(imagePath, filepath.Ext(imagePath)) + ".html"
	if err := os.WriteFile(p, []byte(doc.Page()), 0o644); err != nil {
		o.logger.Warn("batch: save document", "path", p, "error", err)
	}
}

func (o *Orchestrator) record(ctx context.Context, res *Result) {
	if o.recorder == nil {
		return
	}
	// Recording must not be cut short by the render deadline.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := o.recorder.Record(rctx, res); err != nil {
		o.logger.Warn("batch: record", "batch", res.BatchID, "error", err)
	}
}

type claims struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newClaims() *claims { return &claims{seen: make(map[string]bool)} }

func (c *claims) claim(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := strings.ToLower(name)
	if c.seen[key] {
		return false
	}
	c.seen[key] = true
	return true
}
