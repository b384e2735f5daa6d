// Package render loads composed documents into a headless rendering surface
// and captures them as PNG images: one full-canvas capture for a single
// slide, or one clipped capture per slide of a carousel canvas.
package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/carrousel/compose"
)

// Surface is the long-lived rendering surface. Implementations own one
// process handle shared by every job and must be safe for concurrent use.
type Surface interface {
	// OpenPage returns a fresh page context with a width x height viewport
	// at a device scale factor of 1.
	OpenPage(ctx context.Context, width, height int) (Page, error)
	// Recycle discards the current handle and starts a new one.
	Recycle(ctx context.Context) error
	Close() error
}

// Page is one job-scoped page context. It is never shared between jobs.
type Page interface {
	// Load sets the page content and returns once the load event fired and
	// the network settled.
	Load(ctx context.Context, html string) error
	// FontsReady waits for document.fonts.ready.
	FontsReady(ctx context.Context) error
	// Capture screenshots the clip, or the viewport when clip is nil.
	Capture(ctx context.Context, clip *compose.Rect) ([]byte, error)
	Close() error
}

// Stages reported to an Observer.
const (
	ObserveReady   = "ready"
	ObserveCapture = "capture"
)

// Observer receives the duration of each readiness wait and capture pass.
type Observer interface {
	ObserveRender(stage string, d time.Duration, ok bool)
}

// Engine renders documents on a Surface.
type Engine struct {
	surface     Surface
	grace       time.Duration
	loadTimeout time.Duration
	maxTimeouts int
	logger      *slog.Logger
	observer    Observer

	mu       sync.Mutex
	timeouts int
}

// Option configures an Engine.
type Option func(*Engine)

// WithGrace sets the fixed delay after fonts are ready, for late-painting
// vector assets. Default 150ms.
func WithGrace(d time.Duration) Option { return func(e *Engine) { e.grace = d } }

// WithLoadTimeout bounds load, network idle and font readiness together.
// Default 30s.
func WithLoadTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.loadTimeout = d
		}
	}
}

// WithWatchdog recycles the surface after n consecutive timeouts. Zero
// disables the watchdog. Default 3.
func WithWatchdog(n int) Option { return func(e *Engine) { e.maxTimeouts = n } }

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithObserver reports render timings to o.
func WithObserver(o Observer) Option { return func(e *Engine) { e.observer = o } }

// New returns an Engine over s.
func New(s Surface, opts ...Option) *Engine {
	e := &Engine{
		surface:     s,
		grace:       150 * time.Millisecond,
		loadTimeout: 30 * time.Second,
		maxTimeouts: 3,
		logger:      slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Close closes the surface.
func (e *Engine) Close() error { return e.surface.Close() }

// RenderSingle captures the whole canvas of doc as one image.
func (e *Engine) RenderSingle(ctx context.Context, index int, doc *compose.Document) ([]byte, error) {
	var img []byte
	err := e.withPage(ctx, index, doc, func(p Page) error {
		b, err := p.Capture(ctx, nil)
		if err != nil {
			return &CaptureError{Index: index, Clip: -1, Err: err}
		}
		img = b
		return nil
	})
	return img, err
}

// RenderCarousel loads doc once and captures one image per clip
// rectangle of its geometry. The page is never reloaded between clips.
func (e *Engine) RenderCarousel(ctx context.Context, index int, doc *compose.Document) ([][]byte, error) {
	clips := doc.Geometry.Clips
	if len(clips) == 0 {
		clips = compose.Layout(1, compose.Size{Width: doc.CanvasWidth, Height: doc.CanvasHeight}).Clips
	}
	images := make([][]byte, 0, len(clips))
	err := e.withPage(ctx, index, doc, func(p Page) error {
		for i := range clips {
			b, err := p.Capture(ctx, &clips[i])
			if err != nil {
				return &CaptureError{Index: index, Clip: i, Err: err}
			}
			images = append(images, b)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return images, nil
}

// withPage acquires a page sized to doc, waits for readiness and runs fn.
// The page is closed on every exit path.
func (e *Engine) withPage(ctx context.Context, index int, doc *compose.Document, fn func(Page) error) error {
	if doc == nil {
		return fmt.Errorf("render: job %d: nil document", index)
	}
	if err := ctx.Err(); err != nil {
		return &RenderTimeoutError{Index: index, Stage: StageQueued, Err: err}
	}

	page, err := e.surface.OpenPage(ctx, doc.CanvasWidth, doc.CanvasHeight)
	if err != nil {
		return fmt.Errorf("render: job %d: open page: %w", index, err)
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			e.logger.Debug("render: page close", "job", index, "error", cerr)
		}
	}()

	start := time.Now()
	if err := e.ready(ctx, index, page, doc); err != nil {
		e.observe(ObserveReady, start, false)
		return err
	}
	e.observe(ObserveReady, start, true)
	e.resetTimeouts()

	start = time.Now()
	err = fn(page)
	e.observe(ObserveCapture, start, err == nil)
	return err
}

// ready loads doc and waits for the load event, network idle, fonts and
// the grace delay.
func (e *Engine) ready(ctx context.Context, index int, page Page, doc *compose.Document) error {
	loadCtx, cancel := context.WithTimeout(ctx, e.loadTimeout)
	defer cancel()

	if err := page.Load(loadCtx, doc.Page()); err != nil {
		return e.loadFailure(ctx, loadCtx, index, StageLoad, err)
	}
	if err := page.FontsReady(loadCtx); err != nil {
		return e.loadFailure(ctx, loadCtx, index, StageFonts, err)
	}
	if e.grace > 0 {
		t := time.NewTimer(e.grace)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return &RenderTimeoutError{Index: index, Stage: StageGrace, Err: ctx.Err()}
		}
	}
	return nil
}

func (e *Engine) observe(stage string, start time.Time, ok bool) {
	if e.observer != nil {
		e.observer.ObserveRender(stage, time.Since(start), ok)
	}
}

func (e *Engine) loadFailure(ctx, loadCtx context.Context, index int, stage string, err error) error {
	// The caller's own deadline does not count against the surface.
	if ctx.Err() != nil {
		return &RenderTimeoutError{Index: index, Stage: stage, Err: ctx.Err()}
	}
	if loadCtx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return e.timedOut(index, stage, err)
	}
	return fmt.Errorf("render: job %d: %s: %w", index, stage, err)
}

// timedOut records a timeout and recycles the surface once the watchdog
// threshold is reached, so one hung page cannot poison later jobs.
func (e *Engine) timedOut(index int, stage string, err error) error {
	e.mu.Lock()
	e.timeouts++
	n := e.timeouts
	trip := e.maxTimeouts > 0 && n >= e.maxTimeouts
	if trip {
		e.timeouts = 0
	}
	e.mu.Unlock()

	e.logger.Warn("render: timeout", "job", index, "stage", stage, "consecutive", n)
	if trip {
		rctx, cancel := context.WithTimeout(context.Background(), e.loadTimeout)
		defer cancel()
		if rerr := e.surface.Recycle(rctx); rerr != nil {
			e.logger.Error("render: watchdog recycle failed", "error", rerr)
		} else {
			e.logger.Info("render: watchdog recycled surface", "after", n)
		}
	}
	return &RenderTimeoutError{Index: index, Stage: stage, Err: err}
}

func (e *Engine) resetTimeouts() {
	e.mu.Lock()
	e.timeouts = 0
	e.mu.Unlock()
}
