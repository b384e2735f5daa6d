package render

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hazyhaar/carrousel/compose"
)

type fakeSurface struct {
	mu       sync.Mutex
	pages    []*fakePage
	recycles int
	hangLoad bool
	failClip int // clip index whose capture fails, -2 = none
}

func newFakeSurface() *fakeSurface { return &fakeSurface{failClip: -2} }

func (s *fakeSurface) OpenPage(_ context.Context, w, h int) (Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &fakePage{w: w, h: h, hang: s.hangLoad, failClip: s.failClip}
	s.pages = append(s.pages, p)
	return p, nil
}

func (s *fakeSurface) Recycle(context.Context) error {
	s.mu.Lock()
	s.recycles++
	s.mu.Unlock()
	return nil
}

func (s *fakeSurface) Close() error { return nil }

type fakePage struct {
	w, h     int
	hang     bool
	failClip int
	loads    int
	captures []*compose.Rect
	closed   bool
}

func (p *fakePage) Load(ctx context.Context, html string) error {
	p.loads++
	if p.hang {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (p *fakePage) FontsReady(context.Context) error { return nil }

func (p *fakePage) Capture(_ context.Context, clip *compose.Rect) ([]byte, error) {
	idx := len(p.captures)
	p.captures = append(p.captures, clip)
	if clip != nil && idx == p.failClip {
		return nil, errors.New("gpu lost")
	}
	return []byte(fmt.Sprintf("png-%d", idx)), nil
}

func (p *fakePage) Close() error {
	p.closed = true
	return nil
}

func doc(n int) *compose.Document {
	g := compose.Layout(n, compose.DefaultUnit)
	return &compose.Document{HTML: "<p>x</p>", CanvasWidth: g.CanvasWidth, CanvasHeight: g.CanvasHeight, Geometry: g}
}

func TestRenderSingle(t *testing.T) {
	s := newFakeSurface()
	e := New(s, WithGrace(0))
	img, err := e.RenderSingle(context.Background(), 0, doc(1))
	if err != nil {
		t.Fatal(err)
	}
	if string(img) != "png-0" {
		t.Fatalf("img %q", img)
	}
	p := s.pages[0]
	if p.w != 1080 || p.h != 1440 || p.captures[0] != nil || !p.closed {
		t.Fatalf("page %+v", p)
	}
}

func TestRenderCarousel_OneLoadNClips(t *testing.T) {
	// WHAT: Three slides load the page once and capture three clips.
	// WHY: Reloading between clips costs time and can change paint timing.
	s := newFakeSurface()
	e := New(s, WithGrace(0))
	imgs, err := e.RenderCarousel(context.Background(), 4, doc(3))
	if err != nil {
		t.Fatal(err)
	}
	if len(imgs) != 3 || len(s.pages) != 1 {
		t.Fatalf("imgs %d pages %d", len(imgs), len(s.pages))
	}
	p := s.pages[0]
	if p.loads != 1 || p.w != 3*1080 {
		t.Fatalf("page %+v", p)
	}
	for i, c := range p.captures {
		if c == nil || c.X != i*1080 {
			t.Fatalf("clip %d = %+v", i, c)
		}
	}
	if !p.closed {
		t.Fatal("page leaked")
	}
}

func TestRenderCarousel_CaptureErrorClosesPage(t *testing.T) {
	s := newFakeSurface()
	s.failClip = 1
	e := New(s, WithGrace(0))
	_, err := e.RenderCarousel(context.Background(), 7, doc(3))
	var ce *CaptureError
	if !errors.As(err, &ce) || ce.Index != 7 || ce.Clip != 1 {
		t.Fatalf("got %v", err)
	}
	if !errors.Is(err, ErrCapture) {
		t.Fatal("want ErrCapture")
	}
	if !s.pages[0].closed {
		t.Fatal("page leaked on capture error")
	}
}

func TestRender_LoadTimeoutAndWatchdog(t *testing.T) {
	// WHAT: Hung loads return RenderTimeoutError; the third consecutive one
	// recycles the surface.
	// WHY: A wedged browser must not poison every later job.
	s := newFakeSurface()
	s.hangLoad = true
	e := New(s, WithGrace(0), WithLoadTimeout(10*time.Millisecond), WithWatchdog(3))
	for i := 0; i < 3; i++ {
		_, err := e.RenderSingle(context.Background(), i, doc(1))
		var te *RenderTimeoutError
		if !errors.As(err, &te) || te.Index != i || te.Stage != StageLoad {
			t.Fatalf("job %d: %v", i, err)
		}
		if !errors.Is(err, ErrRenderTimeout) || !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("job %d: classification %v", i, err)
		}
	}
	if s.recycles != 1 {
		t.Fatalf("recycles %d", s.recycles)
	}
	for _, p := range s.pages {
		if !p.closed {
			t.Fatal("page leaked on timeout")
		}
	}
}

func TestRender_SuccessResetsWatchdog(t *testing.T) {
	s := newFakeSurface()
	e := New(s, WithGrace(0), WithLoadTimeout(10*time.Millisecond), WithWatchdog(2))
	s.hangLoad = true
	e.RenderSingle(context.Background(), 0, doc(1))
	s.hangLoad = false
	if _, err := e.RenderSingle(context.Background(), 1, doc(1)); err != nil {
		t.Fatal(err)
	}
	s.hangLoad = true
	e.RenderSingle(context.Background(), 2, doc(1))
	if s.recycles != 0 {
		t.Fatalf("recycled after non-consecutive timeouts")
	}
}

func TestRender_ExpiredContextFailsFast(t *testing.T) {
	s := newFakeSurface()
	e := New(s)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.RenderSingle(ctx, 3, doc(1))
	var te *RenderTimeoutError
	if !errors.As(err, &te) || te.Stage != StageQueued {
		t.Fatalf("got %v", err)
	}
	if len(s.pages) != 0 {
		t.Fatal("no page should be opened")
	}
}

func TestRender_CallerDeadlineDuringGraceDoesNotRecycle(t *testing.T) {
	// WHAT: A caller deadline that expires in the grace delay fails the job
	// without counting toward the watchdog.
	// WHY: Batch deadlines say nothing about browser health.
	s := newFakeSurface()
	e := New(s, WithGrace(time.Second), WithWatchdog(1))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := e.RenderSingle(ctx, 0, doc(1))
	var te *RenderTimeoutError
	if !errors.As(err, &te) || te.Stage != StageGrace {
		t.Fatalf("got %v", err)
	}
	if s.recycles != 0 {
		t.Fatalf("recycles %d", s.recycles)
	}
}

type recordObserver struct {
	stages []string
	oks    []bool
}

func (o *recordObserver) ObserveRender(stage string, _ time.Duration, ok bool) {
	o.stages = append(o.stages, stage)
	o.oks = append(o.oks, ok)
}

func TestObserver(t *testing.T) {
	// WHAT: A successful render reports ready then capture; a failed
	// capture reports ok=false.
	// WHY: Timings feed the render metrics; failures must be told apart.
	s := newFakeSurface()
	obs := &recordObserver{}
	e := New(s, WithGrace(0), WithObserver(obs))
	if _, err := e.RenderSingle(context.Background(), 0, doc(1)); err != nil {
		t.Fatal(err)
	}
	if fmt.Sprint(obs.stages) != "[ready capture]" || !obs.oks[0] || !obs.oks[1] {
		t.Fatalf("got %v %v", obs.stages, obs.oks)
	}

	s.failClip = 0
	if _, err := e.RenderCarousel(context.Background(), 0, doc(2)); err == nil {
		t.Fatal("expected capture error")
	}
	if obs.oks[3] {
		t.Fatalf("capture failure reported ok: %v", obs.oks)
	}
}
