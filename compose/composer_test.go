package compose

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"golang.org/x/net/html"

	"github.com/hazyhaar/carrousel/modules"
)

func newComposer(t *testing.T, extra ...*modules.Module) *Composer {
	t.Helper()
	reg := modules.NewRegistry()
	reg.MustRegister(modules.Builtins()...)
	reg.MustRegister(extra...)
	return New(reg)
}

func textSlide(title string) *Slide {
	s := NewSlide(modules.CanvasID, modules.TextID)
	s.SetData(modules.TextID, modules.Data{"title": title, "texts": []any{"corpo"}})
	return s
}

func TestCompose_NoSlides(t *testing.T) {
	c := newComposer(t)
	if _, err := c.Compose(context.Background(), nil, nil, Options{}); !errors.Is(err, ErrNoSlides) {
		t.Fatalf("want ErrNoSlides, got %v", err)
	}
}

func TestCompose_SingleSlide(t *testing.T) {
	c := newComposer(t)
	doc, err := c.Compose(context.Background(), []*Slide{textSlide("Olá")}, nil, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if doc.CanvasWidth != 1080 || doc.CanvasHeight != 1440 {
		t.Fatalf("canvas %dx%d", doc.CanvasWidth, doc.CanvasHeight)
	}
	if strings.Contains(doc.HTML, `class="carousel"`) {
		t.Fatal("single slide must not use the carousel wrapper")
	}
	if doc.StyleVariables["--canvas-bg"] != "#ffffff" {
		t.Fatalf("vars: %v", doc.StyleVariables)
	}
	if len(doc.Diagnostics) != 0 {
		t.Fatalf("unexpected diagnostics: %v", doc.Err())
	}
	if !strings.Contains(doc.Page(), "<!DOCTYPE html>") {
		t.Fatal("page missing doctype")
	}
}

func TestCompose_SharedVsLocalPrecedence(t *testing.T) {
	// WHAT: Slide-local module data always wins over shared data.
	// WHY: Shared canvas defaults must not clobber a slide's own settings.
	c := newComposer(t)
	a := textSlide("A")
	a.SetData(modules.CanvasID, modules.Data{"background": "#000000"})
	b := textSlide("B")
	shared := map[string]modules.Data{
		modules.CanvasID: {"background": "#abcdef", "padding": 40},
	}
	doc, err := c.Compose(context.Background(), []*Slide{a, b}, shared, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(doc.HTML, `data-slide="0" style="--canvas-bg: #000000`) {
		t.Fatalf("slide 0 should carry its local background:\n%s", doc.HTML)
	}
	if !strings.Contains(doc.HTML, `data-slide="1" style="--canvas-bg: #abcdef`) {
		t.Fatalf("slide 1 should fall back to shared background:\n%s", doc.HTML)
	}
	if _, ok := doc.StyleVariables["--canvas-bg"]; ok {
		t.Fatal("differing vars must not be reported as common")
	}
	if doc.StyleVariables["--canvas-padding"] != "40px" {
		t.Fatalf("shared padding lost: %v", doc.StyleVariables)
	}
}

func TestCompose_RoundTripMarker(t *testing.T) {
	// WHAT: Every builtin composed alone yields exactly one root marker.
	// WHY: Editors locate module elements by data-module.
	data := map[string]modules.Data{
		modules.BackgroundImageID: {"src": "bg.jpg"},
		modules.ImageID:           {"src": "a.png"},
		modules.SplitImageID:      {"src": "a.png"},
		modules.OverlayTextID:     {"text": "@handle"},
		modules.LogoID:            {"src": "logo.svg"},
		modules.TextID:            {"title": "<b>x</b>"},
	}
	c := newComposer(t)
	for _, m := range modules.Builtins() {
		s := NewSlide(m.ID)
		s.SetData(m.ID, data[m.ID])
		doc, err := c.Compose(context.Background(), []*Slide{s}, nil, Options{})
		if err != nil {
			t.Fatal(err)
		}
		n, err := CountMarkers(doc.HTML, m.ID)
		if err != nil {
			t.Fatal(err)
		}
		if n != 1 {
			t.Errorf("%s: %d markers", m.ID, n)
		}
	}
}

func TestCompose_UnknownModuleSkipped(t *testing.T) {
	c := newComposer(t)
	s := textSlide("ok")
	s.EnabledModules = append(s.EnabledModules, "removed")
	doc, err := c.Compose(context.Background(), []*Slide{s}, nil, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Diagnostics) != 1 || doc.Diagnostics[0].Phase != PhaseResolve {
		t.Fatalf("diagnostics: %v", doc.Err())
	}
	if !errors.Is(doc.Diagnostics[0], ErrUnknownModule) {
		t.Fatal("diagnostic should wrap ErrUnknownModule")
	}
	if !strings.Contains(doc.HTML, `data-module="text"`) {
		t.Fatal("valid modules must still render")
	}
}

func TestCompose_PanickingModuleIsContained(t *testing.T) {
	// WHAT: A module that panics contributes nothing and becomes a diagnostic.
	// WHY: One malformed module must not blank the whole canvas.
	boom := &modules.Module{
		ID: "boom", Category: modules.Content, StackOrder: 150,
		HTML: func(modules.Data, modules.RenderContext) (string, error) { panic("kaboom") },
		CSS: func(modules.Data, modules.RenderContext) (string, error) {
			return "", errors.New("css failed")
		},
	}
	c := newComposer(t, boom)
	s := textSlide("ok")
	s.EnabledModules = append(s.EnabledModules, "boom")
	doc, err := c.Compose(context.Background(), []*Slide{s}, nil, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !errors.Is(doc.Err(), ErrModuleComposition) {
		t.Fatal("want ErrModuleComposition in diagnostics")
	}
	phases := map[string]bool{}
	for _, d := range doc.Diagnostics {
		if d.ModuleID == "boom" {
			phases[d.Phase] = true
		}
	}
	if !phases[PhaseHTML] || !phases[PhaseCSS] {
		t.Fatalf("phases: %v", phases)
	}
	if !strings.Contains(doc.HTML, `data-module="text"`) || !strings.Contains(doc.HTML, `data-module="canvas"`) {
		t.Fatal("other modules lost")
	}
	raw, err := json.Marshal(doc.Diagnostics)
	if err != nil || !strings.Contains(string(raw), `"phase":"html"`) {
		t.Fatalf("diagnostics json: %s %v", raw, err)
	}
}

func TestCompose_MarkerMismatchReported(t *testing.T) {
	twice := &modules.Module{
		ID: "twice", Category: modules.Content, StackOrder: 150,
		HTML: func(modules.Data, modules.RenderContext) (string, error) {
			return `<div data-module="twice"></div><div data-module="twice"></div>`, nil
		},
	}
	c := newComposer(t, twice)
	doc, err := c.Compose(context.Background(), []*Slide{NewSlide("twice")}, nil, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Diagnostics) != 1 || doc.Diagnostics[0].Phase != PhaseMarker {
		t.Fatalf("diagnostics: %v", doc.Err())
	}
}

func TestCompose_HTMLStackOrderCSSRegistrationOrder(t *testing.T) {
	c := newComposer(t)
	// Enabled out of order on purpose.
	s := NewSlide(modules.CornerBadgeID, modules.TextID, modules.CanvasID)
	doc, err := c.Compose(context.Background(), []*Slide{s}, nil, Options{})
	if err != nil {
		t.Fatal(err)
	}
	iCanvas := strings.Index(doc.HTML, `data-module="canvas"`)
	iText := strings.Index(doc.HTML, `data-module="text"`)
	iBadge := strings.Index(doc.HTML, `data-module="cornerBadge"`)
	if !(iCanvas < iText && iText < iBadge) {
		t.Fatalf("HTML not in stack order: %d %d %d", iCanvas, iText, iBadge)
	}
	cCanvas := strings.Index(doc.CSS, ".canvas-bg")
	cText := strings.Index(doc.CSS, ".text-block")
	cBadge := strings.Index(doc.CSS, ".corner-badge")
	if !(cCanvas < cText && cText < cBadge) {
		t.Fatalf("CSS not in registration order")
	}
}

func TestCompose_ManualRenderOrder(t *testing.T) {
	// WHAT: Content modules follow the slide's render order and paint layers.
	// WHY: Users drag image above text in the editor.
	reg := modules.Default()
	c := New(reg)
	s := NewSlide(modules.CanvasID, modules.TextID, modules.ImageID)
	s.SetData(modules.ImageID, modules.Data{"src": "a.png"})
	if err := s.SetRenderOrder(reg, []RenderOrderEntry{
		{ID: "r1", ModuleID: modules.ImageID},
		{ID: "r2", ModuleID: modules.TextID},
	}); err != nil {
		t.Fatal(err)
	}
	doc, err := c.Compose(context.Background(), []*Slide{s}, nil, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Index(doc.HTML, `data-module="image"`) > strings.Index(doc.HTML, `data-module="text"`) {
		t.Fatal("image should come first")
	}
	if !strings.Contains(doc.CSS, ".slide-image{") || !strings.Contains(doc.CSS, "z-index:100;margin:0") {
		t.Fatalf("image should paint at the first manual layer:\n%s", doc.CSS)
	}
}

func TestCompose_CarouselWithOverlay(t *testing.T) {
	c := newComposer(t)
	ov := &FloatingOverlay{Enabled: true, ImageURL: "arrow.png", OffsetX: 10, Scale: 120}
	doc, err := c.Compose(context.Background(), []*Slide{textSlide("1"), textSlide("2"), textSlide("3")}, nil,
		Options{Overlay: ov, BaseURL: "http://assets.local/static"})
	if err != nil {
		t.Fatal(err)
	}
	if doc.CanvasWidth != 3*1080 || len(doc.Geometry.Clips) != 3 {
		t.Fatalf("geometry %+v", doc.Geometry)
	}
	if !strings.HasPrefix(doc.HTML, `<div class="carousel">`) {
		t.Fatal("carousel wrapper missing")
	}
	if !strings.Contains(doc.HTML, `src="http://assets.local/static/arrow.png"`) {
		t.Fatalf("overlay asset not resolved:\n%s", doc.HTML)
	}
	if !strings.Contains(doc.CSS, "left:1620px;top:720px") {
		t.Fatal("overlay not anchored on canvas center")
	}
	if !strings.Contains(doc.Page(), `<base href="http://assets.local/static/">`) {
		t.Fatal("base href missing")
	}
}

func TestRequest_Legacy(t *testing.T) {
	var r Request
	if err := json.Unmarshal([]byte(`{"enabledModules":["canvas","text"],"moduleData":{"text":{"title":"x"}}}`), &r); err != nil {
		t.Fatal(err)
	}
	slides, _, err := r.Normalized()
	if err != nil {
		t.Fatal(err)
	}
	if len(slides) != 1 || slides[0].ID == "" || slides[0].Data["text"]["title"] != "x" {
		t.Fatalf("got %+v", slides[0])
	}
	if _, _, err := (&Request{}).Normalized(); !errors.Is(err, ErrNoSlides) {
		t.Fatal("empty request should fail")
	}
}

func TestCompose_BackgroundImageCannotInjectScript(t *testing.T) {
	// WHAT: A hostile background image URL stays inside the stylesheet.
	// WHY: The page runs in the rendering browser; module data must never add elements.
	c := newComposer(t)
	s := NewSlide(modules.CanvasID, modules.BackgroundImageID)
	s.SetData(modules.BackgroundImageID, modules.Data{
		"src": `https://x/a.png</style><script>document.title="pwned"</script>`,
	})
	doc, err := c.Compose(context.Background(), []*Slide{s}, nil, Options{})
	if err != nil {
		t.Fatal(err)
	}
	root, err := html.Parse(strings.NewReader(doc.Page()))
	if err != nil {
		t.Fatal(err)
	}
	var scripts, styles int
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script":
				scripts++
			case "style":
				styles++
			}
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(root)
	if scripts != 0 {
		t.Fatalf("page contains %d script element(s)", scripts)
	}
	if !strings.Contains(doc.Page(), "%3C/style%3E") {
		t.Fatal("encoded reference missing from stylesheet")
	}
}
