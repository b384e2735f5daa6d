// Package compose merges slides and module data into renderable documents
// and computes the canvas geometry of single slides and carousels.
package compose

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/hazyhaar/carrousel/modules"
)

// Paint layers assigned by the composer.
const (
	manualContentLayer = 100
	floatingLayer      = 10000
)

// Composer turns slides into documents against one registry.
type Composer struct {
	reg     *modules.Registry
	unit    Size
	baseURL string
	logger  *slog.Logger
}

// Option configures a Composer.
type Option func(*Composer)

// WithUnit sets the per-slide resolution.
func WithUnit(s Size) Option {
	return func(c *Composer) {
		if s.Width > 0 && s.Height > 0 {
			c.unit = s
		}
	}
}

// WithBaseURL sets the default base URL for relative asset references.
func WithBaseURL(u string) Option { return func(c *Composer) { c.baseURL = u } }

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Composer) {
		if l != nil {
			c.logger = l
		}
	}
}

// New returns a Composer for reg.
func New(reg *modules.Registry, opts ...Option) *Composer {
	c := &Composer{reg: reg, unit: DefaultUnit, logger: slog.Default()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Unit returns the per-slide resolution.
func (c *Composer) Unit() Size { return c.unit }

// Options tune a single composition.
type Options struct {
	// Overlay is the floating overlay drawn across a carousel. Ignored for
	// a single slide.
	Overlay *FloatingOverlay
	// BaseURL overrides the composer's base URL when set.
	BaseURL string
}

// Compose builds one document from slides. shared holds module data used
// as defaults under every slide's own data. Module failures never abort the
// document; they are recorded in Document.Diagnostics.
func (c *Composer) Compose(ctx context.Context, slides []*Slide, shared map[string]modules.Data, opts Options) (*Document, error) {
	if len(slides) == 0 {
		return nil, ErrNoSlides
	}
	base := opts.BaseURL
	if base == "" {
		base = c.baseURL
	}
	g := Layout(len(slides), c.unit)
	doc := &Document{
		CanvasWidth:  g.CanvasWidth,
		CanvasHeight: g.CanvasHeight,
		Geometry:     g,
		BaseURL:      base,
	}

	var css, body strings.Builder
	css.WriteString(baseCSS(g))
	slideVars := make([]map[string]string, len(slides))

	for i, s := range slides {
		if s == nil {
			s = &Slide{}
		}
		out := c.composeSlide(ctx, s, i, g, shared, base)
		doc.Diagnostics = append(doc.Diagnostics, out.diags...)
		slideVars[i] = out.vars
		css.WriteString(out.css)
		fmt.Fprintf(&body, `<section class="carousel-slide slide-%d" data-slide="%d"`, i, i)
		if len(out.vars) > 0 {
			fmt.Fprintf(&body, ` style="%s"`, styleAttr(out.vars))
		}
		body.WriteString(">\n")
		body.WriteString(out.html)
		body.WriteString("</section>\n")
	}

	if g.Carousel() {
		inner := body.String()
		body.Reset()
		body.WriteString("<div class=\"carousel\">\n")
		body.WriteString(inner)
		if opts.Overlay != nil {
			if o := opts.Overlay.Effective(g); o.Enabled {
				ohtml, ocss := floatingOverlay(o, g, base)
				body.WriteString(ohtml)
				css.WriteString(ocss)
			}
		}
		body.WriteString("</div>")
	}

	doc.HTML = body.String()
	doc.CSS = css.String()
	doc.StyleVariables = commonVars(slideVars)
	return doc, nil
}

type slideOutput struct {
	html  string
	css   string
	vars  map[string]string
	diags []*ModuleCompositionError
}

type placed struct {
	mod   *modules.Module
	data  modules.Data
	layer int
}

func (c *Composer) composeSlide(ctx context.Context, s *Slide, index int, g Geometry, shared map[string]modules.Data, base string) slideOutput {
	var out slideOutput
	diag := func(id, phase string, err error) {
		c.logger.WarnContext(ctx, "compose: module skipped",
			"slide", index, "module", id, "phase", phase, "error", err)
		out.diags = append(out.diags, &ModuleCompositionError{SlideIndex: index, ModuleID: id, Phase: phase, Err: err})
	}

	// 1. Resolve.
	var resolved []*modules.Module
	seen := make(map[string]bool, len(s.EnabledModules))
	for _, id := range s.EnabledModules {
		if seen[id] {
			continue
		}
		seen[id] = true
		m, ok := c.reg.Get(id)
		if !ok {
			diag(id, PhaseResolve, ErrUnknownModule)
			continue
		}
		resolved = append(resolved, m)
	}
	resolved = c.reg.SortByStackOrder(resolved)

	// 2. Merge shared under local, then apply schema defaults.
	data := make(map[string]modules.Data, len(resolved))
	for _, m := range resolved {
		merged := modules.Merge(shared[m.ID], s.Data[m.ID])
		applied, problems := m.Schema.Apply(merged)
		if len(problems) > 0 {
			diag(m.ID, PhaseSchema, errors.New(strings.Join(problems, "; ")))
		}
		data[m.ID] = applied
	}

	paint := paintOrder(resolved, s.RenderOrder, data)
	layers := make(map[string]int, len(paint))
	for _, p := range paint {
		layers[p.mod.ID] = p.layer
	}
	rc := func(layer int) modules.RenderContext {
		return modules.RenderContext{
			BaseURL:    base,
			Enabled:    slices.Clone(s.EnabledModules),
			SlideIndex: index,
			SlideCount: g.SlideCount,
			Scope:      fmt.Sprintf(".slide-%d", index),
			Width:      g.Unit.Width,
			Height:     g.Unit.Height,
			Layer:      layer,
		}
	}

	// 3+4. HTML in paint order.
	var hb strings.Builder
	for _, p := range paint {
		frag, err := call(func() (string, error) { return p.mod.HTML(p.data, rc(p.layer)) })
		if err != nil {
			diag(p.mod.ID, PhaseHTML, err)
			continue
		}
		if n, err := CountMarkers(frag, p.mod.ID); err != nil || n != 1 {
			if err == nil {
				err = fmt.Errorf("found %d root markers, want 1", n)
			}
			diag(p.mod.ID, PhaseMarker, err)
		}
		hb.WriteString(frag)
		hb.WriteByte('\n')
	}
	out.html = hb.String()

	// CSS in registration order.
	var cb strings.Builder
	for _, m := range c.reg.Definitions() {
		d, ok := data[m.ID]
		if !ok || m.CSS == nil {
			continue
		}
		frag, err := call(func() (string, error) { return m.CSS(d, rc(layers[m.ID])) })
		if err != nil {
			diag(m.ID, PhaseCSS, err)
			continue
		}
		cb.WriteString(frag)
	}
	out.css = cb.String()

	vars := make(map[string]string)
	for _, m := range resolved {
		if m.Vars == nil {
			continue
		}
		var mv map[string]string
		_, err := call(func() (string, error) {
			mv = m.Vars(data[m.ID])
			return "", nil
		})
		if err != nil {
			diag(m.ID, PhaseVars, err)
			continue
		}
		maps.Copy(vars, mv)
	}
	out.vars = vars
	return out
}

// paintOrder returns modules back to front: structural by stack order, then
// content (manual render order first when the slide defines one), then
// overlays by their effective z-index.
func paintOrder(resolved []*modules.Module, order []RenderOrderEntry, data map[string]modules.Data) []placed {
	var structural, content, overlay []placed
	for _, m := range resolved {
		p := placed{mod: m, data: data[m.ID], layer: m.StackOrder}
		switch m.Category {
		case modules.Structural:
			structural = append(structural, p)
		case modules.Overlay:
			p.layer = m.ZIndex(p.data)
			overlay = append(overlay, p)
		default:
			content = append(content, p)
		}
	}

	if len(order) > 0 {
		rank := make(map[string]int, len(order))
		for i, e := range order {
			if _, dup := rank[e.ModuleID]; !dup {
				rank[e.ModuleID] = i
			}
		}
		slices.SortStableFunc(content, func(a, b placed) int {
			ra, oka := rank[a.mod.ID]
			rb, okb := rank[b.mod.ID]
			switch {
			case oka && okb:
				return ra - rb
			case oka:
				return -1
			case okb:
				return 1
			}
			return 0
		})
		for i := range content {
			content[i].layer = manualContentLayer + i
		}
	}

	slices.SortStableFunc(overlay, func(a, b placed) int { return a.layer - b.layer })
	return slices.Concat(structural, content, overlay)
}

// call runs fn and converts a panic into an error.
func call(fn func() (string, error)) (s string, err error) {
	defer func() {
		if r := recover(); r != nil {
			s, err = "", fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

func baseCSS(g Geometry) string {
	return fmt.Sprintf("*,*::before,*::after{box-sizing:border-box;}\n"+
		"html,body{margin:0;padding:0;width:%dpx;height:%dpx;overflow:hidden;}\n"+
		".carousel{position:relative;display:flex;flex-direction:row;width:%dpx;height:%dpx;}\n"+
		".carousel-slide{position:relative;flex:0 0 auto;width:%dpx;height:%dpx;overflow:hidden;}\n",
		g.CanvasWidth, g.CanvasHeight, g.CanvasWidth, g.CanvasHeight, g.Unit.Width, g.Unit.Height)
}

func floatingOverlay(o FloatingOverlay, g Geometry, base string) (string, string) {
	x, y := o.Anchor(g)
	css := fmt.Sprintf(".floating-overlay{position:absolute;left:%spx;top:%spx;width:%dpx;transform:%s;"+
		"transform-origin:center center;z-index:%d;pointer-events:none;}\n"+
		".floating-overlay img{display:block;width:100%%;height:auto;}\n"+
		".floating-overlay-text{font-size:48px;font-weight:800;text-align:center;}\n",
		fnum(x), fnum(y), o.Width, o.Transform(), floatingLayer)

	var b strings.Builder
	b.WriteString(`<div class="floating-overlay" data-overlay="floating">`)
	if o.ImageURL != "" {
		src := modules.RenderContext{BaseURL: base}.Asset(o.ImageURL)
		fmt.Fprintf(&b, `<img src="%s" alt="">`, html.EscapeString(src))
	}
	if o.Text != "" {
		fmt.Fprintf(&b, `<div class="floating-overlay-text">%s</div>`, html.EscapeString(o.Text))
	}
	b.WriteString("</div>\n")
	return b.String(), css
}

// commonVars returns the variables of a single slide, or the variables
// every slide of a carousel agrees on.
func commonVars(per []map[string]string) map[string]string {
	out := make(map[string]string)
	if len(per) == 0 {
		return out
	}
	maps.Copy(out, per[0])
	for _, v := range per[1:] {
		for k, val := range out {
			if other, ok := v[k]; !ok || other != val {
				delete(out, k)
			}
		}
	}
	return out
}
