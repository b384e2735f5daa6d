package carousel

import (
	"context"
	"errors"
	"fmt"

	"github.com/hazyhaar/carrousel/compose"
	"github.com/hazyhaar/carrousel/fsafe"
	"github.com/hazyhaar/carrousel/highlight"
	"github.com/hazyhaar/carrousel/modules"
)

// ErrUnknownStyle is returned when a layout names no known style kind.
var ErrUnknownStyle = errors.New("carousel: unknown style")

// TemplateLayout is the render unit of one slide: its content, its style
// kind and the file it renders to.
type TemplateLayout struct {
	SlideNumber int    `json:"slideNumber"`
	SlideCount  int    `json:"slideCount,omitempty"`
	StyleKind   string `json:"styleKind"`
	Filename    string `json:"filename"`

	Title      string           `json:"title,omitempty"`
	Texts      []string         `json:"texts,omitempty"`
	Image      string           `json:"image,omitempty"`
	Highlights []highlight.Span `json:"highlights,omitempty"`

	HighlightColor      string `json:"highlightColor,omitempty"`
	HighlightBackground string `json:"highlightBackground,omitempty"`
	Badge               bool   `json:"badge,omitempty"`
	Logo                string `json:"logo,omitempty"`

	// Modules and SharedModuleData describe a StyleCustom layout.
	Modules          *compose.Slide          `json:"modules,omitempty"`
	SharedModuleData map[string]modules.Data `json:"sharedModuleData,omitempty"`
}

// Options tune BuildLayouts.
type Options struct {
	// HighlightColor and HighlightBackground override the accent colors
	// of every slide.
	HighlightColor      string
	HighlightBackground string
	// FilenamePrefix names output files "<prefix>_NN.png". Defaults to
	// "slide".
	FilenamePrefix string
	// Badge adds a "n/N" corner badge to every slide.
	Badge bool
	// Logo, when set, places this image in a corner of every slide.
	Logo string
}

// BuildLayouts turns a canonical carousel into one layout per slide.
func BuildLayouts(c *Canonical, o Options) []TemplateLayout {
	prefix := fsafe.Sanitize(o.FilenamePrefix)
	if prefix == "" {
		prefix = "slide"
	}
	out := make([]TemplateLayout, len(c.Slides))
	for i, s := range c.Slides {
		out[i] = TemplateLayout{
			SlideNumber:         s.Number,
			SlideCount:          len(c.Slides),
			StyleKind:           s.StyleKind,
			Filename:            fmt.Sprintf("%s_%02d.png", prefix, s.Number),
			Title:               s.Title,
			Texts:               s.Texts,
			Image:               s.Image,
			Highlights:          s.Spans,
			HighlightColor:      o.HighlightColor,
			HighlightBackground: o.HighlightBackground,
			Badge:               o.Badge,
			Logo:                o.Logo,
		}
	}
	return out
}

// ToSlide expands the layout into a module slide plus shared data.
func (l TemplateLayout) ToSlide() (*compose.Slide, map[string]modules.Data, error) {
	kind := canonicalStyle(l.StyleKind)
	if kind == StyleCustom {
		if l.Modules == nil {
			return nil, nil, fmt.Errorf("%w: custom layout without modules", ErrUnknownStyle)
		}
		cp := *l.Modules
		return &cp, l.SharedModuleData, nil
	}
	st, ok := styles[kind]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownStyle, l.StyleKind)
	}

	s := compose.NewSlide(st.modules...)
	for id, d := range st.data(l) {
		s.SetData(id, d)
	}

	text := s.Data[modules.TextID].Clone()
	text["title"] = l.Title
	texts := make([]any, len(l.Texts))
	for i, t := range l.Texts {
		texts[i] = t
	}
	text["texts"] = texts
	if len(l.Highlights) > 0 {
		text["highlights"] = l.Highlights
	}
	if l.HighlightColor != "" {
		text["highlightColor"] = l.HighlightColor
	}
	if l.HighlightBackground != "" {
		text["highlightBackground"] = l.HighlightBackground
	}
	s.SetData(modules.TextID, text)

	if l.Badge {
		s.EnabledModules = append(s.EnabledModules, modules.CornerBadgeID)
		label := fmt.Sprintf("%d/%d", l.SlideNumber, max(l.SlideCount, l.SlideNumber))
		s.SetData(modules.CornerBadgeID, modules.Data{"label": label})
	}
	if l.Logo != "" {
		s.EnabledModules = append(s.EnabledModules, modules.LogoID)
		s.SetData(modules.LogoID, modules.Data{"src": l.Logo})
	}
	return s, l.SharedModuleData, nil
}

// Builder composes the document of a single layout. Slides are validated
// against the registry before composition.
type Builder struct {
	reg      *modules.Registry
	composer *compose.Composer
}

// NewBuilder returns a Builder over reg and c.
func NewBuilder(reg *modules.Registry, c *compose.Composer) *Builder {
	return &Builder{reg: reg, composer: c}
}

// Build expands l and composes it.
func (b *Builder) Build(ctx context.Context, l TemplateLayout) (*compose.Document, error) {
	s, shared, err := l.ToSlide()
	if err != nil {
		return nil, err
	}
	if err := s.Validate(b.reg); err != nil {
		return nil, err
	}
	return b.composer.Compose(ctx, []*compose.Slide{s}, shared, compose.Options{})
}

// BuildCustom composes a StyleCustom layout and fails on any composition
// diagnostic. Hand-written module slides have no style table to fall back
// on, so a module that could not render means a wrong image.
func (b *Builder) BuildCustom(ctx context.Context, l TemplateLayout) (*compose.Document, error) {
	if canonicalStyle(l.StyleKind) != StyleCustom {
		return nil, fmt.Errorf("%w: %q is not a custom layout", ErrUnknownStyle, l.StyleKind)
	}
	doc, err := b.Build(ctx, l)
	if err != nil {
		return nil, err
	}
	if err := doc.Err(); err != nil {
		return nil, err
	}
	return doc, nil
}

// Slides expands every layout, in order, for a single-canvas carousel
// render.
func (b *Builder) Slides(layouts []TemplateLayout) ([]*compose.Slide, map[string]modules.Data, error) {
	slides := make([]*compose.Slide, len(layouts))
	shared := make(map[string]modules.Data)
	for i, l := range layouts {
		l.SlideCount = len(layouts)
		s, sh, err := l.ToSlide()
		if err != nil {
			return nil, nil, fmt.Errorf("layout %d: %w", i, err)
		}
		if err := s.Validate(b.reg); err != nil {
			return nil, nil, fmt.Errorf("layout %d: %w", i, err)
		}
		for id, d := range sh {
			if _, ok := shared[id]; !ok {
				shared[id] = d
			}
		}
		slides[i] = s
	}
	return slides, shared, nil
}

// BuildCarousel composes every layout onto one canvas, left to right, with
// the optional floating overlay across it.
func (b *Builder) BuildCarousel(ctx context.Context, layouts []TemplateLayout, overlay *compose.FloatingOverlay) (*compose.Document, error) {
	slides, shared, err := b.Slides(layouts)
	if err != nil {
		return nil, err
	}
	return b.composer.Compose(ctx, slides, shared, compose.Options{Overlay: overlay})
}
