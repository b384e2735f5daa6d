package compose

import (
	"fmt"
	"strconv"
)

// Size is a width/height pair in CSS pixels.
type Size struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// DefaultUnit is the per-slide resolution of a portrait carousel frame.
var DefaultUnit = Size{Width: 1080, Height: 1440}

// Rect is a clip rectangle on the full canvas.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Geometry is the canvas layout for a number of slides laid side by side.
type Geometry struct {
	SlideCount   int    `json:"slideCount"`
	Unit         Size   `json:"unit"`
	CanvasWidth  int    `json:"canvasWidth"`
	CanvasHeight int    `json:"canvasHeight"`
	Clips        []Rect `json:"clips"`
}

// Layout computes the canvas for slideCount slides of the given unit size.
// A count below one is treated as one.
func Layout(slideCount int, unit Size) Geometry {
	if slideCount < 1 {
		slideCount = 1
	}
	if unit.Width <= 0 || unit.Height <= 0 {
		unit = DefaultUnit
	}
	g := Geometry{
		SlideCount:   slideCount,
		Unit:         unit,
		CanvasWidth:  slideCount * unit.Width,
		CanvasHeight: unit.Height,
		Clips:        make([]Rect, slideCount),
	}
	for i := range g.Clips {
		g.Clips[i] = Rect{X: i * unit.Width, Y: 0, Width: unit.Width, Height: unit.Height}
	}
	return g
}

// Carousel reports whether the geometry spans more than one slide.
func (g Geometry) Carousel() bool { return g.SlideCount >= 2 }

// Overlay bounds.
const (
	MinOverlayScale    = 50
	MaxOverlayScale    = 200
	MinOverlayRotation = -180
	MaxOverlayRotation = 180
	defaultOverlayW    = 480
)

// FloatingOverlay is an element centered on the full multi-slide canvas,
// typically an image straddling the boundary between two slides.
type FloatingOverlay struct {
	Enabled  bool    `json:"enabled"`
	ImageURL string  `json:"imageUrl,omitempty"`
	Text     string  `json:"text,omitempty"`
	Width    int     `json:"width,omitempty"`
	OffsetX  float64 `json:"offsetX"`
	OffsetY  float64 `json:"offsetY"`
	Scale    float64 `json:"scale"`    // percent
	Rotation float64 `json:"rotation"` // degrees
}

// Effective returns the overlay as it will be rendered on g: disabled on a
// single slide whatever the stored configuration, otherwise with scale and
// rotation clamped and defaults filled in.
func (o FloatingOverlay) Effective(g Geometry) FloatingOverlay {
	if !g.Carousel() || (o.ImageURL == "" && o.Text == "") {
		o.Enabled = false
	}
	if o.Scale == 0 {
		o.Scale = 100
	}
	o.Scale = clamp(o.Scale, MinOverlayScale, MaxOverlayScale)
	o.Rotation = clamp(o.Rotation, MinOverlayRotation, MaxOverlayRotation)
	if o.Width <= 0 {
		o.Width = defaultOverlayW
	}
	return o
}

// Anchor returns the overlay center on g.
func (o FloatingOverlay) Anchor(g Geometry) (x, y float64) {
	return float64(g.CanvasWidth) / 2, float64(g.CanvasHeight) / 2
}

// Transform returns the CSS transform. The order is fixed: center on the
// anchor, apply the pixel offset, then scale, then rotate, so scale and
// rotation pivot on the displaced center rather than skewing the offset.
func (o FloatingOverlay) Transform() string {
	return fmt.Sprintf("translate(-50%%, -50%%) translate(%spx, %spx) scale(%s) rotate(%sdeg)",
		fnum(o.OffsetX), fnum(o.OffsetY), fnum(o.Scale/100), fnum(o.Rotation))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func fnum(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
