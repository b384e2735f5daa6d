package modules

import (
	"fmt"
	"strings"
)

// Overlay module ids.
const (
	CornerBadgeID = "cornerBadge"
	OverlayTextID = "overlayText"
	LogoID        = "logo"
)

// CornerBadge is a small label pinned to a corner. Without a label it
// shows the slide position ("2/5").
func CornerBadge() *Module {
	return &Module{
		ID:           CornerBadgeID,
		Name:         "Corner badge",
		Category:     Overlay,
		StackOrder:   900,
		Dependencies: []string{CanvasID},
		Schema: Schema{
			Str("label", ""),
			Str("corner", "bottom-right", corners...),
			Str("background", "#111111"),
			Str("color", "#ffffff"),
			Num("size", 28, 12, 80),
			Num("margin", 40, 0, 200),
			Num("zIndex", 0, 0, 9999),
		},
		HTML: func(d Data, rc RenderContext) (string, error) {
			label := d.String("label", "")
			if label == "" {
				label = fmt.Sprintf("%d/%d", rc.SlideIndex+1, max(rc.SlideCount, 1))
			}
			return fmt.Sprintf(`<div class="corner-badge" data-module="cornerBadge">%s</div>`, attr(label)), nil
		},
		CSS: func(d Data, rc RenderContext) (string, error) {
			size := d.Float("size", 28)
			return fmt.Sprintf("%s .corner-badge{position:absolute;%sz-index:%d;background:%s;color:%s;font-size:%s;font-weight:700;"+
				"padding:%s %s;border-radius:999px;line-height:1;}\n",
				rc.Scope, corner(d.String("corner", "bottom-right"), d.Float("margin", 40)), rc.Layer,
				cssValue(d.String("background", "")), cssValue(d.String("color", "")), px(size), px(size*0.4), px(size*0.8)), nil
		},
	}
}

// OverlayText is a short free text line (handle, call to action) drawn
// above the content.
func OverlayText() *Module {
	return &Module{
		ID:           OverlayTextID,
		Name:         "Overlay text",
		Category:     Overlay,
		StackOrder:   920,
		Dependencies: []string{CanvasID},
		Schema: Schema{
			Required(Str("text", "")),
			Str("position", "top", "top", "bottom"),
			Str("align", "center", "left", "center", "right"),
			Str("color", "#111111"),
			Num("size", 26, 12, 96),
			Num("opacity", 0.8, 0, 1),
			Num("margin", 40, 0, 200),
			Num("zIndex", 0, 0, 9999),
		},
		HTML: func(d Data, _ RenderContext) (string, error) {
			text := strings.TrimSpace(d.String("text", ""))
			if text == "" {
				return "", fmt.Errorf("overlayText: text is required")
			}
			return fmt.Sprintf(`<div class="overlay-text" data-module="overlayText">%s</div>`, attr(text)), nil
		},
		CSS: func(d Data, rc RenderContext) (string, error) {
			edge := "top"
			if d.String("position", "top") == "bottom" {
				edge = "bottom"
			}
			return fmt.Sprintf("%s .overlay-text{position:absolute;%s:%s;left:var(--canvas-padding);right:var(--canvas-padding);z-index:%d;"+
				"text-align:%s;color:%s;font-size:%s;opacity:%s;letter-spacing:.02em;}\n",
				rc.Scope, edge, px(d.Float("margin", 40)), rc.Layer, cssValue(d.String("align", "center")),
				cssValue(d.String("color", "")), px(d.Float("size", 26)), ftoa(d.Float("opacity", 0.8))), nil
		},
	}
}

// Logo pins an image (brand mark, avatar) to a corner.
func Logo() *Module {
	return &Module{
		ID:           LogoID,
		Name:         "Logo",
		Category:     Overlay,
		StackOrder:   950,
		Dependencies: []string{CanvasID},
		Schema: Schema{
			Required(Str("src", "")),
			Str("corner", "top-left", corners...),
			Num("size", 96, 24, 400),
			Num("opacity", 1, 0, 1),
			Num("margin", 40, 0, 200),
			Flag("round", false),
			Num("zIndex", 0, 0, 9999),
		},
		HTML: func(d Data, rc RenderContext) (string, error) {
			src := d.String("src", "")
			if src == "" {
				return "", fmt.Errorf("logo: src is required")
			}
			return fmt.Sprintf(`<img class="logo" data-module="logo" src="%s" alt="">`, attr(rc.Asset(src))), nil
		},
		CSS: func(d Data, rc RenderContext) (string, error) {
			radius := "0"
			if d.Bool("round", false) {
				radius = "50%"
			}
			return fmt.Sprintf("%s .logo{position:absolute;%swidth:%s;height:auto;z-index:%d;opacity:%s;border-radius:%s;}\n",
				rc.Scope, corner(d.String("corner", "top-left"), d.Float("margin", 40)), px(d.Float("size", 96)),
				rc.Layer, ftoa(d.Float("opacity", 1)), radius), nil
		},
	}
}
