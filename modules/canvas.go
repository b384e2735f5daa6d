package modules

import "fmt"

// Canvas and background module ids.
const (
	CanvasID          = "canvas"
	BackgroundImageID = "backgroundImage"
	GradientOverlayID = "gradientOverlay"
)

// Canvas paints the slide background and exports the padding and font
// variables every other module reads.
func Canvas() *Module {
	return &Module{
		ID:         CanvasID,
		Name:       "Canvas",
		Category:   Structural,
		StackOrder: 0,
		Schema: Schema{
			Str("background", "#ffffff"),
			Str("gradient", ""),
			Num("padding", 80, 0, 300),
			Str("fontFamily", "Inter, Helvetica, Arial, sans-serif"),
		},
		HTML: func(Data, RenderContext) (string, error) {
			return `<div class="canvas-bg" data-module="canvas"></div>`, nil
		},
		CSS: func(d Data, rc RenderContext) (string, error) {
			return fmt.Sprintf("%[1]s{font-family:var(--font-family);}\n"+
				"%[1]s .canvas-bg{position:absolute;inset:0;z-index:%[2]d;background:var(--canvas-bg);}\n", rc.Scope, rc.Layer), nil
		},
		Vars: func(d Data) map[string]string {
			bg := cssValue(d.String("background", "#ffffff"))
			if g := cssValue(d.String("gradient", "")); g != "" {
				bg = g
			}
			return map[string]string{
				"--canvas-bg":      bg,
				"--canvas-padding": px(d.Float("padding", 80)),
				"--font-family":    cssValue(d.String("fontFamily", "sans-serif")),
			}
		},
	}
}

// BackgroundImage covers the canvas with a picture.
func BackgroundImage() *Module {
	return &Module{
		ID:           BackgroundImageID,
		Name:         "Background image",
		Category:     Structural,
		StackOrder:   10,
		Dependencies: []string{CanvasID},
		Schema: Schema{
			Required(Str("src", "")),
			Str("fit", "cover", "cover", "contain"),
			Str("position", "center"),
			Num("opacity", 1, 0, 1),
			Num("blur", 0, 0, 40),
		},
		HTML: func(d Data, _ RenderContext) (string, error) {
			if d.String("src", "") == "" {
				return "", fmt.Errorf("backgroundImage: src is required")
			}
			return `<div class="bg-image" data-module="backgroundImage"></div>`, nil
		},
		CSS: func(d Data, rc RenderContext) (string, error) {
			img := ""
			if src := d.String("src", ""); src != "" {
				img = "background-image:" + cssURL(rc.Asset(src)) + ";"
			}
			blur := ""
			if b := d.Float("blur", 0); b > 0 {
				blur = "filter:blur(" + px(b) + ");"
			}
			return fmt.Sprintf("%s .bg-image{position:absolute;inset:0;z-index:%d;%sbackground-size:%s;background-position:%s;background-repeat:no-repeat;opacity:%s;%s}\n",
				rc.Scope, rc.Layer, img, cssValue(d.String("fit", "cover")), cssValue(d.String("position", "center")),
				ftoa(d.Float("opacity", 1)), blur), nil
		},
	}
}

// GradientOverlay darkens one edge of the canvas so text stays legible on
// photos.
func GradientOverlay() *Module {
	return &Module{
		ID:           GradientOverlayID,
		Name:         "Gradient overlay",
		Category:     Structural,
		StackOrder:   20,
		Dependencies: []string{CanvasID},
		Schema: Schema{
			Str("from", "rgba(0,0,0,0)"),
			Str("to", "rgba(0,0,0,0.75)"),
			Str("direction", "to bottom", "to bottom", "to top", "to left", "to right"),
			Num("coverage", 60, 10, 100),
		},
		HTML: func(Data, RenderContext) (string, error) {
			return `<div class="gradient-overlay" data-module="gradientOverlay"></div>`, nil
		},
		CSS: func(d Data, rc RenderContext) (string, error) {
			dir := d.String("direction", "to bottom")
			cov := ftoa(d.Float("coverage", 60)) + "%"
			var anchor string
			switch dir {
			case "to top":
				anchor = "top:0;left:0;right:0;height:" + cov + ";"
			case "to left":
				anchor = "top:0;bottom:0;left:0;width:" + cov + ";"
			case "to right":
				anchor = "top:0;bottom:0;right:0;width:" + cov + ";"
			default:
				anchor = "bottom:0;left:0;right:0;height:" + cov + ";"
			}
			return fmt.Sprintf("%s .gradient-overlay{position:absolute;%sz-index:%d;pointer-events:none;background:linear-gradient(%s,%s,%s);}\n",
				rc.Scope, anchor, rc.Layer, cssValue(dir), cssValue(d.String("from", "")), cssValue(d.String("to", ""))), nil
		},
	}
}
