package modules

import (
	"fmt"
	"strings"
)

// Image module ids.
const (
	ImageID      = "image"
	SplitImageID = "splitImage"
)

// Image places a framed picture in the top or bottom part of the slide.
func Image() *Module {
	return &Module{
		ID:           ImageID,
		Name:         "Image",
		Category:     Content,
		StackOrder:   110,
		Dependencies: []string{CanvasID},
		Conflicts:    []string{SplitImageID},
		Schema: Schema{
			Required(Str("src", "")),
			Str("alt", ""),
			Str("region", "top", "top", "bottom", "full"),
			Num("heightPercent", 50, 20, 100),
			Num("radius", 24, 0, 200),
			Str("fit", "cover", "cover", "contain"),
			Flag("shadow", true),
		},
		HTML: func(d Data, rc RenderContext) (string, error) {
			src := d.String("src", "")
			if src == "" {
				return "", fmt.Errorf("image: src is required")
			}
			return fmt.Sprintf(`<figure class="slide-image" data-module="image"><img src="%s" alt="%s"></figure>`,
				attr(rc.Asset(src)), attr(d.String("alt", ""))), nil
		},
		CSS: func(d Data, rc RenderContext) (string, error) {
			h := ftoa(d.Float("heightPercent", 50)) + "%"
			var region string
			switch d.String("region", "top") {
			case "bottom":
				region = "bottom:var(--canvas-padding);height:calc(" + h + " - var(--canvas-padding));"
			case "full":
				region = "top:var(--canvas-padding);bottom:var(--canvas-padding);"
			default:
				region = "top:var(--canvas-padding);height:calc(" + h + " - var(--canvas-padding));"
			}
			shadow := ""
			if d.Bool("shadow", true) {
				shadow = "box-shadow:0 24px 48px rgba(0,0,0,.18);"
			}
			var b strings.Builder
			fmt.Fprintf(&b, "%s .slide-image{position:absolute;left:var(--canvas-padding);right:var(--canvas-padding);%sz-index:%d;margin:0;overflow:hidden;border-radius:%s;%s}\n",
				rc.Scope, region, rc.Layer, px(d.Float("radius", 24)), shadow)
			fmt.Fprintf(&b, "%s .slide-image img{display:block;width:100%%;height:100%%;object-fit:%s;}\n",
				rc.Scope, cssValue(d.String("fit", "cover")))
			return b.String(), nil
		},
	}
}

// SplitImage fills one vertical half of the slide with a picture.
func SplitImage() *Module {
	return &Module{
		ID:           SplitImageID,
		Name:         "Split image",
		Category:     Content,
		StackOrder:   105,
		Dependencies: []string{CanvasID},
		Conflicts:    []string{BackgroundImageID, ImageID},
		Schema: Schema{
			Required(Str("src", "")),
			Str("alt", ""),
			Str("side", "left", "left", "right"),
			Num("widthPercent", 50, 30, 70),
		},
		HTML: func(d Data, rc RenderContext) (string, error) {
			src := d.String("src", "")
			if src == "" {
				return "", fmt.Errorf("splitImage: src is required")
			}
			return fmt.Sprintf(`<div class="split-image" data-module="splitImage"><img src="%s" alt="%s"></div>`,
				attr(rc.Asset(src)), attr(d.String("alt", ""))), nil
		},
		CSS: func(d Data, rc RenderContext) (string, error) {
			side := "left:0;"
			if d.String("side", "left") == "right" {
				side = "right:0;"
			}
			return fmt.Sprintf("%[1]s .split-image{position:absolute;top:0;bottom:0;%[2]swidth:%[3]s%%;z-index:%[4]d;overflow:hidden;}\n"+
				"%[1]s .split-image img{display:block;width:100%%;height:100%%;object-fit:cover;}\n",
				rc.Scope, side, ftoa(d.Float("widthPercent", 50)), rc.Layer), nil
		},
	}
}
