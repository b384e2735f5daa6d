package modules

import (
	"fmt"
	"strings"

	"github.com/hazyhaar/carrousel/highlight"
)

// TextID is the id of the text block module.
const TextID = "text"

// MaxTextFields is the number of body text fields a slide carries.
const MaxTextFields = 5

// TitleField is the field name highlight spans use for the title.
const TitleField = "titulo"

// TextField returns the field name of body text n (1-based).
func TextField(n int) string {
	return fmt.Sprintf("texto_%d", n)
}

// Text renders a title and up to five body paragraphs with highlight
// spans resolved into styled chunks.
//
// Its placement depends on the other enabled modules: with "image" it
// stacks below the picture, with "splitImage" it takes the free half.
func Text() *Module {
	return &Module{
		ID:           TextID,
		Name:         "Text block",
		Category:     Content,
		StackOrder:   100,
		Dependencies: []string{CanvasID},
		Schema: Schema{
			Str("title", ""),
			List("texts"),
			List("highlights"),
			Str("color", "#111111"),
			Str("highlightColor", "#e63946"),
			Str("highlightBackground", "#ffe066"),
			Num("fontSize", 44, 16, 120),
			Num("titleSize", 72, 24, 160),
			Num("lineHeight", 1.3, 1, 2.5),
			Num("weight", 400, 100, 900),
			Num("gap", 28, 0, 120),
			Str("align", "left", "left", "center", "right"),
			Str("verticalAlign", "center", "top", "center", "bottom"),
			Str("region", "auto", "auto", "full", "top", "bottom", "left", "right"),
		},
		HTML: textHTML,
		CSS:  textCSS,
		Vars: func(d Data) map[string]string {
			return map[string]string{
				"--text-color":      cssValue(d.String("color", "#111111")),
				"--highlight-color": cssValue(d.String("highlightColor", "#e63946")),
			}
		},
	}
}

func textRegion(d Data, rc RenderContext) string {
	r := d.String("region", "auto")
	if r != "auto" {
		return r
	}
	switch {
	case rc.Has(ImageID):
		return "bottom"
	case rc.Has(SplitImageID):
		return "right"
	}
	return "full"
}

func textHTML(d Data, rc RenderContext) (string, error) {
	var spans []highlight.Span
	if err := d.Decode("highlights", &spans); err != nil {
		return "", err
	}
	st := highlight.Style{
		Color:      cssValue(d.String("highlightColor", "")),
		Background: cssValue(d.String("highlightBackground", "")),
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<div class="text-block text-region-%s" data-module="text">`, attr(textRegion(d, rc)))
	if title := d.String("title", ""); strings.TrimSpace(title) != "" {
		chunks := highlight.Resolve(title, highlight.ForField(TitleField, spans))
		fmt.Fprintf(&b, `<h1 class="text-title" data-field="%s">%s</h1>`, TitleField, highlight.HTML(chunks, st))
	}
	texts := d.Strings("texts")
	if len(texts) > MaxTextFields {
		texts = texts[:MaxTextFields]
	}
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			continue
		}
		field := TextField(i + 1)
		chunks := highlight.Resolve(t, highlight.ForField(field, spans))
		fmt.Fprintf(&b, `<p class="text-line" data-field="%s">%s</p>`, field, highlight.HTML(chunks, st))
	}
	b.WriteString(`</div>`)
	return b.String(), nil
}

func textCSS(d Data, rc RenderContext) (string, error) {
	var justify string
	switch d.String("verticalAlign", "center") {
	case "top":
		justify = "flex-start"
	case "bottom":
		justify = "flex-end"
	default:
		justify = "center"
	}

	var region string
	switch textRegion(d, rc) {
	case "top":
		region = "top:0;left:0;right:0;height:50%;"
	case "bottom":
		region = "bottom:0;left:0;right:0;height:50%;"
	case "left":
		region = "top:0;bottom:0;left:0;width:50%;"
	case "right":
		region = "top:0;bottom:0;right:0;width:50%;"
	default:
		region = "inset:0;"
	}

	s := rc.Scope
	var b strings.Builder
	fmt.Fprintf(&b, "%s .text-block{position:absolute;%sz-index:%d;box-sizing:border-box;padding:var(--canvas-padding);"+
		"display:flex;flex-direction:column;justify-content:%s;gap:%s;color:var(--text-color);text-align:%s;"+
		"font-size:%s;line-height:%s;font-weight:%s;}\n",
		s, region, rc.Layer, justify, px(d.Float("gap", 28)), cssValue(d.String("align", "left")),
		px(d.Float("fontSize", 44)), ftoa(d.Float("lineHeight", 1.3)), ftoa(d.Float("weight", 400)))
	fmt.Fprintf(&b, "%s .text-title{margin:0;font-size:%s;line-height:1.1;font-weight:800;}\n", s, px(d.Float("titleSize", 72)))
	fmt.Fprintf(&b, "%s .text-line{margin:0;}\n", s)
	fmt.Fprintf(&b, "%s .text-block strong{font-weight:800;}\n", s)
	fmt.Fprintf(&b, "%s .text-block .hl-bg{padding:0 .15em;border-radius:.15em;box-decoration-break:clone;-webkit-box-decoration-break:clone;}\n", s)
	return b.String(), nil
}
