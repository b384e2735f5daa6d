package carousel

import (
	"fmt"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"

	"github.com/hazyhaar/carrousel/highlight"
	"github.com/hazyhaar/carrousel/modules"
)

// Transcript returns one markdown text per layout, usable as alt text or a
// post caption draft. Highlights become markdown emphasis.
func Transcript(layouts []TemplateLayout) ([]string, error) {
	conv := converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
		),
	)
	out := make([]string, len(layouts))
	for i, l := range layouts {
		md, err := conv.ConvertString(transcriptHTML(l))
		if err != nil {
			return nil, fmt.Errorf("carousel: transcript slide %d: %w", l.SlideNumber, err)
		}
		out[i] = strings.TrimSpace(md)
	}
	return out, nil
}

func transcriptHTML(l TemplateLayout) string {
	var b strings.Builder
	if strings.TrimSpace(l.Title) != "" {
		chunks := highlight.Resolve(l.Title, highlight.ForField(modules.TitleField, l.Highlights))
		b.WriteString("<h2>" + highlight.HTML(chunks, highlight.Style{}) + "</h2>")
	}
	for i, t := range l.Texts {
		if strings.TrimSpace(t) == "" {
			continue
		}
		chunks := highlight.Resolve(t, highlight.ForField(modules.TextField(i+1), l.Highlights))
		b.WriteString("<p>" + highlight.HTML(chunks, highlight.Style{}) + "</p>")
	}
	return b.String()
}
