package highlight

import (
	"html"
	"regexp"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

// Style carries the colors applied to colored and background chunks.
type Style struct {
	Color      string
	Background string
}

var (
	policyOnce sync.Once
	policy     *bluemonday.Policy
)

func chunkPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		p := bluemonday.NewPolicy()
		p.AllowElements("strong", "em", "br")
		p.AllowAttrs("class").Matching(regexp.MustCompile(`^hl-[a-z]+$`)).OnElements("span")
		p.AllowStyles("color", "background-color").OnElements("span")
		policy = p
	})
	return policy
}

// HTML renders chunks as inline markup. Text is escaped, newlines become
// <br>, and the result passes through a policy that only admits the tags
// this function emits.
func HTML(chunks []Chunk, st Style) string {
	var b strings.Builder
	for _, c := range chunks {
		text := strings.ReplaceAll(html.EscapeString(c.Text), "\n", "<br>")

		open, close := "", ""
		switch c.Emphasis {
		case Bold:
			open, close = "<strong>", "</strong>"
		case Italic:
			open, close = "<em>", "</em>"
		case BoldItalic:
			open, close = "<strong><em>", "</em></strong>"
		case Background:
			open = `<span class="hl-bg" style="background-color: ` + html.EscapeString(st.Background) + `">`
			close = "</span>"
		}
		if c.Colored && st.Color != "" {
			open = `<span class="hl-color" style="color: ` + html.EscapeString(st.Color) + `">` + open
			close += "</span>"
		}
		b.WriteString(open)
		b.WriteString(text)
		b.WriteString(close)
	}
	return chunkPolicy().Sanitize(b.String())
}
