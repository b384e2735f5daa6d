// Package highlight turns highlight spans (a substring plus an emphasis
// kind) into styled text chunks, and chunks into sanitized inline HTML.
//
// Matching is positional: each span claims the first occurrence of its
// substring that does not overlap an earlier claim. Spans whose substring
// is absent are ignored.
package highlight

import (
	"sort"
	"strings"
)

// Emphasis is the visual treatment applied to a highlighted substring.
type Emphasis string

const (
	Plain      Emphasis = ""
	Bold       Emphasis = "bold"
	Italic     Emphasis = "italic"
	BoldItalic Emphasis = "bold+italic"
	Background Emphasis = "background"
)

var emphasisAliases = map[string]Emphasis{
	"bold":            Bold,
	"negrito":         Bold,
	"italic":          Italic,
	"italico":         Italic,
	"itálico":         Italic,
	"bold+italic":     BoldItalic,
	"bold-italic":     BoldItalic,
	"bolditalic":      BoldItalic,
	"negrito+italico": BoldItalic,
	"background":      Background,
	"bg":              Background,
	"fundo":           Background,
}

// ParseEmphasis maps an external emphasis label to an Emphasis.
func ParseEmphasis(s string) (Emphasis, bool) {
	e, ok := emphasisAliases[strings.ToLower(strings.TrimSpace(s))]
	return e, ok
}

// Span references a substring of a text field.
type Span struct {
	// Field names the text field the span applies to ("texto_1", "titulo").
	// Empty applies to every field.
	Field      string   `json:"field,omitempty"`
	Substring  string   `json:"substring"`
	Emphasis   Emphasis `json:"emphasis"`
	ApplyColor bool     `json:"applyColor,omitempty"`
}

// Chunk is a run of text sharing one style.
type Chunk struct {
	Text     string   `json:"text"`
	Emphasis Emphasis `json:"emphasis,omitempty"`
	Colored  bool     `json:"colored,omitempty"`
}

// ForField returns the spans applicable to field.
func ForField(field string, spans []Span) []Span {
	var out []Span
	for _, s := range spans {
		if s.Field == "" || s.Field == field {
			out = append(out, s)
		}
	}
	return out
}

type claim struct {
	start, end int
	span       Span
}

// Resolve splits text into chunks according to spans.
func Resolve(text string, spans []Span) []Chunk {
	if text == "" {
		return nil
	}

	var claims []claim
	for _, sp := range spans {
		if sp.Substring == "" {
			continue
		}
		if start, ok := findFree(text, sp.Substring, claims); ok {
			claims = append(claims, claim{start: start, end: start + len(sp.Substring), span: sp})
		}
	}
	if len(claims) == 0 {
		return []Chunk{{Text: text}}
	}

	sort.Slice(claims, func(i, j int) bool { return claims[i].start < claims[j].start })

	var chunks []Chunk
	pos := 0
	for _, c := range claims {
		if c.start > pos {
			chunks = append(chunks, Chunk{Text: text[pos:c.start]})
		}
		chunks = append(chunks, Chunk{
			Text:     text[c.start:c.end],
			Emphasis: c.span.Emphasis,
			Colored:  c.span.ApplyColor,
		})
		pos = c.end
	}
	if pos < len(text) {
		chunks = append(chunks, Chunk{Text: text[pos:]})
	}
	return chunks
}

// findFree locates the first occurrence of sub in text that overlaps no
// existing claim. Exact matches are preferred; a case-insensitive pass runs
// only when lowering preserves byte offsets.
func findFree(text, sub string, claims []claim) (int, bool) {
	if i, ok := scan(text, sub, claims); ok {
		return i, true
	}
	lt, ls := strings.ToLower(text), strings.ToLower(sub)
	if len(lt) != len(text) || len(ls) != len(sub) {
		return 0, false
	}
	return scan(lt, ls, claims)
}

func scan(text, sub string, claims []claim) (int, bool) {
	from := 0
	for from <= len(text)-len(sub) {
		i := strings.Index(text[from:], sub)
		if i < 0 {
			return 0, false
		}
		start := from + i
		end := start + len(sub)
		if !overlaps(start, end, claims) {
			return start, true
		}
		from = start + 1
	}
	return 0, false
}

func overlaps(start, end int, claims []claim) bool {
	for _, c := range claims {
		if start < c.end && c.start < end {
			return true
		}
	}
	return false
}
