// Package carousel validates externally supplied carousel JSON, normalizes
// its historical shapes into one canonical model and turns that model into
// per-slide template layouts.
//
// Format detection is an ordered try-parse: each shape is gated by a JSON
// Schema, then checked semantically. Nothing downstream of Normalize
// branches on the input format.
package carousel

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/hazyhaar/carrousel/highlight"
	"github.com/hazyhaar/carrousel/modules"
)

// MaxSlides is the largest carousel accepted.
const MaxSlides = 20

// Canonical is the normalized carousel.
type Canonical struct {
	Format Format           `json:"format"`
	Slides []CanonicalSlide `json:"slides"`
}

// CanonicalSlide is one slide in canonical form.
type CanonicalSlide struct {
	Number    int              `json:"number"`
	StyleKind string           `json:"styleKind"`
	Title     string           `json:"title,omitempty"`
	Texts     []string         `json:"texts,omitempty"`
	Image     string           `json:"image,omitempty"`
	Spans     []highlight.Span `json:"spans,omitempty"`
}

type rawSpan struct {
	Slide  int    `json:"slide"`
	Campo  string `json:"campo"`
	Texto  string `json:"texto"`
	Estilo string `json:"estilo"`
	Cor    *bool  `json:"cor"`
}

type rawSlide struct {
	Numero    int       `json:"numero"`
	Slide     int       `json:"slide"`
	Estilo    string    `json:"estilo"`
	Titulo    string    `json:"titulo"`
	Texto1    string    `json:"texto_1"`
	Texto2    string    `json:"texto_2"`
	Texto3    string    `json:"texto_3"`
	Texto4    string    `json:"texto_4"`
	Texto5    string    `json:"texto_5"`
	Imagem    string    `json:"imagem"`
	Destaques []rawSpan `json:"destaques"`
	Negrito   []string  `json:"negrito"`
	Italico   []string  `json:"italico"`
}

func (r rawSlide) texts() []string {
	t := []string{r.Texto1, r.Texto2, r.Texto3, r.Texto4, r.Texto5}
	for len(t) > 0 && strings.TrimSpace(t[len(t)-1]) == "" {
		t = t[:len(t)-1]
	}
	return t
}

type rawDoc struct {
	Slides    []rawSlide `json:"slides"`
	Destaques []rawSpan  `json:"destaques"`
	Carrossel []rawSlide `json:"carrossel"`
}

type attempt struct {
	format   Format
	relevant bool
	gated    bool // passed the schema gate
	errs     problems
	result   *Canonical
}

// moreSpecific reports whether a explains the input better than b: it got
// past its schema gate, or it is keyed by more top-level fields, or it
// found fewer problems.
func (a attempt) moreSpecific(b attempt) bool {
	if a.gated != b.gated {
		return a.gated
	}
	if da, db := len(discriminators[a.format]), len(discriminators[b.format]); da != db {
		return da > db
	}
	return len(a.errs) < len(b.errs)
}

// Normalize detects the format of raw and returns the canonical carousel.
// The first format that validates wins. When none does, the returned
// *ValidationError carries the errors of the most specific attempt among
// those whose discriminating keys are present.
func Normalize(raw []byte) (*Canonical, error) {
	rs, err := loadSchemas()
	if err != nil {
		return nil, err
	}

	var generic any
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&generic); err != nil {
		return nil, &ValidationError{Fields: []FieldError{{Path: "$", Message: "malformed JSON: " + err.Error()}}}
	}
	obj, ok := generic.(map[string]any)
	if !ok {
		return nil, &ValidationError{Fields: []FieldError{{Path: "$", Message: "expected a JSON object"}}}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, &ValidationError{Fields: []FieldError{{Path: "$", Message: "malformed JSON: " + err.Error()}}}
	}

	attempts := make([]attempt, 0, len(detectionOrder))
	for _, f := range detectionOrder {
		a := attempt{format: f, relevant: hasDiscriminator(obj, f)}
		if err := rs[f].Validate(obj); err != nil {
			a.errs.add("$", "schema: %v", err)
		} else if doc, err := decodeFor(f, fields); err != nil {
			a.errs.add("$", "decode: %v", err)
		} else {
			a.gated = true
			a.result, a.errs = convert(f, doc)
		}
		if len(a.errs) == 0 {
			return a.result, nil
		}
		attempts = append(attempts, a)
	}

	best := -1
	for i, a := range attempts {
		if !a.relevant {
			continue
		}
		if best < 0 || a.moreSpecific(attempts[best]) {
			best = i
		}
	}
	if best < 0 {
		return nil, &ValidationError{Fields: []FieldError{{
			Path:    "$",
			Message: `no supported carousel format: expected "slides" or "carrossel"`,
		}}}
	}
	return nil, &ValidationError{Format: attempts[best].format, Fields: attempts[best].errs}
}

// decodeFor decodes only the top-level keys format f reads, so a malformed
// key another format owns does not reject the document.
func decodeFor(f Format, fields map[string]json.RawMessage) (*rawDoc, error) {
	var doc rawDoc
	for _, k := range discriminators[f] {
		v, ok := fields[k]
		if !ok {
			continue
		}
		var dst any
		switch k {
		case "slides":
			dst = &doc.Slides
		case "destaques":
			dst = &doc.Destaques
		case "carrossel":
			dst = &doc.Carrossel
		}
		if err := json.Unmarshal(v, dst); err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
	}
	return &doc, nil
}

func convert(f Format, doc *rawDoc) (*Canonical, problems) {
	var (
		slides []rawSlide
		root   string
	)
	switch f {
	case FormatLegacy:
		slides, root = doc.Carrossel, "carrossel"
	default:
		slides, root = doc.Slides, "slides"
	}

	var errs problems
	if len(slides) == 0 {
		errs.add(root, "at least one slide is required")
		return nil, errs
	}
	if len(slides) > MaxSlides {
		errs.add(root, "at most %d slides, got %d", MaxSlides, len(slides))
	}

	out := &Canonical{Format: f, Slides: make([]CanonicalSlide, 0, len(slides))}
	numbers := make(map[int]int, len(slides))
	for i, rs := range slides {
		path := fmt.Sprintf("%s[%d]", root, i)
		cs := CanonicalSlide{
			Number:    firstPositive(rs.Numero, rs.Slide, i+1),
			StyleKind: canonicalStyle(rs.Estilo),
			Title:     strings.TrimSpace(rs.Titulo),
			Texts:     rs.texts(),
			Image:     strings.TrimSpace(rs.Imagem),
		}
		if prev, dup := numbers[cs.Number]; dup {
			errs.add(path+".numero", "duplicate slide number %d (also %s[%d])", cs.Number, root, prev)
		}
		numbers[cs.Number] = i

		st, known := styles[cs.StyleKind]
		switch {
		case !known || cs.StyleKind == StyleCustom:
			errs.add(path+".estilo", "unknown style %q (want one of %s)", rs.Estilo, strings.Join(StyleKinds(), ", "))
		case st.requiresImage && cs.Image == "":
			errs.add(path+".imagem", "required for style %q", cs.StyleKind)
		}
		if cs.Title == "" && len(cs.Texts) == 0 {
			errs.add(path, "slide has no title and no text")
		}

		switch f {
		case FormatInline:
			for j, sp := range rs.Destaques {
				if s, ok := span(sp, fmt.Sprintf("%s.destaques[%d]", path, j), &errs); ok {
					cs.Spans = append(cs.Spans, s)
				}
			}
		case FormatLegacy:
			cs.Spans = append(cs.Spans, legacySpans(rs.Negrito, highlight.Bold, path+".negrito", &errs)...)
			cs.Spans = append(cs.Spans, legacySpans(rs.Italico, highlight.Italic, path+".italico", &errs)...)
		}
		out.Slides = append(out.Slides, cs)
	}

	if f == FormatSeparated {
		byNumber := make(map[int]int, len(out.Slides))
		for i, s := range out.Slides {
			byNumber[s.Number] = i
		}
		for j, sp := range doc.Destaques {
			path := fmt.Sprintf("destaques[%d]", j)
			idx, ok := byNumber[sp.Slide]
			if !ok {
				errs.add(path+".slide", "references unknown slide %d", sp.Slide)
				continue
			}
			if s, ok := span(sp, path, &errs); ok {
				out.Slides[idx].Spans = append(out.Slides[idx].Spans, s)
			}
		}
	}

	if len(errs) > 0 {
		return nil, errs
	}
	slices.SortStableFunc(out.Slides, func(a, b CanonicalSlide) int { return a.Number - b.Number })
	return out, nil
}

var spanFields = func() []string {
	f := []string{modules.TitleField}
	for i := 1; i <= modules.MaxTextFields; i++ {
		f = append(f, modules.TextField(i))
	}
	return f
}()

func span(sp rawSpan, path string, errs *problems) (highlight.Span, bool) {
	ok := true
	if strings.TrimSpace(sp.Texto) == "" {
		errs.add(path+".texto", "empty highlight")
		ok = false
	}
	field := strings.ToLower(strings.TrimSpace(sp.Campo))
	if field != "" && !slices.Contains(spanFields, field) {
		errs.add(path+".campo", "unknown field %q", sp.Campo)
		ok = false
	}
	em := highlight.Bold
	if sp.Estilo != "" {
		e, known := highlight.ParseEmphasis(sp.Estilo)
		if !known {
			errs.add(path+".estilo", "unknown emphasis %q", sp.Estilo)
			ok = false
		}
		em = e
	}
	color := true
	if sp.Cor != nil {
		color = *sp.Cor
	}
	return highlight.Span{Field: field, Substring: sp.Texto, Emphasis: em, ApplyColor: color}, ok
}

// legacySpans converts negrito/italico lists. Legacy bold was always drawn
// in the accent color; italic never was.
func legacySpans(subs []string, em highlight.Emphasis, path string, errs *problems) []highlight.Span {
	var out []highlight.Span
	for i, s := range subs {
		if strings.TrimSpace(s) == "" {
			errs.add(fmt.Sprintf("%s[%d]", path, i), "empty highlight")
			continue
		}
		out = append(out, highlight.Span{Substring: s, Emphasis: em, ApplyColor: em == highlight.Bold})
	}
	return out
}

func firstPositive(vs ...int) int {
	for _, v := range vs {
		if v > 0 {
			return v
		}
	}
	return 0
}
