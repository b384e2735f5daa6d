package compose

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"maps"
	"slices"
	"strings"
)

// ErrModuleComposition marks a module that failed to contribute to a
// document. It is never fatal to the document.
var ErrModuleComposition = errors.New("compose: module composition failed")

// ErrUnknownModule is the cause recorded when a slide enables a module the
// registry does not hold.
var ErrUnknownModule = errors.New("compose: module not registered")

// ErrNoSlides is returned when Compose receives nothing to compose.
var ErrNoSlides = errors.New("compose: no slides")

// Composition phases recorded on diagnostics.
const (
	PhaseResolve = "resolve"
	PhaseSchema  = "schema"
	PhaseHTML    = "html"
	PhaseCSS     = "css"
	PhaseVars    = "vars"
	PhaseMarker  = "marker"
)

// ModuleCompositionError records one module's failure on one slide.
type ModuleCompositionError struct {
	SlideIndex int
	ModuleID   string
	Phase      string
	Err        error
}

func (e *ModuleCompositionError) Error() string {
	return fmt.Sprintf("compose: slide %d module %q %s: %v", e.SlideIndex, e.ModuleID, e.Phase, e.Err)
}

func (e *ModuleCompositionError) Unwrap() error { return e.Err }

func (e *ModuleCompositionError) Is(target error) bool { return target == ErrModuleComposition }

// MarshalJSON renders the diagnostic for API consumers.
func (e *ModuleCompositionError) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"slide":  e.SlideIndex,
		"module": e.ModuleID,
		"phase":  e.Phase,
		"error":  e.Err.Error(),
	})
}

// Document is a composed, renderable document. It is rebuilt on every
// composition and never mutated afterwards.
type Document struct {
	HTML           string                    `json:"html"`
	CSS            string                    `json:"css"`
	CanvasWidth    int                       `json:"canvasWidth"`
	CanvasHeight   int                       `json:"canvasHeight"`
	StyleVariables map[string]string         `json:"styleVariables"`
	Geometry       Geometry                  `json:"geometry"`
	BaseURL        string                    `json:"-"`
	Diagnostics    []*ModuleCompositionError `json:"diagnostics,omitempty"`
}

// Err joins the diagnostics, or returns nil when every module composed.
func (d *Document) Err() error {
	errs := make([]error, len(d.Diagnostics))
	for i, e := range d.Diagnostics {
		errs[i] = e
	}
	return errors.Join(errs...)
}

// Page returns the standalone HTML page loaded into the rendering surface.
func (d *Document) Page() string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\">")
	fmt.Fprintf(&b, `<meta name="viewport" content="width=%d, height=%d">`, d.CanvasWidth, d.CanvasHeight)
	if d.BaseURL != "" {
		fmt.Fprintf(&b, `<base href="%s">`, html.EscapeString(strings.TrimSuffix(d.BaseURL, "/")+"/"))
	}
	b.WriteString("<style>\n")
	b.WriteString(d.CSS)
	b.WriteString("</style></head><body>\n")
	b.WriteString(d.HTML)
	b.WriteString("\n</body></html>\n")
	return b.String()
}

// styleAttr renders custom properties as a deterministic inline style.
func styleAttr(vars map[string]string) string {
	keys := slices.Sorted(maps.Keys(vars))
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+vars[k])
	}
	return html.EscapeString(strings.Join(parts, "; "))
}
