package compose

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/hazyhaar/carrousel/idgen"
	"github.com/hazyhaar/carrousel/modules"
)

// ErrInvalidSlide is returned when a slide mutation would leave the slide
// with an unregistered module, a missing dependency or a conflict.
var ErrInvalidSlide = errors.New("compose: invalid slide")

// SlideError lists the violations that made a slide invalid.
type SlideError struct {
	SlideID    string
	Violations []string
}

func (e *SlideError) Error() string {
	return fmt.Sprintf("compose: slide %s: %s", e.SlideID, strings.Join(e.Violations, "; "))
}

func (e *SlideError) Unwrap() error { return ErrInvalidSlide }

// RenderOrderEntry places one content module in a slide's manual paint
// order.
type RenderOrderEntry struct {
	ID       string `json:"id"`
	ModuleID string `json:"moduleId"`
}

// Slide is the canonical per-frame state.
type Slide struct {
	ID             string                  `json:"id"`
	EnabledModules []string                `json:"enabledModules"`
	Data           map[string]modules.Data `json:"data,omitempty"`
	RenderOrder    []RenderOrderEntry      `json:"renderOrder,omitempty"`
}

// NewSlide returns a slide with a fresh id and the given modules enabled.
// No validation happens here; use Validate or Enable for checked mutation.
func NewSlide(enabled ...string) *Slide {
	return &Slide{
		ID:             idgen.Slide(),
		EnabledModules: slices.Clone(enabled),
		Data:           make(map[string]modules.Data),
	}
}

// Validate checks the enabled set against reg.
func (s *Slide) Validate(reg *modules.Registry) error {
	v := reg.ValidateCombination(s.EnabledModules)
	v = append(v, validateRenderOrder(reg, s.RenderOrder, s.EnabledModules)...)
	if len(v) > 0 {
		return &SlideError{SlideID: s.ID, Violations: v}
	}
	return nil
}

// Enable adds module id, refusing combinations reg rejects. The slide is
// unchanged on error.
func (s *Slide) Enable(reg *modules.Registry, id string) error {
	if slices.Contains(s.EnabledModules, id) {
		return nil
	}
	next := append(slices.Clone(s.EnabledModules), id)
	if v := reg.ValidateCombination(next); len(v) > 0 {
		return &SlideError{SlideID: s.ID, Violations: v}
	}
	s.EnabledModules = next
	return nil
}

// Disable removes module id and its render-order entries. Module data is
// kept so re-enabling restores the previous state.
func (s *Slide) Disable(id string) {
	s.EnabledModules = slices.DeleteFunc(s.EnabledModules, func(e string) bool { return e == id })
	s.RenderOrder = slices.DeleteFunc(s.RenderOrder, func(e RenderOrderEntry) bool { return e.ModuleID == id })
}

// SetData replaces the data of one module.
func (s *Slide) SetData(moduleID string, d modules.Data) {
	if s.Data == nil {
		s.Data = make(map[string]modules.Data)
	}
	s.Data[moduleID] = d
}

// SetRenderOrder installs a manual content order after checking that every
// entry names an enabled content module exactly once.
func (s *Slide) SetRenderOrder(reg *modules.Registry, entries []RenderOrderEntry) error {
	if v := validateRenderOrder(reg, entries, s.EnabledModules); len(v) > 0 {
		return &SlideError{SlideID: s.ID, Violations: v}
	}
	s.RenderOrder = slices.Clone(entries)
	return nil
}

func validateRenderOrder(reg *modules.Registry, entries []RenderOrderEntry, enabled []string) []string {
	var v []string
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if seen[e.ModuleID] {
			v = append(v, fmt.Sprintf("render order lists %q more than once", e.ModuleID))
			continue
		}
		seen[e.ModuleID] = true
		m, ok := reg.Get(e.ModuleID)
		switch {
		case !ok:
			v = append(v, fmt.Sprintf("render order references unknown module %q", e.ModuleID))
		case m.Category != modules.Content:
			v = append(v, fmt.Sprintf("render order may only list content modules, %q is %s", e.ModuleID, m.Category))
		case !slices.Contains(enabled, e.ModuleID):
			v = append(v, fmt.Sprintf("render order references disabled module %q", e.ModuleID))
		}
	}
	return v
}
