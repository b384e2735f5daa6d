package compose

import (
	"context"

	"github.com/hazyhaar/carrousel/idgen"
	"github.com/hazyhaar/carrousel/modules"
)

// Request is the wire form of a compose call. It accepts the current
// multi-slide shape and the legacy single-slide shape
// ({enabledModules, moduleData}).
type Request struct {
	Slides           []*Slide                `json:"slides,omitempty"`
	SharedModuleData map[string]modules.Data `json:"sharedModuleData,omitempty"`
	FreeOverlay      *FloatingOverlay        `json:"freeOverlay,omitempty"`

	EnabledModules []string                `json:"enabledModules,omitempty"`
	ModuleData     map[string]modules.Data `json:"moduleData,omitempty"`
}

// Normalized returns the slides and shared data of r. Slides without an id
// get one. The legacy shape becomes a single slide carrying moduleData as
// its own data.
func (r *Request) Normalized() ([]*Slide, map[string]modules.Data, error) {
	if len(r.Slides) > 0 {
		slides := make([]*Slide, 0, len(r.Slides))
		for _, s := range r.Slides {
			if s == nil {
				continue
			}
			cp := *s
			if cp.ID == "" {
				cp.ID = idgen.Slide()
			}
			slides = append(slides, &cp)
		}
		if len(slides) == 0 {
			return nil, nil, ErrNoSlides
		}
		return slides, r.SharedModuleData, nil
	}
	if len(r.EnabledModules) == 0 {
		return nil, nil, ErrNoSlides
	}
	s := NewSlide(r.EnabledModules...)
	for id, d := range r.ModuleData {
		s.SetData(id, d)
	}
	return []*Slide{s}, r.SharedModuleData, nil
}

// ComposeRequest normalizes r and composes it.
func (c *Composer) ComposeRequest(ctx context.Context, r *Request) (*Document, error) {
	slides, shared, err := r.Normalized()
	if err != nil {
		return nil, err
	}
	return c.Compose(ctx, slides, shared, Options{Overlay: r.FreeOverlay})
}
