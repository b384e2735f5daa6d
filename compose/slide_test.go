package compose

import (
	"errors"
	"slices"
	"testing"

	"github.com/hazyhaar/carrousel/modules"
)

func TestSlide_EnableRejectsInvalid(t *testing.T) {
	reg := modules.Default()
	s := NewSlide(modules.CanvasID, modules.ImageID)
	err := s.Enable(reg, modules.SplitImageID)
	if !errors.Is(err, ErrInvalidSlide) {
		t.Fatalf("conflict should be refused, got %v", err)
	}
	if slices.Contains(s.EnabledModules, modules.SplitImageID) {
		t.Fatal("slide mutated on error")
	}
	if err := s.Enable(reg, "nope"); err == nil {
		t.Fatal("unregistered module accepted")
	}
	if err := s.Enable(reg, modules.TextID); err != nil {
		t.Fatal(err)
	}
}

func TestSlide_DisableKeepsData(t *testing.T) {
	reg := modules.Default()
	s := NewSlide(modules.CanvasID, modules.TextID)
	s.SetData(modules.TextID, modules.Data{"title": "x"})
	if err := s.SetRenderOrder(reg, []RenderOrderEntry{{ID: "1", ModuleID: modules.TextID}}); err != nil {
		t.Fatal(err)
	}
	s.Disable(modules.TextID)
	if len(s.RenderOrder) != 0 || s.Data[modules.TextID] == nil {
		t.Fatalf("got %+v", s)
	}
}

func TestSlide_RenderOrderContentOnly(t *testing.T) {
	reg := modules.Default()
	s := NewSlide(modules.CanvasID, modules.TextID, modules.LogoID)
	cases := [][]RenderOrderEntry{
		{{ModuleID: modules.CanvasID}},
		{{ModuleID: modules.LogoID}},
		{{ModuleID: modules.TextID}, {ModuleID: modules.TextID}},
		{{ModuleID: modules.ImageID}},
	}
	for i, entries := range cases {
		var se *SlideError
		if err := s.SetRenderOrder(reg, entries); !errors.As(err, &se) {
			t.Errorf("case %d accepted", i)
		}
	}
}
