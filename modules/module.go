// Package modules defines the visual building blocks of a slide and the
// registry that holds them.
//
// A Module is a self-contained contributor to a slide document: it owns a
// data schema and pure functions producing an HTML fragment, a CSS fragment
// and CSS custom properties. Modules are registered once, in an explicit
// table, and looked up by id at composition time.
package modules

import (
	"net/url"
	"slices"
	"strings"
)

// Category groups modules by how they are stacked.
type Category string

const (
	// Structural modules paint the canvas itself (background, gradients).
	// They stack by fixed order and are excluded from manual ordering.
	Structural Category = "structural"
	// Content modules carry the slide message (text, images). Their
	// relative order can be overridden per slide.
	Content Category = "content"
	// Overlay modules float above everything (logo, badges) and accept a
	// zIndex override.
	Overlay Category = "overlay"
)

// RenderContext is the read-only environment handed to module functions.
type RenderContext struct {
	// BaseURL resolves relative asset paths.
	BaseURL string
	// Enabled lists the module ids enabled on the slide being rendered.
	Enabled []string
	// SlideIndex is the zero-based position of the slide in the carousel.
	SlideIndex int
	// SlideCount is the number of slides composed together.
	SlideCount int
	// Scope is the CSS selector of the slide container; module CSS must be
	// nested under it so slides of one carousel do not bleed into each other.
	Scope string
	// Width and Height are the per-slide unit dimensions in CSS pixels.
	Width  int
	Height int
	// Layer is the z-index the module paints at, resolved by the composer
	// from stack order, manual content ordering and overlay overrides.
	Layer int
}

// Has reports whether module id is enabled on the current slide.
func (rc RenderContext) Has(id string) bool {
	return slices.Contains(rc.Enabled, id)
}

// Asset resolves an asset reference against BaseURL. Absolute URLs, data
// URIs and protocol-relative URLs pass through unchanged.
func (rc RenderContext) Asset(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || rc.BaseURL == "" {
		return ref
	}
	if strings.HasPrefix(ref, "data:") || strings.HasPrefix(ref, "//") {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil || u.IsAbs() {
		return ref
	}
	base, err := url.Parse(strings.TrimSuffix(rc.BaseURL, "/") + "/")
	if err != nil {
		return ref
	}
	return base.ResolveReference(&url.URL{Path: strings.TrimPrefix(u.Path, "/"), RawQuery: u.RawQuery}).String()
}

// Module is an immutable module definition. CSS, HTML and Vars must be pure
// functions of their arguments.
type Module struct {
	ID           string
	Name         string
	Category     Category
	StackOrder   int
	Schema       Schema
	Dependencies []string
	Conflicts    []string

	HTML func(d Data, rc RenderContext) (string, error)
	CSS  func(d Data, rc RenderContext) (string, error)
	Vars func(d Data) map[string]string
}

// ZIndex returns the paint layer for the module given its data. Overlay
// modules honour a positive "zIndex" value; everything else paints at its
// stack order.
func (m *Module) ZIndex(d Data) int {
	if m.Category == Overlay {
		if z := d.Int("zIndex", 0); z > 0 {
			return z
		}
	}
	return m.StackOrder
}
