package render

import (
	"context"

	"github.com/hazyhaar/carrousel/render/internal/browser"
)

// BrowserConfig configures the headless Chrome surface.
type BrowserConfig = browser.Config

// BrowserSurface is the go-rod implementation of Surface. Chrome starts on
// the first page request.
type BrowserSurface struct {
	m *browser.Manager
}

// NewBrowserSurface returns a Chrome-backed surface.
func NewBrowserSurface(cfg BrowserConfig) *BrowserSurface {
	return &BrowserSurface{m: browser.NewManager(cfg)}
}

func (s *BrowserSurface) OpenPage(ctx context.Context, width, height int) (Page, error) {
	p, err := s.m.OpenPage(ctx, width, height)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *BrowserSurface) Recycle(ctx context.Context) error { return s.m.Recycle(ctx) }

func (s *BrowserSurface) Close() error { return s.m.Close() }

// Alive reports whether Chrome is running and answering.
func (s *BrowserSurface) Alive() bool { return s.m.Alive() }
