package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/carrousel/compose"
)

// networkIdle is how long the page must stay without in-flight requests
// before it counts as settled.
const networkIdle = 300 * time.Millisecond

// Page is one render page: a fresh target sized to the canvas.
type Page struct {
	page   *rod.Page
	router *rod.HijackRouter
}

// OpenPage creates a blank page with a width x height viewport at scale 1
// and installs the asset resolver and resource blocking when configured.
func (m *Manager) OpenPage(ctx context.Context, width, height int) (*Page, error) {
	b, err := m.acquire(ctx)
	if err != nil {
		return nil, err
	}
	page, err := b.Page(proto.TargetCreateTarget{URL: ""})
	if err != nil {
		return nil, fmt.Errorf("browser: create page: %w", err)
	}
	p := &Page{page: page}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             width,
		Height:            height,
		DeviceScaleFactor: 1,
	}); err != nil {
		p.Close()
		return nil, fmt.Errorf("browser: viewport %dx%d: %w", width, height, err)
	}

	if (m.cfg.AssetBase != "" && m.cfg.AssetDir != "") || len(m.cfg.BlockResources) > 0 {
		router, err := interceptRequests(page, m.cfg)
		if err != nil {
			p.Close()
			return nil, err
		}
		p.router = router
	}
	return p, nil
}

// Load sets the document and waits for the load event and network idle.
func (p *Page) Load(ctx context.Context, html string) error {
	pg := p.page.Context(ctx)
	wait := pg.WaitRequestIdle(networkIdle, nil, nil, nil)
	if err := pg.SetDocumentContent(html); err != nil {
		return fmt.Errorf("browser: set content: %w", err)
	}
	if err := pg.WaitLoad(); err != nil {
		return fmt.Errorf("browser: wait load: %w", err)
	}
	wait()
	return ctx.Err()
}

// FontsReady waits until every font face in use has loaded.
func (p *Page) FontsReady(ctx context.Context) error {
	if _, err := p.page.Context(ctx).Eval(`() => document.fonts.ready.then(() => true)`); err != nil {
		return fmt.Errorf("browser: fonts: %w", err)
	}
	return nil
}

// Capture takes a PNG of clip, or of the viewport when clip is nil.
func (p *Page) Capture(ctx context.Context, clip *compose.Rect) ([]byte, error) {
	req := &proto.PageCaptureScreenshot{
		Format:                proto.PageCaptureScreenshotFormatPng,
		CaptureBeyondViewport: true,
	}
	if clip != nil {
		req.Clip = &proto.PageViewport{
			X:      float64(clip.X),
			Y:      float64(clip.Y),
			Width:  float64(clip.Width),
			Height: float64(clip.Height),
			Scale:  1,
		}
	}
	img, err := p.page.Context(ctx).Screenshot(false, req)
	if err != nil {
		return nil, fmt.Errorf("browser: screenshot: %w", err)
	}
	return img, nil
}

// Close stops request interception and closes the page.
func (p *Page) Close() error {
	if p.router != nil {
		_ = p.router.Stop()
		p.router = nil
	}
	if p.page != nil {
		err := p.page.Close()
		p.page = nil
		return err
	}
	return nil
}
