package browser

import (
	"fmt"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/carrousel/fsafe"
)

// interceptRequests hijacks page requests: URLs under AssetBase are served
// from AssetDir, blocked resource types fail, everything else continues.
func interceptRequests(page *rod.Page, cfg Config) (*rod.HijackRouter, error) {
	blockSet := make(map[string]bool, len(cfg.BlockResources))
	for _, t := range cfg.BlockResources {
		blockSet[strings.ToLower(t)] = true
	}

	router := page.HijackRequests()

	if cfg.AssetBase != "" && cfg.AssetDir != "" {
		base, err := url.Parse(strings.TrimSuffix(cfg.AssetBase, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("browser: asset base: %w", err)
		}
		if err := router.Add(base.String()+"*", "", func(h *rod.Hijack) {
			serveAsset(h, base.Path, cfg.AssetDir)
		}); err != nil {
			return nil, fmt.Errorf("browser: asset route: %w", err)
		}
	}

	if err := router.Add("*", "", func(h *rod.Hijack) {
		if shouldBlock(blockSet, string(h.Request.Type())) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	}); err != nil {
		return nil, fmt.Errorf("browser: default route: %w", err)
	}

	go router.Run()
	return router, nil
}

// serveAsset answers h with the file under dir named by the request path
// relative to basePath.
func serveAsset(h *rod.Hijack, basePath, dir string) {
	data, ct, reason := loadAsset(basePath, dir, h.Request.URL().Path)
	if reason != "" {
		h.Response.Fail(reason)
		return
	}
	h.Response.SetHeader("Content-Type", ct, "Access-Control-Allow-Origin", "*")
	h.Response.SetBody(data)
}

// loadAsset reads an asset and its content type. A non-empty reason means the
// request must fail with it.
func loadAsset(basePath, dir, urlPath string) ([]byte, string, proto.NetworkErrorReason) {
	path, err := fsafe.SafePath(dir, strings.TrimPrefix(urlPath, basePath))
	if err != nil {
		return nil, "", proto.NetworkErrorReasonAccessDenied
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", proto.NetworkErrorReasonFailed
	}
	ct := mime.TypeByExtension(filepath.Ext(path))
	if ct == "" {
		ct = "application/octet-stream"
	}
	return data, ct, ""
}

func shouldBlock(blockSet map[string]bool, resType string) bool {
	if len(blockSet) == 0 {
		return false
	}
	lower := strings.ToLower(resType)
	switch lower {
	case "image":
		return blockSet["images"]
	case "font":
		return blockSet["fonts"]
	case "media":
		return blockSet["media"]
	case "stylesheet":
		return blockSet["stylesheets"]
	}
	return blockSet[lower]
}
