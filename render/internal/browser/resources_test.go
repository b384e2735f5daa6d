package browser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-rod/rod/lib/proto"
)

func TestShouldBlock(t *testing.T) {
	set := map[string]bool{"media": true, "fonts": true, "websocket": true}
	cases := map[string]bool{
		"Media":      true,
		"Font":       true,
		"Image":      false,
		"Stylesheet": false,
		"WebSocket":  true,
	}
	for typ, want := range cases {
		if got := shouldBlock(set, typ); got != want {
			t.Errorf("%s: got %v, want %v", typ, got, want)
		}
	}
	if shouldBlock(nil, "Media") {
		t.Error("empty set blocks nothing")
	}
}

func TestConfigDefaults(t *testing.T) {
	var c Config
	c.defaults()
	if c.MemoryLimit != 1<<30 || c.RecycleInterval == 0 || c.Logger == nil {
		t.Fatalf("got %+v", c)
	}
}

func TestLoadAsset(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "logo.png"), []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}

	data, ct, reason := loadAsset("/static/", dir, "/static/logo.png")
	if reason != "" || string(data) != "png" || ct != "image/png" {
		t.Fatalf("got %q %q %q", data, ct, reason)
	}
	if _, _, reason := loadAsset("/static/", dir, "/static/missing.png"); reason != proto.NetworkErrorReasonFailed {
		t.Errorf("missing file: %q", reason)
	}
	if _, _, reason := loadAsset("/static/", dir, "/static/../../etc/passwd"); reason != proto.NetworkErrorReasonAccessDenied {
		t.Errorf("traversal: %q", reason)
	}
}
