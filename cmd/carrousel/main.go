// Command carrousel composes slide modules into pages and renders them to
// PNG with headless Chrome.
//
// Usage:
//
//	carrousel serve -config carrousel.yaml     # HTTP API
//	carrousel render post.json -o out/         # transform + render a carousel
//	carrousel compose request.json > page.html # compose only
//	carrousel mcp                              # MCP tools over stdio
package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"
)

// Version is set via -ldflags.
var Version = "dev"

func main() {
	if err := fang.Execute(
		context.Background(),
		newRootCmd(),
		fang.WithVersion(Version),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(1)
	}
}
