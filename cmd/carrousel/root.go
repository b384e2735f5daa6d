package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/carrousel/internal/config"
)

type globalFlags struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "carrousel",
		Short: "Compose and render carousel slides",
		Long: `carrousel turns carousel documents into slide images.

Slides are built from registered modules (canvas, image, text, overlays),
composed into one HTML page per slide or one wide canvas for a carousel,
then captured by headless Chrome.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "path to carrousel.yaml")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")

	root.AddCommand(
		newServeCmd(g),
		newRenderCmd(g),
		newComposeCmd(g),
		newMCPCmd(g),
	)
	return root
}

// load reads the configuration and builds the logger.
func (g *globalFlags) load() (*config.Config, *slog.Logger, error) {
	cfg := config.Default()
	if g.configPath != "" {
		var err error
		if cfg, err = config.LoadFile(g.configPath); err != nil {
			return nil, nil, fmt.Errorf("load config: %w", err)
		}
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	return cfg, newLogger(os.Stderr, cfg.LogLevel), nil
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger
}

// readInput reads a file, or stdin for "-".
func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
