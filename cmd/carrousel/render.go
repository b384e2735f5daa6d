package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/carrousel/batch"
	"github.com/hazyhaar/carrousel/carousel"
)

type renderFlags struct {
	out            string
	mode           string
	highlightColor string
	highlightBg    string
	prefix         string
	pdf            bool
	concurrency    int
}

func newRenderCmd(g *globalFlags) *cobra.Command {
	f := &renderFlags{}
	cmd := &cobra.Command{
		Use:   "render <carousel.json|->",
		Short: "Transform a carousel document and render every slide",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.load()
			if err != nil {
				return err
			}
			if f.out != "" {
				cfg.Output.Dir = f.out
			}
			if f.pdf {
				cfg.Output.PDF = true
			}
			if f.concurrency > 0 {
				cfg.Batch.Concurrency = f.concurrency
			}
			if f.prefix != "" {
				cfg.Carousel.FilenamePrefix = f.prefix
			}

			raw, err := readInput(args[0])
			if err != nil {
				return err
			}
			c, err := carousel.Normalize(raw)
			if err != nil {
				return err
			}

			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			opts := a.transformOptions()
			if f.highlightColor != "" {
				opts.HighlightColor = f.highlightColor
			}
			if f.highlightBg != "" {
				opts.HighlightBackground = f.highlightBg
			}
			layouts := carousel.BuildLayouts(c, opts)

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Batch.Timeout)
			defer cancel()

			var res *batch.Result
			switch f.mode {
			case "slides":
				res = a.batches.RunBatch(ctx, batch.Jobs(layouts))
			case "canvas":
				res = a.batches.RunCarousel(ctx, layouts, nil)
			default:
				return fmt.Errorf("unknown mode %q (want slides or canvas)", f.mode)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(res); err != nil {
				return err
			}
			if res.Summary.Failed > 0 {
				return fmt.Errorf("%d of %d slides failed", res.Summary.Failed, res.Summary.Total)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "output directory (overrides config)")
	cmd.Flags().StringVar(&f.mode, "mode", "slides", "slides (one page per slide) or canvas (one shared canvas)")
	cmd.Flags().StringVar(&f.highlightColor, "highlight-color", "", "highlight text color")
	cmd.Flags().StringVar(&f.highlightBg, "highlight-bg", "", "highlight background")
	cmd.Flags().StringVar(&f.prefix, "prefix", "", "output filename prefix")
	cmd.Flags().BoolVar(&f.pdf, "pdf", false, "also bundle the slides into a PDF")
	cmd.Flags().IntVar(&f.concurrency, "concurrency", 0, "concurrent slides (overrides config)")
	return cmd
}
