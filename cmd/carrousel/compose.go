package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/carrousel/compose"
	"github.com/hazyhaar/carrousel/modules"
)

func newComposeCmd(g *globalFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "compose <request.json|->",
		Short: "Compose slides into an HTML page without rendering",
		Long: `compose reads {slides, sharedModuleData, freeOverlay} or the legacy
{enabledModules, moduleData} and prints the composed page.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.load()
			if err != nil {
				return err
			}
			raw, err := readInput(args[0])
			if err != nil {
				return err
			}
			var req compose.Request
			if err := json.Unmarshal(raw, &req); err != nil {
				return fmt.Errorf("decode request: %w", err)
			}

			c := compose.New(modules.Default(),
				compose.WithUnit(compose.Size{Width: cfg.Render.Width, Height: cfg.Render.Height}),
				compose.WithBaseURL(cfg.Assets.BaseURL),
				compose.WithLogger(logger),
			)
			doc, err := c.ComposeRequest(cmd.Context(), &req)
			if err != nil {
				return err
			}
			for _, d := range doc.Diagnostics {
				logger.Warn("compose: module skipped", "slide", d.SlideIndex, "module", d.ModuleID, "phase", d.Phase, "error", d.Err)
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(doc)
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), doc.Page())
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the document as JSON instead of HTML")
	return cmd
}
