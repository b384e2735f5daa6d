package main

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
)

func newMCPCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the carousel tools over MCP stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := g.load()
			if err != nil {
				return err
			}
			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			srv := mcp.NewServer(&mcp.Implementation{Name: "carrousel", Version: Version}, nil)
			a.server().RegisterMCP(srv)
			logger.Info("carrousel: mcp on stdio")
			return srv.Run(cmd.Context(), &mcp.StdioTransport{})
		},
	}
}
