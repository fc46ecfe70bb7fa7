package main

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"chirpbot/internal/app"
	"chirpbot/internal/mcpserver"
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Run as MCP server (stdio transport)",
		Long: `Expose chirpbot's control surface as Model Context Protocol tools over
stdio. Logs go to stderr.

Configure in your agent's MCP settings:
  {
    "mcpServers": {
      "chirpbot": {
        "command": "chirpbot",
        "args": ["mcp", "--config", "/etc/chirpbot/config.yaml"]
      }
    }
  }

Available tools: status, tweets, set_mode, post_now`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Stop(cmd.Context(), app.StopOneShot) }()
			server := mcpserver.NewServer(version, a.Service())
			return server.Run(cmd.Context(), &mcp.StdioTransport{})
		},
	}
}
