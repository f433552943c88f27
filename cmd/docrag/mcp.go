package main

import (
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/docrag/internal/mcp"
)

var mcpRoot string

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().StringVar(&mcpRoot, "root", "", "only allow ingest_file below this directory")
}

// mcpCmd serves MCP over stdio
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve docrag tools over MCP stdio",
	Long: `Run a Model Context Protocol server on stdin/stdout so an MCP client can
ingest, search and ask through docrag. Logs are written to stderr.

Example client configuration:
  {"mcpServers": {"docrag": {"command": "docrag", "args": ["mcp", "--root", "/home/me/papers"]}}}`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	server, err := mcp.NewServer(&mcp.Config{
		Name:    "docrag",
		Version: version,
		Root:    mcpRoot,
		Logger:  s.logger.Named("mcp"),
	}, s.app)
	if err != nil {
		return err
	}
	return server.Run(cmd.Context())
}
