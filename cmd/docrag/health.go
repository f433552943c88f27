package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/docrag/internal/apiclient"
	httpserver "github.com/fyrsmithlabs/docrag/internal/http"
)

var serverURL string

func init() {
	rootCmd.AddCommand(healthCmd)
	healthCmd.Flags().StringVar(&serverURL, "server", "http://localhost:9191", "docragd base URL")
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Report the status of a running docragd",
	Long: `Query /health on a running docragd and print its document count and
configured providers.

Examples:
  docrag health
  docrag health --server http://docs.internal:9191 --json`,
	Args: cobra.NoArgs,
	RunE: runHealth,
}

func runHealth(cmd *cobra.Command, _ []string) error {
	client, err := apiclient.New(apiclient.Config{
		BaseURL:    serverURL,
		Timeout:    5 * time.Second,
		MaxRetries: -1,
		RateLimit:  -1,
	})
	if err != nil {
		return err
	}

	var health httpserver.HealthResponse
	if err := client.GetJSON(cmd.Context(), "/health", &health); err != nil {
		return fmt.Errorf("docragd at %s: %w", client.BaseURL(), err)
	}
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), health)
	}

	w := newTable(cmd.OutOrStdout())
	fmt.Fprintf(w, "status\t%s\n", health.Status)
	fmt.Fprintf(w, "server\t%s\n", client.BaseURL())
	fmt.Fprintf(w, "documents\t%d\n", health.Documents)
	fmt.Fprintf(w, "embedding\t%s\n", health.Providers.Embedding)
	fmt.Fprintf(w, "generation\t%s %s\n", health.Providers.Generation, health.Providers.Model)
	return w.Flush()
}
