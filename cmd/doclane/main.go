package main

import (
	"fmt"
	"os"

	"github.com/doclane/doclane/internal/cli"
	"github.com/doclane/doclane/internal/cli/client"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "doclane",
		Short: "Doclane CLI - Document ingestion and hybrid retrieval",
		Long: `Doclane CLI provides commands to ingest documents and search them.

Environment variables:
  DOCLANE_API_KEY   API key for authentication (required)
  DOCLANE_API_URL   API base URL (default: http://localhost:8080)`,
		Version: version,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-key", "", "API key for authentication (overrides env and config)")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env and config)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.InitCmd())
	rootCmd.AddCommand(client.UploadCmd())
	rootCmd.AddCommand(client.SearchCmd())
	rootCmd.AddCommand(client.ListCmd())
	rootCmd.AddCommand(client.GetCmd())
	rootCmd.AddCommand(client.StatusCmd())
	rootCmd.AddCommand(client.ReprocessCmd())
	rootCmd.AddCommand(client.DeleteCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
