package client

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// statusPollInterval is the delay between polls in --wait mode.
const statusPollInterval = 2 * time.Second

// StatusCmd creates the status command.
func StatusCmd() *cobra.Command {
	var (
		wait    bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "status <document_id>",
		Short: "Show a document's ingestion status",
		Long:  "Shows a document's ingestion status, optionally polling until it settles in ready or error.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runStatus(args[0], wait, timeout, outputJSON)
		},
	}

	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Poll until ingestion finishes")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "Give up polling after this long (with --wait)")

	return cmd
}

func runStatus(documentID string, wait bool, timeout time.Duration, outputJSON bool) error {
	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	deadline := time.Now().Add(timeout)
	for {
		resp, err := api.Get(fmt.Sprintf("/documents/%s", documentID))
		if err != nil {
			return fmt.Errorf("failed to get document: %w", err)
		}

		var doc Document
		if err := json.Unmarshal(resp.Data, &doc); err != nil {
			return fmt.Errorf("failed to parse document: %w", err)
		}

		settled := doc.Status == "ready" || doc.Status == "error"
		if !wait || settled || time.Now().After(deadline) {
			if outputJSON {
				output, _ := json.MarshalIndent(doc, "", "  ")
				fmt.Println(string(output))
			} else {
				printDocument(&doc)
			}
			if wait && !settled {
				return fmt.Errorf("timed out waiting for document %s (still %s)", documentID, doc.Status)
			}
			if doc.Status == "error" {
				return fmt.Errorf("ingestion failed: %s", doc.Error)
			}
			return nil
		}

		if !outputJSON {
			fmt.Printf("status: %s, waiting...\n", doc.Status)
		}
		time.Sleep(statusPollInterval)
	}
}
