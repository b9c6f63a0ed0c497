package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// ReprocessCmd creates the reprocess command.
func ReprocessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reprocess <document_id>",
		Short: "Re-run ingestion from the archived upload",
		Long:  "Re-extracts, re-chunks, and re-embeds a document from its archived source file.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runReprocess(args[0], outputJSON)
		},
	}

	return cmd
}

func runReprocess(documentID string, outputJSON bool) error {
	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	resp, err := api.Post(fmt.Sprintf("/documents/%s/reprocess", documentID), nil)
	if err != nil {
		return fmt.Errorf("failed to reprocess document: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(resp.Data, &doc); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(doc, "", "  ")
		fmt.Println(string(output))
	} else {
		fmt.Printf("Reprocessed %s (id: %s, status: %s, version %d)\n", doc.Title, doc.ID, doc.Status, doc.Version)
	}

	return nil
}
