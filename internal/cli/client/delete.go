package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func DeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <document_id>",
		Short: "Delete a document",
		Long:  "Deletes a document, its indexed passages, and its archived upload.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runDelete(args[0], outputJSON)
		},
	}

	return cmd
}

func runDelete(documentID string, outputJSON bool) error {
	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	if _, err := api.Delete(fmt.Sprintf("/documents/%s", documentID)); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(map[string]interface{}{
			"id":      documentID,
			"deleted": true,
		}, "", "  ")
		fmt.Println(string(output))
	} else {
		fmt.Printf("Deleted document: %s\n", documentID)
	}

	return nil
}
