package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// Document represents a document from the API.
type Document struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Status      string `json:"status"`
	Version     int64  `json:"version"`
	ContentHash string `json:"content_hash"`
	Error       string `json:"error,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// GetCmd creates the get command.
func GetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "get <document_id>",
		Short:   "Get a document by ID",
		Long:    "Retrieves a document by its ID and displays its ingestion state.",
		Aliases: []string{"view"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runGet(args[0], outputJSON)
		},
	}

	return cmd
}

func runGet(documentID string, outputJSON bool) error {
	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	resp, err := api.Get(fmt.Sprintf("/documents/%s", documentID))
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(resp.Data, &doc); err != nil {
		return fmt.Errorf("failed to parse document: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(doc, "", "  ")
		fmt.Println(string(output))
	} else {
		printDocument(&doc)
	}

	return nil
}

func printDocument(doc *Document) {
	fmt.Printf("Title: %s\n", doc.Title)
	fmt.Printf("ID: %s\n", doc.ID)
	fmt.Printf("Status: %s\n", doc.Status)
	fmt.Printf("Version: %d\n", doc.Version)
	if doc.Error != "" {
		fmt.Printf("Error: %s\n", doc.Error)
	}
	fmt.Printf("Created: %s\n", doc.CreatedAt)
	fmt.Printf("Updated: %s\n", doc.UpdatedAt)
}
