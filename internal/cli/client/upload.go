package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// UploadCmd creates the upload command.
func UploadCmd() *cobra.Command {
	var roles []string

	cmd := &cobra.Command{
		Use:   "upload <file>...",
		Short: "Upload documents for ingestion",
		Long: `Uploads one or more files for ingestion.

Ingestion runs in the background; use 'doclane status <id>' to poll until
a document reaches the ready state. Re-uploading an unchanged file is a
no-op; a changed file replaces the previous version.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runUpload(args, roles, outputJSON)
		},
	}

	cmd.Flags().StringSliceVar(&roles, "roles", nil, "Restrict retrieval of this document to these roles")

	return cmd
}

func runUpload(paths, roles []string, outputJSON bool) error {
	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	fields := map[string]string{
		"allowed_roles": strings.Join(roles, ","),
	}

	var uploaded []Document
	for _, path := range paths {
		resp, err := api.PostFile("/documents", path, fields)
		if err != nil {
			return fmt.Errorf("failed to upload %s: %w", path, err)
		}

		var doc Document
		if err := json.Unmarshal(resp.Data, &doc); err != nil {
			return fmt.Errorf("failed to parse response for %s: %w", path, err)
		}
		uploaded = append(uploaded, doc)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(uploaded, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	for _, doc := range uploaded {
		switch doc.Status {
		case "ready":
			fmt.Printf("%s: unchanged (id: %s, version %d)\n", doc.Title, doc.ID, doc.Version)
		default:
			fmt.Printf("%s: ingestion started (id: %s, status: %s)\n", doc.Title, doc.ID, doc.Status)
		}
	}
	if len(uploaded) == 1 && uploaded[0].Status != "ready" {
		fmt.Printf("\nPoll with: doclane status %s\n", uploaded[0].ID)
	}

	return nil
}
