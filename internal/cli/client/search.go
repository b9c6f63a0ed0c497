package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// RetrieveRequest represents the retrieve API request.
type RetrieveRequest struct {
	Query       string `json:"query"`
	K           int    `json:"k,omitempty"`
	UseRerank   bool   `json:"use_rerank,omitempty"`
	BypassCache bool   `json:"bypass_cache,omitempty"`
}

// RetrievedChunk represents one ranked passage in a retrieve response.
type RetrievedChunk struct {
	PassageID    string  `json:"passage_id"`
	DocumentID   string  `json:"document_id"`
	Ordinal      int     `json:"ordinal"`
	Title        string  `json:"title,omitempty"`
	Content      string  `json:"content"`
	Score        float64 `json:"score"`
	VectorScore  float64 `json:"vector_score"`
	KeywordScore float64 `json:"keyword_score"`
}

// RetrieveStats carries the per-phase timing breakdown.
type RetrieveStats struct {
	VectorMs  int64 `json:"vector_ms"`
	KeywordMs int64 `json:"keyword_ms"`
	RerankMs  int64 `json:"rerank_ms"`
}

// RetrieveResponse represents the retrieve API response.
type RetrieveResponse struct {
	Chunks []RetrievedChunk `json:"chunks"`
	Stats  RetrieveStats    `json:"stats"`
}

// SearchCmd creates the search command.
func SearchCmd() *cobra.Command {
	var (
		k           int
		useRerank   bool
		bypassCache bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search documents",
		Long:  "Runs a hybrid (semantic + keyword) search over the tenant's ingested documents.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runSearch(args[0], k, useRerank, bypassCache, outputJSON)
		},
	}

	cmd.Flags().IntVarP(&k, "limit", "n", 0, "Number of results (default: tenant setting)")
	cmd.Flags().BoolVar(&useRerank, "rerank", false, "Force reranking of the candidate window")
	cmd.Flags().BoolVar(&bypassCache, "no-cache", false, "Bypass the retrieval cache")

	return cmd
}

func runSearch(query string, k int, useRerank, bypassCache, outputJSON bool) error {
	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	req := RetrieveRequest{
		Query:       query,
		K:           k,
		UseRerank:   useRerank,
		BypassCache: bypassCache,
	}

	resp, err := api.Post("/retrieve", req)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	var result RetrieveResponse
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return fmt.Errorf("failed to parse search results: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(result.Chunks) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Printf("Found %d results:\n\n", len(result.Chunks))
	for i, chunk := range result.Chunks {
		fmt.Printf("%d. %s #%d (%.3f)\n", i+1, chunk.Title, chunk.Ordinal, chunk.Score)
		content := chunk.Content
		if len(content) > 200 {
			content = content[:197] + "..."
		}
		fmt.Printf("   %s\n", content)
		fmt.Printf("   vector: %.3f  keyword: %.3f  passage: %s\n", chunk.VectorScore, chunk.KeywordScore, chunk.PassageID)
		if i < len(result.Chunks)-1 {
			fmt.Println(strings.Repeat("-", 40))
		}
	}
	fmt.Printf("\nTimings: vector %dms, keyword %dms, rerank %dms\n",
		result.Stats.VectorMs, result.Stats.KeywordMs, result.Stats.RerankMs)

	return nil
}
