package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/doclane/doclane/internal/domain"
)

// RerankTextBudget bounds how many characters of each passage are sent to
// the scoring model.
const RerankTextBudget = 1000

const rerankSystemPrompt = `You score document passages for relevance to a search query. ` +
	`Respond with only a JSON array of numbers between 0 and 1, one score per passage, in the same order. No other text.`

// ScorePassages asks the scoring model for a 0-1 relevance score per
// passage, batched in one call. Any failure or malformed response returns
// a rerank error; callers treat rerank as best-effort and fall back.
func (c *Client) ScorePassages(ctx context.Context, query string, passages []string) ([]float64, error) {
	if len(passages) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Query: %s\n\nPassages:\n", query)
	for i, p := range passages {
		fmt.Fprintf(&sb, "[%d] %s\n", i+1, truncate(p, RerankTextBudget))
	}
	fmt.Fprintf(&sb, "\nReturn a JSON array of %d scores.", len(passages))

	raw, err := c.api.CreateCompletion(ctx, c.rerankModel, rerankSystemPrompt, sb.String())
	if err != nil {
		return nil, domain.NewRerankError(
			fmt.Sprintf("rerank call failed: %s", truncate(err.Error(), diagnosticLimit)), err)
	}

	scores, err := parseScores(raw)
	if err != nil {
		return nil, domain.NewRerankError(
			fmt.Sprintf("malformed rerank response: %s", truncate(raw, diagnosticLimit)), err)
	}
	if len(scores) != len(passages) {
		return nil, domain.NewRerankError(
			fmt.Sprintf("rerank returned %d scores for %d passages", len(scores), len(passages)), nil)
	}
	return scores, nil
}

// parseScores extracts a JSON number array from a completion, tolerating
// markdown code fences around it.
func parseScores(raw string) ([]float64, error) {
	s := strings.TrimSpace(raw)
	if i := strings.Index(s, "["); i >= 0 {
		if j := strings.LastIndex(s, "]"); j > i {
			s = s[i : j+1]
		}
	}

	var scores []float64
	if err := json.Unmarshal([]byte(s), &scores); err != nil {
		return nil, err
	}
	for i, v := range scores {
		if v < 0 {
			scores[i] = 0
		}
		if v > 1 {
			scores[i] = 1
		}
	}
	return scores, nil
}
