// Package chunker splits extracted sections into token-budgeted,
// overlapping passages, preferring sentence-aligned cut points.
package chunker

import (
	"strings"

	"github.com/doclane/doclane/internal/extract"
)

// Config controls passage sizing. Budgets are expressed in approximate
// tokens and converted to characters via CharsPerToken.
type Config struct {
	TargetTokens  int
	OverlapTokens int
	CharsPerToken int
}

// DefaultConfig provides sane defaults for embedding-sized passages.
func DefaultConfig() Config {
	return Config{
		TargetTokens:  300,
		OverlapTokens: 50,
		CharsPerToken: 4,
	}
}

// sentenceCutRatio bounds how far back the sentence-boundary search may
// move a cut point, as a fraction of the character budget.
const sentenceCutRatio = 0.6

// Chunk is one emitted passage. SectionIndex points at the originating
// section so layout metadata (page ranges, boxes) can be propagated;
// Ordinal is the document-wide passage index.
type Chunk struct {
	Title        string
	Text         string
	SectionIndex int
	Ordinal      int
}

// Split chunks each section under the character budget, sliding an
// overlapping window across sections that exceed it. Empty sections are
// skipped; ordinals stay contiguous across the whole document.
func Split(sections []extract.Section, cfg Config) []Chunk {
	if cfg.TargetTokens <= 0 || cfg.CharsPerToken <= 0 {
		cfg = DefaultConfig()
	}

	budget := cfg.TargetTokens * cfg.CharsPerToken
	overlap := cfg.OverlapTokens * cfg.CharsPerToken
	if overlap < 0 {
		overlap = 0
	}
	// an overlap at or above the budget would never advance the window
	if overlap >= budget {
		overlap = budget - 1
	}

	var chunks []Chunk
	ordinal := 0
	for si, section := range sections {
		for _, text := range splitSection(section.Text, budget, overlap) {
			chunks = append(chunks, Chunk{
				Title:        section.Title,
				Text:         text,
				SectionIndex: si,
				Ordinal:      ordinal,
			})
			ordinal++
		}
	}
	return chunks
}

func splitSection(text string, budget, overlap int) []string {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return nil
	}
	runes := []rune(clean)
	if len(runes) <= budget {
		return []string{clean}
	}

	floor := int(sentenceCutRatio * float64(budget))

	var out []string
	start := 0
	for start < len(runes) {
		end := start + budget
		if end > len(runes) {
			end = len(runes)
		}

		if end < len(runes) {
			if cut := lastSentenceEnd(runes[start:end], floor); cut > 0 {
				end = start + cut
			}
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			out = append(out, chunk)
		}

		if end >= len(runes) {
			break
		}

		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

// lastSentenceEnd finds the last ". " boundary in window, returning the
// index just past the period, or 0 when no boundary sits at or after
// floor.
func lastSentenceEnd(window []rune, floor int) int {
	for i := len(window) - 2; i >= 0; i-- {
		if i+1 < floor {
			return 0
		}
		if window[i] == '.' && window[i+1] == ' ' {
			return i + 1
		}
	}
	return 0
}
