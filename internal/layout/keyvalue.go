package layout

import (
	"strings"

	"github.com/doclane/doclane/internal/domain"
)

// detectKeyValues scans each line for a label token followed closely by a
// run of value tokens and records both bounding boxes. Detection is capped
// as a safety bound against pathological documents.
func detectKeyValues(lines []Line) []domain.KeyValue {
	var out []domain.KeyValue
	for _, ln := range lines {
		for i := 0; i+1 < len(ln.Tokens); i++ {
			label := ln.Tokens[i]
			if !looksLikeLabel(label.Text) {
				continue
			}
			font := label.FontSize
			if font <= 0 {
				font = DefaultFontSize
			}

			first := ln.Tokens[i+1]
			gap := first.X - (label.X + label.Width)
			// a value that itself reads like a label is a label continuation
			if gap < 0 || gap > KeyValueGapFontRatio*font || !looksLikeValue(first.Text) || looksLikeLabel(first.Text) {
				continue
			}

			valueBox := first.Box()
			parts := []string{first.Text}
			j := i + 2
			for ; j < len(ln.Tokens); j++ {
				prev := ln.Tokens[j-1]
				chain := ln.Tokens[j].X - (prev.X + prev.Width)
				if chain > ValueChainFontRatio*font || !looksLikeValue(ln.Tokens[j].Text) {
					break
				}
				parts = append(parts, ln.Tokens[j].Text)
				valueBox = valueBox.Union(ln.Tokens[j].Box())
			}

			out = append(out, domain.KeyValue{
				Key:      strings.TrimRight(strings.TrimSpace(label.Text), ":#"),
				Value:    strings.Join(parts, " "),
				Page:     ln.Page,
				KeyBox:   label.Box(),
				ValueBox: valueBox,
			})
			if len(out) >= MaxKeyValueCandidates {
				return out
			}
			i = j - 1
		}
	}
	return out
}
