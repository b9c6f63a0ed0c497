package layout

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// groupLines clusters one page's tokens into lines. Tokens are sorted
// top-to-bottom (descending y, PDF origin is bottom-left) then left-to-right;
// a token joins the current line when its baseline sits within a
// font-proportional vertical band of the line's first token.
func groupLines(tokens []Token, avgFont float64) []Line {
	sorted := make([]Token, len(tokens))
	copy(sorted, tokens)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Y != sorted[j].Y {
			return sorted[i].Y > sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	band := VerticalBandFontRatio * avgFont
	if band < VerticalBandMin {
		band = VerticalBandMin
	}

	var lines []Line
	for _, t := range sorted {
		if len(lines) > 0 {
			cur := &lines[len(lines)-1]
			if abs(t.Y-cur.Tokens[0].Y) <= band {
				cur.Tokens = append(cur.Tokens, t)
				continue
			}
		}
		lines = append(lines, Line{Page: t.Page, Tokens: []Token{t}})
	}

	for i := range lines {
		sort.SliceStable(lines[i].Tokens, func(a, b int) bool {
			return lines[i].Tokens[a].X < lines[i].Tokens[b].X
		})
	}
	return lines
}

// splitThreshold is the horizontal gap at which one grouped line becomes
// two. Unrelated fields printed on the same baseline sit well past it.
func splitThreshold(avgFont float64) float64 {
	t := SplitGapFontRatio * avgFont
	if t < SplitGapMin {
		t = SplitGapMin
	}
	return t
}

// splitLines breaks each grouped line wherever an unusually large
// horizontal gap separates adjacent tokens.
func splitLines(lines []Line, avgFont float64) []Line {
	threshold := splitThreshold(avgFont)

	var out []Line
	for _, ln := range lines {
		start := 0
		for i := 1; i < len(ln.Tokens); i++ {
			prev := ln.Tokens[i-1]
			gap := ln.Tokens[i].X - (prev.X + prev.Width)
			if gap >= threshold {
				out = append(out, Line{Page: ln.Page, Tokens: ln.Tokens[start:i]})
				start = i
			}
		}
		out = append(out, Line{Page: ln.Page, Tokens: ln.Tokens[start:]})
	}
	return out
}

var idWordPattern = regexp.MustCompile(`(?i)^(no\.?|num\.?|number|id|ref\.?|acct\.?|account|code|date|total|amount|invoice|#)$`)

// looksLikeLabel reports whether a token run reads as a field label:
// it ends in ':' or '#', or its last word is a short id-like word.
func looksLikeLabel(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" || len(text) > 40 {
		return false
	}
	if strings.HasSuffix(text, ":") || strings.HasSuffix(text, "#") {
		return true
	}
	words := strings.Fields(text)
	return idWordPattern.MatchString(words[len(words)-1])
}

// looksLikeValue reports whether a token reads as a field value:
// alphanumeric content carrying a digit or an uppercase letter.
func looksLikeValue(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	var strong bool
	for _, r := range text {
		switch {
		case unicode.IsDigit(r) || unicode.IsUpper(r):
			strong = true
		case unicode.IsLetter(r):
		case strings.ContainsRune("-.,/#$%() ", r):
		default:
			return false
		}
	}
	return strong
}

// finishLine reconstructs a line's text from its tokens and derives its
// bounding box. Tokens joined across a small gap get a space; when the gap
// separates a label-looking token from a value-looking one, an inferred
// ": " recovers punctuation the renderer omitted.
func finishLine(ln *Line, avgFont float64) {
	smallGap := SmallGapFontRatio * avgFont

	var sb strings.Builder
	for i, t := range ln.Tokens {
		if i > 0 {
			prev := ln.Tokens[i-1]
			gap := t.X - (prev.X + prev.Width)
			switch {
			case gap < smallGap:
				// glyph runs split mid-word, join directly
			case strings.HasSuffix(sb.String(), ":"), strings.HasSuffix(sb.String(), "#"):
				sb.WriteByte(' ')
			case looksLikeLabel(sb.String()) && looksLikeValue(t.Text) && !looksLikeLabel(t.Text):
				sb.WriteString(": ")
			default:
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(t.Text)
		ln.Box = ln.Box.Union(t.Box())
	}
	ln.Text = strings.TrimSpace(sb.String())
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
