// Package layout reconstructs reading order, punctuation and key/value
// structure from unordered positioned text fragments, as produced by PDF
// content streams. All heuristic thresholds are named constants below,
// tuned against real invoice/statement style documents.
package layout

import (
	"sort"
	"strings"

	"github.com/doclane/doclane/internal/domain"
)

// Heuristic thresholds. Units are PDF user-space points unless stated as a
// font-size multiple.
const (
	// VerticalBandFontRatio and VerticalBandMin bound how far apart two
	// fragments' baselines may sit while still belonging to one line.
	VerticalBandFontRatio = 0.6
	VerticalBandMin       = 2.0

	// SplitGapMin and SplitGapFontRatio define the horizontal gap at which
	// a grouped line is split, so unrelated label/value pairs sharing a
	// vertical band do not merge.
	SplitGapMin       = 20.0
	SplitGapFontRatio = 3.0

	// SmallGapFontRatio is the gap above which adjacent tokens get a space
	// (or an inferred ": ") instead of being concatenated directly.
	SmallGapFontRatio = 0.25

	// ColumnGapMin and ColumnGapWidthRatio control x-start clustering of
	// lines into vertical columns.
	ColumnGapMin        = 10.0
	ColumnGapWidthRatio = 0.5

	// KeyValueGapFontRatio is the maximum gap between a label token and the
	// first value token, as a multiple of the label's font size.
	// ValueChainFontRatio bounds gaps between subsequent value tokens.
	KeyValueGapFontRatio = 5.0
	ValueChainFontRatio  = 0.8

	// MaxKeyValueCandidates caps detection output per document.
	MaxKeyValueCandidates = 1000

	// DefaultFontSize substitutes for fragments whose font size could not
	// be recovered from the content stream.
	DefaultFontSize = 10.0
)

// Token is a positioned text fragment extracted from one page. Ephemeral:
// tokens exist only during extraction and are never persisted.
type Token struct {
	Text     string
	Page     int
	X        float64
	Y        float64
	Width    float64
	FontSize float64
}

// Box returns the token's approximate bounding box. Height is approximated
// by the font size; PDF content streams do not carry glyph heights.
func (t Token) Box() domain.BoundingBox {
	return domain.BoundingBox{
		X0: t.X,
		Y0: t.Y,
		X1: t.X + t.Width,
		Y1: t.Y + t.FontSize,
	}
}

// Line is an ordered cluster of tokens sharing a vertical band on one page,
// with reconstructed text and a derived bounding box.
type Line struct {
	Page   int
	Tokens []Token
	Text   string
	Box    domain.BoundingBox
}

/// Result is the parser output: lines in reading order, the concatenated
// text, the page count, and detected key/value candidates.
type Result struct {
	Lines     []Line
	Text      string
	PageCount int
	KeyValues []domain.KeyValue
}

// Reconstruct turns unordered positioned tokens into ordered lines, text
// and key/value candidates. It is pure over its inputs so the heuristics
// can be tested without PDF fixtures.
func Reconstruct(tokens []Token, pageCount int) *Result {
	res := &Result{PageCount: pageCount}

	byPage := make(map[int][]Token)
	pages := make([]int, 0, pageCount)
	for _, t := range tokens {
		if strings.TrimSpace(t.Text) == "" {
			continue
		}
		if _, ok := byPage[t.Page]; !ok {
			pages = append(pages, t.Page)
		}
		byPage[t.Page] = append(byPage[t.Page], t)
	}
	sort.Ints(pages)

	for _, page := range pages {
		avgFont := averageFontSize(byPage[page])
		lines := groupLines(byPage[page], avgFont)
		lines = splitLines(lines, avgFont)
		for i := range lines {
			finishLine(&lines[i], avgFont)
		}
		lines = orderColumns(lines)
		res.Lines = append(res.Lines, lines...)
	}

	var sb strings.Builder
	for i, ln := range res.Lines {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(ln.Text)
	}
	res.Text = sb.String()
	res.KeyValues = detectKeyValues(res.Lines)

	return res
}

func averageFontSize(tokens []Token) float64 {
	var sum float64
	var n int
	for _, t := range tokens {
		if t.FontSize > 0 {
			sum += t.FontSize
			n++
		}
	}
	if n == 0 {
		return DefaultFontSize
	}
	return sum / float64(n)
}
