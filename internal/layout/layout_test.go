package layout

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tok(text string, x, y, w float64) Token {
	return Token{Text: text, Page: 1, X: x, Y: y, Width: w, FontSize: 10}
}

func TestGroupLinesVerticalBand(t *testing.T) {
	// avg font 10 -> band 6: jitter of 3 groups, 12 starts a new line
	tokens := []Token{
		tok("first", 0, 700, 30),
		tok("line", 40, 703, 25),
		tok("second", 0, 688, 40),
	}

	res := Reconstruct(tokens, 1)

	require.Len(t, res.Lines, 2)
	assert.Equal(t, "first line", res.Lines[0].Text)
	assert.Equal(t, "second", res.Lines[1].Text)
}

func TestIntraLineSplitSeparatesDistantFragments(t *testing.T) {
	// same baseline, gap far past the split threshold: must become two lines
	tokens := []Token{
		tok("Name", 0, 700, 30),
		tok("Status", 200, 700, 40),
	}

	res := Reconstruct(tokens, 1)

	require.Len(t, res.Lines, 2)
	assert.Equal(t, "Name", res.Lines[0].Text)
	assert.Equal(t, "Status", res.Lines[1].Text)
}

func TestPunctuationReconstruction(t *testing.T) {
	tests := []struct {
		name     string
		tokens   []Token
		expected string
	}{
		{
			name: "inferred colon between label and value",
			tokens: []Token{
				tok("Account", 0, 700, 35),
				tok("Number", 42, 700, 33),
				tok("4521-889", 80, 700, 45),
			},
			expected: "Account Number: 4521-889",
		},
		{
			name: "explicit colon keeps plain space",
			tokens: []Token{
				tok("Invoice:", 0, 700, 40),
				tok("INV-1", 48, 700, 30),
			},
			expected: "Invoice: INV-1",
		},
		{
			name: "tiny gap joins glyph runs directly",
			tokens: []Token{
				tok("Ac", 0, 700, 10),
				tok("count", 10.5, 700, 25),
			},
			expected: "Account",
		},
		{
			name: "plain words keep plain spaces",
			tokens: []Token{
				tok("quarterly", 0, 700, 45),
				tok("report", 50, 700, 30),
			},
			expected: "quarterly report",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Reconstruct(tt.tokens, 1)
			require.Len(t, res.Lines, 1)
			assert.Equal(t, tt.expected, res.Lines[0].Text)
		})
	}
}

func TestColumnOrdering(t *testing.T) {
	// two columns sharing baselines: naive y-ordering would interleave them
	tokens := []Token{
		tok("Left one", 50, 700, 90),
		tok("Right one", 300, 700, 90),
		tok("Left two", 50, 680, 90),
		tok("Right two", 300, 680, 90),
	}

	res := Reconstruct(tokens, 1)

	require.Len(t, res.Lines, 4)
	assert.Equal(t, "Left one\nLeft two\nRight one\nRight two", res.Text)
}

func TestReconstructPageOrderAndBoxes(t *testing.T) {
	tokens := []Token{
		{Text: "page two", Page: 2, X: 0, Y: 700, Width: 40, FontSize: 10},
		{Text: "page one", Page: 1, X: 0, Y: 700, Width: 40, FontSize: 10},
		{Text: "   ", Page: 1, X: 50, Y: 700, Width: 10, FontSize: 10},
	}

	res := Reconstruct(tokens, 2)

	require.Len(t, res.Lines, 2)
	assert.Equal(t, 1, res.Lines[0].Page)
	assert.Equal(t, 2, res.Lines[1].Page)
	assert.Equal(t, 2, res.PageCount)
	assert.Equal(t, 0.0, res.Lines[0].Box.X0)
	assert.Equal(t, 40.0, res.Lines[0].Box.X1)
	assert.Equal(t, 700.0, res.Lines[0].Box.Y0)
	assert.Equal(t, 710.0, res.Lines[0].Box.Y1)
}

func TestDetectKeyValues(t *testing.T) {
	tokens := []Token{
		tok("Invoice No:", 0, 700, 60),
		tok("INV-4521", 70, 700, 50),
		tok("Date:", 0, 680, 30),
		tok("12", 40, 680, 12),
		tok("Aug", 54, 680, 20),
		tok("2026", 76, 680, 25),
		tok("hello", 0, 660, 25),
		tok("world", 30, 660, 25),
	}

	res := Reconstruct(tokens, 1)

	require.Len(t, res.KeyValues, 2)

	assert.Equal(t, "Invoice No", res.KeyValues[0].Key)
	assert.Equal(t, "INV-4521", res.KeyValues[0].Value)
	assert.Equal(t, 1, res.KeyValues[0].Page)
	assert.Equal(t, 70.0, res.KeyValues[0].ValueBox.X0)
	assert.Equal(t, 120.0, res.KeyValues[0].ValueBox.X1)

	assert.Equal(t, "Date", res.KeyValues[1].Key)
	assert.Equal(t, "12 Aug 2026", res.KeyValues[1].Value)
	assert.Equal(t, 40.0, res.KeyValues[1].ValueBox.X0)
	assert.Equal(t, 101.0, res.KeyValues[1].ValueBox.X1)
}

func TestDetectKeyValuesCap(t *testing.T) {
	var tokens []Token
	y := 100000.0
	for i := 0; i < MaxKeyValueCandidates+100; i++ {
		tokens = append(tokens, tok("Ref:", 0, y, 25), tok(fmt.Sprintf("R-%d", i), 35, y, 30))
		y -= 20
	}

	res := Reconstruct(tokens, 1)

	assert.Len(t, res.KeyValues, MaxKeyValueCandidates)
}

func TestLooksLikeLabel(t *testing.T) {
	tests := []struct {
		text     string
		expected bool
	}{
		{"Account Number:", true},
		{"Invoice #", true},
		{"Ref", true},
		{"Account", true},
		{"quarterly", false},
		{"", false},
		{"a sentence that is definitely too long to be a field label", false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.expected, looksLikeLabel(tt.text))
		})
	}
}

func TestLooksLikeValue(t *testing.T) {
	tests := []struct {
		text     string
		expected bool
	}{
		{"4521-889", true},
		{"INV-4521", true},
		{"$1,200.50", true},
		{"lowercase", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.expected, looksLikeValue(tt.text))
		})
	}
}

func TestParsePDFRejectsGarbage(t *testing.T) {
	_, err := ParsePDF([]byte("not a pdf"))
	require.Error(t, err)
}
