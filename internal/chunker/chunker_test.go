package chunker

import (
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doclane/doclane/internal/extract"
)

func sections(texts ...string) []extract.Section {
	out := make([]extract.Section, len(texts))
	for i, t := range texts {
		out[i] = extract.Section{Text: t}
	}
	return out
}

func TestSplitSectionUnderBudget(t *testing.T) {
	cfg := Config{TargetTokens: 100, OverlapTokens: 10, CharsPerToken: 4}

	chunks := Split(sections("short section"), cfg)

	require.Len(t, chunks, 1)
	assert.Equal(t, "short section", chunks[0].Text)
	assert.Equal(t, 0, chunks[0].Ordinal)
}

func TestSplitSectionExactlyAtBudget(t *testing.T) {
	cfg := Config{TargetTokens: 2, OverlapTokens: 0, CharsPerToken: 4}

	chunks := Split(sections(strings.Repeat("x", 8)), cfg)

	require.Len(t, chunks, 1)
	assert.Equal(t, strings.Repeat("x", 8), chunks[0].Text)
}

func TestSplitSkipsEmptySections(t *testing.T) {
	chunks := Split(sections("", "   \n  ", "kept"), DefaultConfig())

	require.Len(t, chunks, 1)
	assert.Equal(t, "kept", chunks[0].Text)
	assert.Equal(t, 2, chunks[0].SectionIndex)
	assert.Equal(t, 0, chunks[0].Ordinal)
}

func TestSplitPrefersSentenceBoundary(t *testing.T) {
	// budget 40, floor 24: the ". " at index 28 is a valid cut point
	text := strings.Repeat("a", 28) + ". " + strings.Repeat("b", 40)
	cfg := Config{TargetTokens: 10, OverlapTokens: 0, CharsPerToken: 4}

	chunks := Split(sections(text), cfg)

	require.NotEmpty(t, chunks)
	assert.Equal(t, strings.Repeat("a", 28)+".", chunks[0].Text)
}

func TestSplitIgnoresSentenceBoundaryBeforeFloor(t *testing.T) {
	// budget 40, floor 24: the only ". " sits at index 10, too early to use
	text := strings.Repeat("a", 10) + ". " + strings.Repeat("b", 60)
	cfg := Config{TargetTokens: 10, OverlapTokens: 0, CharsPerToken: 4}

	chunks := Split(sections(text), cfg)

	require.NotEmpty(t, chunks)
	assert.Len(t, chunks[0].Text, 40)
}

func TestSplitOverlapWindow(t *testing.T) {
	cfg := Config{TargetTokens: 2, OverlapTokens: 1, CharsPerToken: 2}

	chunks := Split(sections("abcdefgh"), cfg)

	require.Len(t, chunks, 3)
	assert.Equal(t, "abcd", chunks[0].Text)
	assert.Equal(t, "cdef", chunks[1].Text)
	assert.Equal(t, "efgh", chunks[2].Text)
}

func TestSplitClampsOverlapAtBudget(t *testing.T) {
	cfg := Config{TargetTokens: 1, OverlapTokens: 5, CharsPerToken: 4}

	chunks := Split(sections("abcdefgh"), cfg)

	require.NotEmpty(t, chunks)
	assert.Equal(t, "abcd", chunks[0].Text)
	last := chunks[len(chunks)-1].Text
	assert.True(t, strings.HasSuffix(last, "h"))
}

func TestSplitCarriesTitleAndOrdinals(t *testing.T) {
	secs := []extract.Section{
		{Title: "Intro", Text: strings.Repeat("intro text. ", 20)},
		{Title: "Details", Text: "short"},
	}
	cfg := Config{TargetTokens: 20, OverlapTokens: 2, CharsPerToken: 4}

	chunks := Split(secs, cfg)

	require.Greater(t, len(chunks), 2)
	for i, c := range chunks {
		assert.Equal(t, i, c.Ordinal)
		if c.SectionIndex == 0 {
			assert.Equal(t, "Intro", c.Title)
		} else {
			assert.Equal(t, "Details", c.Title)
		}
	}
	assert.Equal(t, "Details", chunks[len(chunks)-1].Title)
	assert.Equal(t, 1, chunks[len(chunks)-1].SectionIndex)
}

func TestSplitCoversAllContent(t *testing.T) {
	// no non-whitespace rune may be dropped by windowing
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 50)
	cfg := Config{TargetTokens: 30, OverlapTokens: 5, CharsPerToken: 4}

	chunks := Split(sections(text), cfg)
	require.Greater(t, len(chunks), 1)

	var joined strings.Builder
	for _, c := range chunks {
		joined.WriteString(c.Text)
	}
	assert.True(t, containsInOrder(joined.String(), text),
		"chunk concatenation must cover all non-whitespace content in order")
}

// containsInOrder reports whether every non-whitespace rune of want
// appears in got as an ordered subsequence.
func containsInOrder(got, want string) bool {
	gotRunes := []rune(got)
	j := 0
	for _, r := range want {
		if unicode.IsSpace(r) {
			continue
		}
		for j < len(gotRunes) && gotRunes[j] != r {
			j++
		}
		if j >= len(gotRunes) {
			return false
		}
		j++
	}
	return true
}
