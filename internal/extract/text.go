package extract

import (
	"bufio"
	"bytes"
	"strings"

	"github.com/doclane/doclane/internal/domain"
)

// extractText splits plain text on blank lines; each paragraph becomes an
// untitled section.
func extractText(data []byte) (*Result, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var sections []Section
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			sections = append(sections, Section{Text: current.String()})
			current.Reset()
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		if current.Len() > 0 {
			current.WriteByte('\n')
		}
		current.WriteString(line)
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, domain.NewExtractionError("failed to read text", err)
	}
	return &Result{Sections: sections}, nil
}
