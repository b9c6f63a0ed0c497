package extract

import (
	"fmt"
	"strings"

	"github.com/doclane/doclane/internal/layout"
)

// extractPDF reconstructs positioned fragments into ordered lines and
// emits one section per page, so section index maps back to page order
// for metadata propagation.
func extractPDF(data []byte) (*Result, error) {
	lay, err := layout.ParsePDF(data)
	if err != nil {
		return nil, err
	}

	var sections []Section
	var sb strings.Builder
	page := 0
	for _, ln := range lay.Lines {
		if ln.Page != page {
			if sb.Len() > 0 {
				sections = append(sections, Section{
					Title: fmt.Sprintf("Page %d", page),
					Text:  sb.String(),
					Page:  page,
				})
				sb.Reset()
			}
			page = ln.Page
		}
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(ln.Text)
	}
	if sb.Len() > 0 {
		sections = append(sections, Section{
			Title: fmt.Sprintf("Page %d", page),
			Text:  sb.String(),
			Page:  page,
		})
	}

	return &Result{Sections: sections, Layout: lay}, nil
}
