// Package extract converts raw document bytes into titled plain-text
// sections, dispatching on file extension. PDFs additionally carry the
// layout reconstruction (ordered lines, boxes, key/value candidates) so
// passage metadata can point back at page regions.
package extract

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/doclane/doclane/internal/domain"
	"github.com/doclane/doclane/internal/layout"
)

// Section is a titled run of plain text in original document order.
// Page is set only for PDF sections.
type Section struct {
	Title string
	Text  string
	Page  int
}

// Result is the extractor output. Layout is non-nil only for PDFs, where
// Sections are per-page and section index corresponds to page order.
type Result struct {
	Sections []Section
	Layout   *layout.Result
}

// SupportedExtensions lists file extensions this service can ingest.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// IsSupported checks if a filename's extension can be ingested.
func IsSupported(filename string) bool {
	return SupportedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// Extract parses raw file bytes by extension into titled sections.
func Extract(data []byte, filename string) (*Result, error) {
	var (
		res *Result
		err error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt":
		res, err = extractText(data)
	case ".md", ".markdown":
		res, err = extractMarkdown(data)
	case ".csv":
		res, err = extractCSV(data)
	case ".html", ".htm":
		res, err = extractHTML(data)
	case ".pdf":
		res, err = extractPDF(data)
	case ".docx":
		res, err = extractDOCX(data)
	default:
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation,
			fmt.Sprintf("unsupported file extension: %s", filepath.Ext(filename)), domain.ErrUnsupportedFileType)
	}
	if err != nil {
		return nil, err
	}

	if !hasContent(res) {
		return nil, domain.ErrNoExtractableText
	}
	return res, nil
}

func hasContent(res *Result) bool {
	for _, s := range res.Sections {
		if strings.TrimSpace(s.Text) != "" {
			return true
		}
	}
	return false
}

// sectionBuilder accumulates flat sections while walking a document's
// heading structure. Body text before the first heading lands in an
// untitled leading section.
type sectionBuilder struct {
	sections []Section
	title    string
	body     strings.Builder
}

func (b *sectionBuilder) heading(title string) {
	b.flush()
	b.title = title
}

func (b *sectionBuilder) text(t string) {
	t = strings.TrimSpace(t)
	if t == "" {
		return
	}
	if b.body.Len() > 0 {
		b.body.WriteString("\n\n")
	}
	b.body.WriteString(t)
}

func (b *sectionBuilder) flush() {
	body := strings.TrimSpace(b.body.String())
	if body != "" || b.title != "" {
		b.sections = append(b.sections, Section{Title: b.title, Text: body})
	}
	b.title = ""
	b.body.Reset()
}

func (b *sectionBuilder) result() *Result {
	b.flush()
	return &Result{Sections: b.sections}
}
