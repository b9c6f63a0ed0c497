package layout

import (
	"bytes"
	"fmt"
	"strings"

	pdflib "github.com/ledongthuc/pdf"

	"github.com/doclane/doclane/internal/domain"
)

// ParsePDF extracts positioned text fragments from raw PDF bytes and
// reconstructs them into ordered lines with key/value candidates.
func ParsePDF(data []byte) (*Result, error) {
	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, domain.NewExtractionError("failed to open pdf", err)
	}

	pageCount := reader.NumPage()
	var tokens []Token
	for i := 1; i <= pageCount; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageTokens, err := extractPageTokens(page, i)
		if err != nil {
			return nil, domain.NewExtractionError(fmt.Sprintf("failed to read pdf page %d", i), err)
		}
		tokens = append(tokens, pageTokens...)
	}

	res := Reconstruct(tokens, pageCount)
	if strings.TrimSpace(res.Text) == "" {
		return nil, domain.ErrNoExtractableText
	}
	return res, nil
}

// extractPageTokens pulls one page's positioned fragments. Content stream
// parsing can panic on malformed PDFs, so the panic is converted into an
// error here.
func extractPageTokens(page pdflib.Page, pageNum int) (tokens []Token, err error) {
	defer func() {
		if r := recover(); r != nil {
			tokens = nil
			err = fmt.Errorf("malformed content stream: %v", r)
		}
	}()

	content := page.Content()
	for _, t := range content.Text {
		if t.S == "" {
			continue
		}
		tokens = append(tokens, Token{
			Text:     t.S,
			Page:     pageNum,
			X:        t.X,
			Y:        t.Y,
			Width:    t.W,
			FontSize: t.FontSize,
		})
	}
	return tokens, nil
}
