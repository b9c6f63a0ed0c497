package extract

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/doclane/doclane/internal/domain"
)

// csvBatchSize groups data rows into sections of manageable size.
const csvBatchSize = 20

// extractCSV renders rows as "header: cell" pairs, batched into sections.
// The first row is treated as headers.
func extractCSV(data []byte) (*Result, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, domain.NewExtractionError("failed to parse csv", err)
	}
	if len(records) == 0 {
		return &Result{}, nil
	}

	headers := records[0]
	dataRows := records[1:]

	var sections []Section
	for i := 0; i < len(dataRows); i += csvBatchSize {
		end := i + csvBatchSize
		if end > len(dataRows) {
			end = len(dataRows)
		}

		var text strings.Builder
		text.WriteString("Headers: " + strings.Join(headers, ", ") + "\n\n")
		for _, row := range dataRows[i:end] {
			for j, cell := range row {
				if j < len(headers) {
					text.WriteString(headers[j] + ": " + cell)
				} else {
					text.WriteString(cell)
				}
				if j < len(row)-1 {
					text.WriteString(", ")
				}
			}
			text.WriteByte('\n')
		}

		sections = append(sections, Section{
			// 1-indexed row numbers, header row excluded
			Title: fmt.Sprintf("Rows %d-%d", i+2, end+1),
			Text:  text.String(),
		})
	}

	return &Result{Sections: sections}, nil
}
