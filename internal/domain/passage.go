package domain

import (
	"fmt"
	"time"
)

// BoundingBox is an axis-aligned rectangle in page coordinates.
type BoundingBox struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// Union expands the box to cover other.
func (b BoundingBox) Union(other BoundingBox) BoundingBox {
	if b.X0 == 0 && b.Y0 == 0 && b.X1 == 0 && b.Y1 == 0 {
		return other
	}
	if other.X0 < b.X0 {
		b.X0 = other.X0
	}
	if other.Y0 < b.Y0 {
		b.Y0 = other.Y0
	}
	if other.X1 > b.X1 {
		b.X1 = other.X1
	}
	if other.Y1 > b.Y1 {
		b.Y1 = other.Y1
	}
	return b
}

// KeyValue is a (label, value) pair detected in a document's layout,
// promoted from the layout parser into passage metadata.
type KeyValue struct {
	Key      string      `json:"key"`
	Value    string      `json:"value"`
	Page     int         `json:"page"`
	KeyBox   BoundingBox `json:"key_box"`
	ValueBox BoundingBox `json:"value_box"`
}

// LineBox carries the reconstructed text and bounding box of one layout line.
type LineBox struct {
	Text string      `json:"text"`
	Page int         `json:"page"`
	Box  BoundingBox `json:"box"`
}

// PassageMetadata carries layout provenance for passages extracted from
// positioned formats (PDF). It is stored as jsonb and returned with
// citations so the UI can highlight source regions.
type PassageMetadata struct {
	PageStart int         `json:"page_start,omitempty"`
	PageEnd   int         `json:"page_end,omitempty"`
	Box       BoundingBox `json:"box,omitempty"`
	KeyValues []KeyValue  `json:"key_values,omitempty"`
	Lines     []LineBox   `json:"lines,omitempty"`
}

// Passage is a bounded slice of a document's text stored for retrieval,
// with its own embedding. Ordinals are unique within a document and
// preserve original reading order.
type Passage struct {
	ID           string
	DocumentID   string
	TenantID     string
	Ordinal      int
	Title        string
	Content      string
	Embedding    []float32
	AllowedRoles []string
	Metadata     *PassageMetadata
	CreatedAt    time.Time
}

// ValidatePassage validates a Passage instance
func ValidatePassage(p *Passage) error {
	if p == nil {
		return fmt.Errorf("passage cannot be nil")
	}

	if p.DocumentID == "" {
		return fmt.Errorf("passage DocumentID is required")
	}

	if p.TenantID == "" {
		return fmt.Errorf("passage TenantID is required")
	}

	if p.Ordinal < 0 {
		return fmt.Errorf("passage Ordinal cannot be negative")
	}

	if p.Content == "" {
		return fmt.Errorf("passage Content is required")
	}

	return nil
}

// ValidatePassageBatch checks that a document's passages form a dense,
// uniquely ordered sequence with constant embedding dimensionality. A
// failure here fails the whole ingestion rather than indexing partially.
func ValidatePassageBatch(passages []*Passage) error {
	if len(passages) == 0 {
		return nil
	}

	dims := len(passages[0].Embedding)
	seen := make(map[int]bool, len(passages))
	for _, p := range passages {
		if err := ValidatePassage(p); err != nil {
			return err
		}
		if seen[p.Ordinal] {
			return fmt.Errorf("duplicate passage ordinal %d", p.Ordinal)
		}
		seen[p.Ordinal] = true
		if len(p.Embedding) != dims {
			return fmt.Errorf("inconsistent embedding dimensionality: %d vs %d", len(p.Embedding), dims)
		}
	}
	for i := range passages {
		if !seen[i] {
			return fmt.Errorf("missing passage ordinal %d", i)
		}
	}
	return nil
}
