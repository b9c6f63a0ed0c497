package domain

import (
	"fmt"
	"time"
)

// DocumentStatus represents the ingestion lifecycle state of a document
type DocumentStatus string

const (
	DocumentStatusPending    DocumentStatus = "pending"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusReady      DocumentStatus = "ready"
	DocumentStatusError      DocumentStatus = "error"
)

// Document represents an uploaded source file and its indexing state.
// Re-ingesting a document with the same title bumps Version and replaces
// all of its passages; an unchanged ContentHash short-circuits the pipeline.
type Document struct {
	ID          string
	TenantID    string
	Title       string
	Status      DocumentStatus
	ContentHash string
	Version     int64
	Error       string
	SourceKey   string // object key of the archived raw upload, empty if not archived
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewDocument creates a pending Document for a fresh upload.
func NewDocument(id, tenantID, title, contentHash string, createdAt time.Time) *Document {
	return &Document{
		ID:          id,
		TenantID:    tenantID,
		Title:       title,
		Status:      DocumentStatusPending,
		ContentHash: contentHash,
		Version:     1,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
}

// ValidateDocument validates a Document instance
func ValidateDocument(d *Document) error {
	if d == nil {
		return fmt.Errorf("document cannot be nil")
	}

	if d.ID == "" {
		return fmt.Errorf("document ID is required")
	}

	if d.TenantID == "" {
		return fmt.Errorf("document TenantID is required")
	}

	if d.Title == "" {
		return fmt.Errorf("document Title is required")
	}

	if d.Version <= 0 {
		return fmt.Errorf("document Version must be greater than 0")
	}

	if !isValidDocumentStatus(d.Status) {
		return fmt.Errorf("document Status is invalid: %s", d.Status)
	}

	return nil
}

// isValidDocumentStatus checks if a DocumentStatus is valid
func isValidDocumentStatus(s DocumentStatus) bool {
	switch s {
	case DocumentStatusPending, DocumentStatusProcessing,
		DocumentStatusReady, DocumentStatusError:
		return true
	}
	return false
}
