package domain

import (
	"fmt"
	"time"
)

// Tenant represents an isolated customer workspace. Every document, passage
// and retrieval call is scoped to exactly one tenant.
type Tenant struct {
	ID        string
	Name      string
	Settings  RAGSettings
	CreatedAt time.Time
}

// RAGSettings holds the per-tenant retrieval tunables. Zero values are
// replaced by the defaults below when loaded.
type RAGSettings struct {
	RetrieverTopK   int
	Overfetch       int
	HybridEnabled   bool
	RerankEnabled   bool
	RerankThreshold float64
	DocCap          int
}

// Default retrieval tunables applied when a tenant row carries zero values.
const (
	DefaultRetrieverTopK   = 5
	DefaultOverfetch       = 50
	DefaultRerankThreshold = 0.6
	DefaultDocCap          = 2
)

// DefaultRAGSettings returns the settings applied to new tenants.
func DefaultRAGSettings() RAGSettings {
	return RAGSettings{
		RetrieverTopK:   DefaultRetrieverTopK,
		Overfetch:       DefaultOverfetch,
		HybridEnabled:   true,
		RerankEnabled:   false,
		RerankThreshold: DefaultRerankThreshold,
		DocCap:          DefaultDocCap,
	}
}

// Normalize fills zero-valued tunables with defaults.
func (s RAGSettings) Normalize() RAGSettings {
	if s.RetrieverTopK <= 0 {
		s.RetrieverTopK = DefaultRetrieverTopK
	}
	if s.Overfetch <= 0 {
		s.Overfetch = DefaultOverfetch
	}
	if s.RerankThreshold <= 0 {
		s.RerankThreshold = DefaultRerankThreshold
	}
	if s.DocCap <= 0 {
		s.DocCap = DefaultDocCap
	}
	return s
}

// NewTenant creates a new Tenant instance with default settings.
func NewTenant(id, name string, createdAt time.Time) *Tenant {
	return &Tenant{
		ID:        id,
		Name:      name,
		Settings:  DefaultRAGSettings(),
		CreatedAt: createdAt,
	}
}

// ValidateTenant validates a Tenant instance
func ValidateTenant(t *Tenant) error {
	if t == nil {
		return fmt.Errorf("tenant cannot be nil")
	}

	if t.ID == "" {
		return fmt.Errorf("tenant ID is required")
	}

	if t.Name == "" {
		return fmt.Errorf("tenant Name is required")
	}

	return nil
}
