// Package service implements the ingestion pipeline and the hybrid
// retrieval engine on top of narrow repository and model-client
// interfaces.
package service

import (
	"context"
	"time"

	"github.com/doclane/doclane/internal/domain"
	"github.com/doclane/doclane/internal/pagination"
)

// UUIDGenerator abstracts id generation for deterministic tests.
type UUIDGenerator interface {
	NewString() string
}

// TenantRepositoryInterface defines tenant persistence operations.
type TenantRepositoryInterface interface {
	Create(ctx context.Context, t *domain.Tenant) error
	GetByID(ctx context.Context, id string) (*domain.Tenant, error)
	GetByName(ctx context.Context, name string) (*domain.Tenant, error)
	List(ctx context.Context) ([]*domain.Tenant, error)
	UpdateSettings(ctx context.Context, id string, s domain.RAGSettings) error
	Delete(ctx context.Context, id string) error
}

// APIKeyRepositoryInterface defines api key persistence operations.
type APIKeyRepositoryInterface interface {
	Create(ctx context.Context, key *domain.APIKey) error
	GetByID(ctx context.Context, id string) (*domain.APIKey, error)
	GetByHash(ctx context.Context, hash string) (*domain.APIKey, error)
	GetByTenantID(ctx context.Context, tenantID string) ([]*domain.APIKey, error)
	Revoke(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// DocumentRepositoryInterface defines document persistence operations.
type DocumentRepositoryInterface interface {
	Create(ctx context.Context, d *domain.Document) error
	GetByID(ctx context.Context, tenantID, id string) (*domain.Document, error)
	GetByTitle(ctx context.Context, tenantID, title string) (*domain.Document, error)
	ListWithCursor(ctx context.Context, tenantID string, cursor *pagination.Cursor, limit int) (*DocumentPage, error)
	SetStatus(ctx context.Context, tenantID, id string, status domain.DocumentStatus, errMessage string) error
	MarkSuperseded(ctx context.Context, tenantID, id, contentHash string) error
	SetSourceKey(ctx context.Context, tenantID, id, sourceKey string) error
	Delete(ctx context.Context, tenantID, id string) error
	ListStale(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Document, error)
}

// DocumentPage is one page of a cursor-paginated document listing.
type DocumentPage struct {
	Items      []*domain.Document
	NextCursor string
	HasMore    bool
}

// PassageRepositoryInterface defines passage persistence and search.
type PassageRepositoryInterface interface {
	ReplaceForDocument(ctx context.Context, documentID string, passages []*domain.Passage) error
	GetByDocument(ctx context.Context, tenantID, documentID string) ([]*domain.Passage, error)
	CountByDocument(ctx context.Context, documentID string) (int, error)
	SearchVector(ctx context.Context, tenantID string, embedding []float32, limit int) ([]*SearchHit, error)
	SearchKeyword(ctx context.Context, tenantID, query string, limit int) ([]*SearchHit, error)
}

// TxRepositories exposes repositories bound to one transaction.
type TxRepositories interface {
	Documents() DocumentRepositoryInterface
	Passages() PassageRepositoryInterface
}

// TxRunnerInterface runs a function within a database transaction.
type TxRunnerInterface interface {
	WithTx(ctx context.Context, fn func(repos TxRepositories) error) error
}

// EmbeddingClient converts texts into fixed-length vectors.
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// RerankClient scores passages for relevance to a query.
type RerankClient interface {
	ScorePassages(ctx context.Context, query string, passages []string) ([]float64, error)
}

// ObjectStore archives raw uploads for later re-processing.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// SearchHit is one row returned by vector or keyword search, before
// normalization and fusion.
type SearchHit struct {
	PassageID  string
	DocumentID string
	Ordinal    int
	Title      string
	Content    string
	Score      float64
	Metadata   *domain.PassageMetadata
}

// RetrievalLogEntry records one retrieval call for evaluation.
type RetrievalLogEntry struct {
	TenantID    string
	Query       string
	K           int
	ResultCount int
	CacheHit    bool
	VectorMs    int64
	KeywordMs   int64
	RerankMs    int64
	DurationMs  int64
}

// RetrievalLogRepositoryInterface stores retrieval logs.
type RetrievalLogRepositoryInterface interface {
	CreateRetrievalLog(ctx context.Context, entry RetrievalLogEntry) (string, error)
}
