package service

import (
	"context"
	"fmt"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/doclane/doclane/internal/domain"
	"github.com/doclane/doclane/internal/pagination"
)

// Shared mocks for the service package tests.

type MockTenantRepository struct {
	mock.Mock
}

func (m *MockTenantRepository) Create(ctx context.Context, t *domain.Tenant) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockTenantRepository) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Tenant), args.Error(1)
}

func (m *MockTenantRepository) GetByName(ctx context.Context, name string) (*domain.Tenant, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Tenant), args.Error(1)
}

func (m *MockTenantRepository) List(ctx context.Context) ([]*domain.Tenant, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Tenant), args.Error(1)
}

func (m *MockTenantRepository) UpdateSettings(ctx context.Context, id string, s domain.RAGSettings) error {
	args := m.Called(ctx, id, s)
	return args.Error(0)
}

func (m *MockTenantRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockAPIKeyRepository struct {
	mock.Mock
}

func (m *MockAPIKeyRepository) Create(ctx context.Context, key *domain.APIKey) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockAPIKeyRepository) GetByID(ctx context.Context, id string) (*domain.APIKey, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.APIKey), args.Error(1)
}

func (m *MockAPIKeyRepository) GetByHash(ctx context.Context, hash string) (*domain.APIKey, error) {
	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.APIKey), args.Error(1)
}

func (m *MockAPIKeyRepository) GetByTenantID(ctx context.Context, tenantID string) ([]*domain.APIKey, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.APIKey), args.Error(1)
}

func (m *MockAPIKeyRepository) Revoke(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockAPIKeyRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) Create(ctx context.Context, d *domain.Document) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *MockDocumentRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.Document, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentRepository) GetByTitle(ctx context.Context, tenantID, title string) (*domain.Document, error) {
	args := m.Called(ctx, tenantID, title)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentRepository) ListWithCursor(ctx context.Context, tenantID string, cursor *pagination.Cursor, limit int) (*DocumentPage, error) {
	args := m.Called(ctx, tenantID, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*DocumentPage), args.Error(1)
}

func (m *MockDocumentRepository) SetStatus(ctx context.Context, tenantID, id string, status domain.DocumentStatus, errMessage string) error {
	args := m.Called(ctx, tenantID, id, status, errMessage)
	return args.Error(0)
}

func (m *MockDocumentRepository) MarkSuperseded(ctx context.Context, tenantID, id, contentHash string) error {
	args := m.Called(ctx, tenantID, id, contentHash)
	return args.Error(0)
}

func (m *MockDocumentRepository) SetSourceKey(ctx context.Context, tenantID, id, sourceKey string) error {
	args := m.Called(ctx, tenantID, id, sourceKey)
	return args.Error(0)
}

func (m *MockDocumentRepository) Delete(ctx context.Context, tenantID, id string) error {
	args := m.Called(ctx, tenantID, id)
	return args.Error(0)
}

func (m *MockDocumentRepository) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Document, error) {
	args := m.Called(ctx, cutoff, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Document), args.Error(1)
}

type MockPassageRepository struct {
	mock.Mock
}

func (m *MockPassageRepository) ReplaceForDocument(ctx context.Context, documentID string, passages []*domain.Passage) error {
	args := m.Called(ctx, documentID, passages)
	return args.Error(0)
}

func (m *MockPassageRepository) GetByDocument(ctx context.Context, tenantID, documentID string) ([]*domain.Passage, error) {
	args := m.Called(ctx, tenantID, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Passage), args.Error(1)
}

func (m *MockPassageRepository) CountByDocument(ctx context.Context, documentID string) (int, error) {
	args := m.Called(ctx, documentID)
	return args.Int(0), args.Error(1)
}

func (m *MockPassageRepository) SearchVector(ctx context.Context, tenantID string, embedding []float32, limit int) ([]*SearchHit, error) {
	args := m.Called(ctx, tenantID, embedding, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*SearchHit), args.Error(1)
}

func (m *MockPassageRepository) SearchKeyword(ctx context.Context, tenantID, query string, limit int) ([]*SearchHit, error) {
	args := m.Called(ctx, tenantID, query, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*SearchHit), args.Error(1)
}

type MockEmbeddingClient struct {
	mock.Mock
}

func (m *MockEmbeddingClient) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

func (m *MockEmbeddingClient) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

type MockRerankClient struct {
	mock.Mock
}

func (m *MockRerankClient) ScorePassages(ctx context.Context, query string, passages []string) ([]float64, error) {
	args := m.Called(ctx, query, passages)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float64), args.Error(1)
}

type MockRetrievalLogRepository struct {
	mock.Mock
}

func (m *MockRetrievalLogRepository) CreateRetrievalLog(ctx context.Context, entry RetrievalLogEntry) (string, error) {
	args := m.Called(ctx, entry)
	return args.String(0), args.Error(1)
}

type MockObjectStore struct {
	mock.Mock
}

func (m *MockObjectStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	args := m.Called(ctx, key, data, contentType)
	return args.Error(0)
}

func (m *MockObjectStore) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockObjectStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// mockTxRepositories hands the ambient repositories back as if they were
// transaction-bound.
type mockTxRepositories struct {
	docs     DocumentRepositoryInterface
	passages PassageRepositoryInterface
}

func (r mockTxRepositories) Documents() DocumentRepositoryInterface { return r.docs }
func (r mockTxRepositories) Passages() PassageRepositoryInterface   { return r.passages }

// mockTxRunner runs the callback without a real transaction.
type mockTxRunner struct {
	docs     DocumentRepositoryInterface
	passages PassageRepositoryInterface
	err      error
}

func (r *mockTxRunner) WithTx(ctx context.Context, fn func(repos TxRepositories) error) error {
	if r.err != nil {
		return r.err
	}
	return fn(mockTxRepositories{docs: r.docs, passages: r.passages})
}

// sequenceUUIDGenerator yields "id-1", "id-2", ... for deterministic tests.
type sequenceUUIDGenerator struct {
	n int
}

func (g *sequenceUUIDGenerator) NewString() string {
	g.n++
	return fmt.Sprintf("id-%d", g.n)
}
