package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/doclane/doclane/internal/chunker"
	"github.com/doclane/doclane/internal/domain"
)

type ingestMocks struct {
	docs     *MockDocumentRepository
	passages *MockPassageRepository
	embedder *MockEmbeddingClient
	store    *MockObjectStore
}

func newIngestService(withStore bool) (*IngestService, *ingestMocks) {
	m := &ingestMocks{
		docs:     new(MockDocumentRepository),
		passages: new(MockPassageRepository),
		embedder: new(MockEmbeddingClient),
		store:    new(MockObjectStore),
	}
	tx := &mockTxRunner{docs: m.docs, passages: m.passages}

	var store ObjectStore
	if withStore {
		store = m.store
	}
	svc := NewIngestService(m.docs, m.passages, tx, m.embedder, store, &sequenceUUIDGenerator{}, chunker.DefaultConfig())
	return svc, m
}

var testUpload = []byte("Paragraph one.\n\nParagraph two.")

func expectPipelineSuccess(m *ingestMocks) {
	m.embedder.On("GenerateEmbeddings", mock.Anything, []string{"Paragraph one.", "Paragraph two."}).
		Return([][]float32{{0.1, 0.2}, {0.3, 0.4}}, nil)
	m.passages.On("ReplaceForDocument", mock.Anything, mock.Anything, mock.MatchedBy(func(ps []*domain.Passage) bool {
		return len(ps) == 2 && ps[0].Ordinal == 0 && ps[1].Ordinal == 1
	})).Return(nil)
}

func TestIngestNewDocument(t *testing.T) {
	svc, m := newIngestService(false)

	m.docs.On("GetByTitle", mock.Anything, "t1", "notes.txt").Return(nil, domain.ErrDocumentNotFound)
	m.docs.On("Create", mock.Anything, mock.MatchedBy(func(d *domain.Document) bool {
		return d.TenantID == "t1" && d.Title == "notes.txt" &&
			d.Status == domain.DocumentStatusPending && d.ContentHash == contentHash(testUpload)
	})).Return(nil)
	m.docs.On("SetStatus", mock.Anything, "t1", mock.Anything, domain.DocumentStatusProcessing, "").Return(nil)
	m.docs.On("SetStatus", mock.Anything, "t1", mock.Anything, domain.DocumentStatusReady, "").Return(nil)
	expectPipelineSuccess(m)

	ready := &domain.Document{ID: "id-1", TenantID: "t1", Title: "notes.txt", Status: domain.DocumentStatusReady, Version: 1}
	m.docs.On("GetByID", mock.Anything, "t1", mock.Anything).Return(ready, nil)

	doc, err := svc.Ingest(context.Background(), "t1", "notes.txt", testUpload, []string{"finance"})
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentStatusReady, doc.Status)

	m.docs.AssertExpectations(t)
	m.passages.AssertExpectations(t)
}

func TestIngestUnchangedContentShortCircuits(t *testing.T) {
	svc, m := newIngestService(false)

	existing := &domain.Document{
		ID: "d1", TenantID: "t1", Title: "notes.txt",
		Status: domain.DocumentStatusReady, ContentHash: contentHash(testUpload), Version: 3,
	}
	m.docs.On("GetByTitle", mock.Anything, "t1", "notes.txt").Return(existing, nil)

	doc, err := svc.Ingest(context.Background(), "t1", "notes.txt", testUpload, nil)
	require.NoError(t, err)

	assert.Same(t, existing, doc)
	assert.Equal(t, int64(3), doc.Version)
	m.embedder.AssertNotCalled(t, "GenerateEmbeddings", mock.Anything, mock.Anything)
	m.docs.AssertNotCalled(t, "MarkSuperseded", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestIngestChangedContentSupersedes(t *testing.T) {
	svc, m := newIngestService(false)

	existing := &domain.Document{
		ID: "d1", TenantID: "t1", Title: "notes.txt",
		Status: domain.DocumentStatusReady, ContentHash: "stale-hash", Version: 1,
	}
	superseded := &domain.Document{
		ID: "d1", TenantID: "t1", Title: "notes.txt",
		Status: domain.DocumentStatusPending, ContentHash: contentHash(testUpload), Version: 2,
	}

	m.docs.On("GetByTitle", mock.Anything, "t1", "notes.txt").Return(existing, nil)
	m.docs.On("MarkSuperseded", mock.Anything, "t1", "d1", contentHash(testUpload)).Return(nil)
	m.docs.On("GetByID", mock.Anything, "t1", "d1").Return(superseded, nil)
	m.docs.On("SetStatus", mock.Anything, "t1", "d1", domain.DocumentStatusProcessing, "").Return(nil)
	m.docs.On("SetStatus", mock.Anything, "t1", "d1", domain.DocumentStatusReady, "").Return(nil)
	expectPipelineSuccess(m)

	doc, err := svc.Ingest(context.Background(), "t1", "notes.txt", testUpload, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), doc.Version)

	m.docs.AssertExpectations(t)
}

func TestIngestEmbeddingFailureMarksError(t *testing.T) {
	svc, m := newIngestService(false)

	m.docs.On("GetByTitle", mock.Anything, "t1", "notes.txt").Return(nil, domain.ErrDocumentNotFound)
	m.docs.On("Create", mock.Anything, mock.Anything).Return(nil)
	m.docs.On("SetStatus", mock.Anything, "t1", mock.Anything, domain.DocumentStatusProcessing, "").Return(nil)
	m.docs.On("SetStatus", mock.Anything, "t1", mock.Anything, domain.DocumentStatusError, mock.MatchedBy(func(msg string) bool {
		return strings.Contains(msg, "quota")
	})).Return(nil)

	m.embedder.On("GenerateEmbeddings", mock.Anything, mock.Anything).
		Return(nil, domain.NewEmbeddingError("quota exceeded", errors.New("429")))

	_, err := svc.Ingest(context.Background(), "t1", "notes.txt", testUpload, nil)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeEmbedding))

	m.docs.AssertExpectations(t)
	m.passages.AssertNotCalled(t, "ReplaceForDocument", mock.Anything, mock.Anything, mock.Anything)
}

func TestIngestRejectsUnsupportedType(t *testing.T) {
	svc, m := newIngestService(false)

	_, err := svc.Ingest(context.Background(), "t1", "binary.exe", []byte("MZ"), nil)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeValidation))
	m.docs.AssertNotCalled(t, "GetByTitle", mock.Anything, mock.Anything, mock.Anything)
}

func TestIngestRejectsEmptyFile(t *testing.T) {
	svc, _ := newIngestService(false)

	_, err := svc.Ingest(context.Background(), "t1", "notes.txt", nil, nil)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeValidation))
}

func TestIngestArchivesUpload(t *testing.T) {
	svc, m := newIngestService(true)

	m.docs.On("GetByTitle", mock.Anything, "t1", "notes.txt").Return(nil, domain.ErrDocumentNotFound)
	m.docs.On("Create", mock.Anything, mock.Anything).Return(nil)
	m.docs.On("SetStatus", mock.Anything, "t1", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	m.docs.On("GetByID", mock.Anything, "t1", mock.Anything).
		Return(&domain.Document{ID: "id-1", TenantID: "t1", Status: domain.DocumentStatusReady}, nil)
	expectPipelineSuccess(m)

	m.store.On("Put", mock.Anything, mock.MatchedBy(func(key string) bool {
		return strings.HasPrefix(key, "t1/") && strings.HasSuffix(key, "/notes.txt")
	}), testUpload, "text/plain").Return(nil)
	m.docs.On("SetSourceKey", mock.Anything, "t1", mock.Anything, mock.Anything).Return(nil)

	_, err := svc.Ingest(context.Background(), "t1", "notes.txt", testUpload, nil)
	require.NoError(t, err)
	m.store.AssertExpectations(t)
}

func TestIngestArchiveFailureDoesNotFailIngestion(t *testing.T) {
	svc, m := newIngestService(true)

	m.docs.On("GetByTitle", mock.Anything, "t1", "notes.txt").Return(nil, domain.ErrDocumentNotFound)
	m.docs.On("Create", mock.Anything, mock.Anything).Return(nil)
	m.docs.On("SetStatus", mock.Anything, "t1", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	m.docs.On("GetByID", mock.Anything, "t1", mock.Anything).
		Return(&domain.Document{ID: "id-1", TenantID: "t1", Status: domain.DocumentStatusReady}, nil)
	expectPipelineSuccess(m)

	m.store.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("bucket unavailable"))

	_, err := svc.Ingest(context.Background(), "t1", "notes.txt", testUpload, nil)
	require.NoError(t, err)
	m.docs.AssertNotCalled(t, "SetSourceKey", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReprocessFromArchivedSource(t *testing.T) {
	svc, m := newIngestService(true)

	archived := &domain.Document{
		ID: "d1", TenantID: "t1", Title: "notes.txt",
		Status: domain.DocumentStatusReady, SourceKey: "t1/d1/v1/notes.txt", Version: 1,
	}
	m.docs.On("GetByID", mock.Anything, "t1", "d1").Return(archived, nil)
	m.store.On("Get", mock.Anything, "t1/d1/v1/notes.txt").Return(testUpload, nil)
	m.docs.On("MarkSuperseded", mock.Anything, "t1", "d1", contentHash(testUpload)).Return(nil)
	m.passages.On("GetByDocument", mock.Anything, "t1", "d1").Return([]*domain.Passage{
		{ID: "p1", AllowedRoles: []string{"finance"}},
	}, nil)
	m.docs.On("SetStatus", mock.Anything, "t1", "d1", mock.Anything, mock.Anything).Return(nil)
	m.embedder.On("GenerateEmbeddings", mock.Anything, mock.Anything).
		Return([][]float32{{0.1, 0.2}, {0.3, 0.4}}, nil)
	m.passages.On("ReplaceForDocument", mock.Anything, "d1", mock.MatchedBy(func(ps []*domain.Passage) bool {
		return len(ps) == 2 && ps[0].AllowedRoles[0] == "finance"
	})).Return(nil)

	_, err := svc.Reprocess(context.Background(), "t1", "d1")
	require.NoError(t, err)
	m.passages.AssertExpectations(t)
}

func TestReprocessWithoutSourceKey(t *testing.T) {
	svc, m := newIngestService(true)

	m.docs.On("GetByID", mock.Anything, "t1", "d1").
		Return(&domain.Document{ID: "d1", TenantID: "t1"}, nil)

	_, err := svc.Reprocess(context.Background(), "t1", "d1")
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeInvalidOperation))
}

func TestDeleteDocumentRemovesPassagesAndArchive(t *testing.T) {
	svc, m := newIngestService(true)

	doc := &domain.Document{ID: "d1", TenantID: "t1", SourceKey: "t1/d1/v1/notes.txt"}
	m.docs.On("GetByID", mock.Anything, "t1", "d1").Return(doc, nil)
	m.passages.On("ReplaceForDocument", mock.Anything, "d1", ([]*domain.Passage)(nil)).Return(nil)
	m.docs.On("Delete", mock.Anything, "t1", "d1").Return(nil)
	m.store.On("Delete", mock.Anything, "t1/d1/v1/notes.txt").Return(nil)

	require.NoError(t, svc.DeleteDocument(context.Background(), "t1", "d1"))
	m.store.AssertExpectations(t)
	m.docs.AssertExpectations(t)
}
