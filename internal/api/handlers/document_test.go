package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/doclane/doclane/internal/api/middleware"
	"github.com/doclane/doclane/internal/domain"
	"github.com/doclane/doclane/internal/service"
)

type MockIngestionService struct {
	mock.Mock
}

func (m *MockIngestionService) IngestAsync(ctx context.Context, tenantID, filename string, data []byte, allowedRoles []string) (*domain.Document, error) {
	args := m.Called(ctx, tenantID, filename, data, allowedRoles)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockIngestionService) Reprocess(ctx context.Context, tenantID, documentID string) (*domain.Document, error) {
	args := m.Called(ctx, tenantID, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockIngestionService) GetDocument(ctx context.Context, tenantID, id string) (*domain.Document, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockIngestionService) ListDocuments(ctx context.Context, tenantID, cursor string, limit int) (*service.DocumentPage, error) {
	args := m.Called(ctx, tenantID, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DocumentPage), args.Error(1)
}

func (m *MockIngestionService) DeleteDocument(ctx context.Context, tenantID, id string) error {
	args := m.Called(ctx, tenantID, id)
	return args.Error(0)
}

func testDoc(status domain.DocumentStatus) *domain.Document {
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	return &domain.Document{
		ID:          "doc-1",
		TenantID:    "t1",
		Title:       "notes.txt",
		Status:      status,
		ContentHash: "abc123",
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func multipartUpload(t *testing.T, filename, content, roles string) (*bytes.Buffer, string) {
	t.Helper()
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	if roles != "" {
		require.NoError(t, writer.WriteField("allowed_roles", roles))
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func withTenant(req *http.Request, tenantID string) *http.Request {
	return req.WithContext(context.WithValue(req.Context(), middleware.TenantIDKey, tenantID))
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestDocumentUpload(t *testing.T) {
	svc := new(MockIngestionService)
	handler := NewDocumentHandler(svc)

	svc.On("IngestAsync", mock.Anything, "t1", "notes.txt", []byte("hello world"), []string{"finance", "ops"}).
		Return(testDoc(domain.DocumentStatusPending), nil)

	body, contentType := multipartUpload(t, "notes.txt", "hello world", "finance, ops")
	req := httptest.NewRequest(http.MethodPost, "/documents", body)
	req.Header.Set("Content-Type", contentType)
	req = withTenant(req, "t1")

	rec := httptest.NewRecorder()
	handler.Upload(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp struct {
		Data DocumentResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "doc-1", resp.Data.ID)
	assert.Equal(t, "pending", resp.Data.Status)
	svc.AssertExpectations(t)
}

func TestDocumentUploadUnchangedReturnsOK(t *testing.T) {
	svc := new(MockIngestionService)
	handler := NewDocumentHandler(svc)

	svc.On("IngestAsync", mock.Anything, "t1", "notes.txt", mock.Anything, mock.Anything).
		Return(testDoc(domain.DocumentStatusReady), nil)

	body, contentType := multipartUpload(t, "notes.txt", "hello world", "")
	req := httptest.NewRequest(http.MethodPost, "/documents", body)
	req.Header.Set("Content-Type", contentType)
	req = withTenant(req, "t1")

	rec := httptest.NewRecorder()
	handler.Upload(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDocumentUploadRejectsUnsupportedType(t *testing.T) {
	svc := new(MockIngestionService)
	handler := NewDocumentHandler(svc)

	body, contentType := multipartUpload(t, "binary.exe", "MZ", "")
	req := httptest.NewRequest(http.MethodPost, "/documents", body)
	req.Header.Set("Content-Type", contentType)
	req = withTenant(req, "t1")

	rec := httptest.NewRecorder()
	handler.Upload(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "IngestAsync", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDocumentUploadRequiresAuth(t *testing.T) {
	handler := NewDocumentHandler(new(MockIngestionService))

	body, contentType := multipartUpload(t, "notes.txt", "hello", "")
	req := httptest.NewRequest(http.MethodPost, "/documents", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	handler.Upload(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDocumentGet(t *testing.T) {
	svc := new(MockIngestionService)
	handler := NewDocumentHandler(svc)

	doc := testDoc(domain.DocumentStatusError)
	doc.Error = "embedding quota exceeded"
	svc.On("GetDocument", mock.Anything, "t1", "doc-1").Return(doc, nil)

	req := httptest.NewRequest(http.MethodGet, "/documents/doc-1", nil)
	req = withTenant(req, "t1")
	req = withURLParam(req, "id", "doc-1")

	rec := httptest.NewRecorder()
	handler.Get(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data DocumentResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "error", resp.Data.Status)
	assert.Equal(t, "embedding quota exceeded", resp.Data.Error)
}

func TestDocumentGetNotFound(t *testing.T) {
	svc := new(MockIngestionService)
	handler := NewDocumentHandler(svc)

	svc.On("GetDocument", mock.Anything, "t1", "missing").Return(nil, domain.ErrDocumentNotFound)

	req := httptest.NewRequest(http.MethodGet, "/documents/missing", nil)
	req = withTenant(req, "t1")
	req = withURLParam(req, "id", "missing")

	rec := httptest.NewRecorder()
	handler.Get(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDocumentList(t *testing.T) {
	svc := new(MockIngestionService)
	handler := NewDocumentHandler(svc)

	svc.On("ListDocuments", mock.Anything, "t1", "", 2).Return(&service.DocumentPage{
		Items:      []*domain.Document{testDoc(domain.DocumentStatusReady), testDoc(domain.DocumentStatusProcessing)},
		NextCursor: "next-cursor",
		HasMore:    true,
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/documents?limit=2", nil)
	req = withTenant(req, "t1")

	rec := httptest.NewRecorder()
	handler.List(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data DocumentListResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Data.Items, 2)
	assert.Equal(t, "next-cursor", resp.Data.Cursor)
	assert.True(t, resp.Data.HasMore)
}

func TestDocumentDelete(t *testing.T) {
	svc := new(MockIngestionService)
	handler := NewDocumentHandler(svc)

	svc.On("DeleteDocument", mock.Anything, "t1", "doc-1").Return(nil)

	req := httptest.NewRequest(http.MethodDelete, "/documents/doc-1", nil)
	req = withTenant(req, "t1")
	req = withURLParam(req, "id", "doc-1")

	rec := httptest.NewRecorder()
	handler.Delete(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	svc.AssertExpectations(t)
}

func TestDocumentReprocess(t *testing.T) {
	svc := new(MockIngestionService)
	handler := NewDocumentHandler(svc)

	svc.On("Reprocess", mock.Anything, "t1", "doc-1").Return(testDoc(domain.DocumentStatusReady), nil)

	req := httptest.NewRequest(http.MethodPost, "/documents/doc-1/reprocess", nil)
	req = withTenant(req, "t1")
	req = withURLParam(req, "id", "doc-1")

	rec := httptest.NewRecorder()
	handler.Reprocess(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}
