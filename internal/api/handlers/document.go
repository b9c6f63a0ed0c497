package handlers

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/doclane/doclane/internal/api"
	"github.com/doclane/doclane/internal/api/middleware"
	"github.com/doclane/doclane/internal/domain"
	"github.com/doclane/doclane/internal/extract"
	"github.com/doclane/doclane/internal/service"
)

// maxUploadMemory bounds how much of a multipart upload stays in memory
// before spilling to disk.
const maxUploadMemory = 8 << 20

type IngestionService interface {
	IngestAsync(ctx context.Context, tenantID, filename string, data []byte, allowedRoles []string) (*domain.Document, error)
	Reprocess(ctx context.Context, tenantID, documentID string) (*domain.Document, error)
	GetDocument(ctx context.Context, tenantID, id string) (*domain.Document, error)
	ListDocuments(ctx context.Context, tenantID, cursor string, limit int) (*service.DocumentPage, error)
	DeleteDocument(ctx context.Context, tenantID, id string) error
}

type DocumentHandler struct {
	svc IngestionService
}

func NewDocumentHandler(svc IngestionService) *DocumentHandler {
	return &DocumentHandler{svc: svc}
}

type DocumentResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Status      string `json:"status"`
	Version     int64  `json:"version"`
	ContentHash string `json:"content_hash"`
	Error       string `json:"error,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func documentToResponse(d *domain.Document) *DocumentResponse {
	return &DocumentResponse{
		ID:          d.ID,
		Title:       d.Title,
		Status:      string(d.Status),
		Version:     d.Version,
		ContentHash: d.ContentHash,
		Error:       d.Error,
		CreatedAt:   d.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:   d.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

// Upload accepts a multipart upload and kicks off ingestion. The response
// carries the document in pending state; clients poll Get for progress.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	if tenantID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid multipart request")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		api.Error(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	if !extract.IsSupported(header.Filename) {
		api.Error(w, http.StatusBadRequest, "unsupported file type")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		api.Error(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	var roles []string
	if raw := r.FormValue("allowed_roles"); raw != "" {
		for _, role := range strings.Split(raw, ",") {
			if role = strings.TrimSpace(role); role != "" {
				roles = append(roles, role)
			}
		}
	}

	doc, err := h.svc.IngestAsync(r.Context(), tenantID, header.Filename, data, roles)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	status := http.StatusAccepted
	if doc.Status == domain.DocumentStatusReady {
		// unchanged content short-circuits, nothing to wait for
		status = http.StatusOK
	}
	api.Success(w, status, documentToResponse(doc))
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	if tenantID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	doc, err := h.svc.GetDocument(r.Context(), tenantID, id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, documentToResponse(doc))
}

type DocumentListResponse struct {
	Items   []*DocumentResponse `json:"items"`
	Cursor  string              `json:"cursor,omitempty"`
	HasMore bool                `json:"has_more"`
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	if tenantID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	cursor := r.URL.Query().Get("cursor")
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	page, err := h.svc.ListDocuments(r.Context(), tenantID, cursor, limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]*DocumentResponse, len(page.Items))
	for i, d := range page.Items {
		items[i] = documentToResponse(d)
	}

	api.Success(w, http.StatusOK, DocumentListResponse{
		Items:   items,
		Cursor:  page.NextCursor,
		HasMore: page.HasMore,
	})
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	if tenantID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.svc.DeleteDocument(r.Context(), tenantID, id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusNoContent, nil)
}

// Reprocess re-runs extraction and indexing from the archived upload.
func (h *DocumentHandler) Reprocess(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	if tenantID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	doc, err := h.svc.Reprocess(r.Context(), tenantID, id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, documentToResponse(doc))
}
