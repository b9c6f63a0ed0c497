package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/doclane/doclane/internal/api"
	"github.com/doclane/doclane/internal/api/middleware"
	"github.com/doclane/doclane/internal/service"
)

type Retriever interface {
	Retrieve(ctx context.Context, tenantID, query string, opts service.RetrieveOptions) (*service.RetrievalResult, error)
}

type RetrieveHandler struct {
	svc Retriever
}

func NewRetrieveHandler(svc Retriever) *RetrieveHandler {
	return &RetrieveHandler{svc: svc}
}

type RetrieveRequest struct {
	Query       string `json:"query"`
	K           int    `json:"k"`
	UseRerank   bool   `json:"use_rerank"`
	BypassCache bool   `json:"bypass_cache"`
}

type RetrieveResponse struct {
	Chunks []service.RetrievedChunk `json:"chunks"`
	Stats  service.RetrievalStats   `json:"stats"`
}

func (h *RetrieveHandler) Retrieve(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	if tenantID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req RetrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Query == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return
	}

	result, err := h.svc.Retrieve(r.Context(), tenantID, req.Query, service.RetrieveOptions{
		K:           req.K,
		UseRerank:   req.UseRerank,
		BypassCache: req.BypassCache,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, RetrieveResponse{
		Chunks: result.Chunks,
		Stats:  result.Stats,
	})
}
