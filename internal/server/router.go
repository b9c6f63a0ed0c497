package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/doclane/doclane/internal/api"
	"github.com/doclane/doclane/internal/api/handlers"
	"github.com/doclane/doclane/internal/api/middleware"
)

type RouterConfig struct {
	AuthValidator   middleware.AuthValidator
	DocumentHandler *handlers.DocumentHandler
	RetrieveHandler *handlers.RetrieveHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 32 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(cfg.AuthValidator))

		r.Route("/documents", func(r chi.Router) {
			r.Post("/", cfg.DocumentHandler.Upload)
			r.Get("/", cfg.DocumentHandler.List)
			r.Get("/{id}", cfg.DocumentHandler.Get)
			r.Delete("/{id}", cfg.DocumentHandler.Delete)
			r.Post("/{id}/reprocess", cfg.DocumentHandler.Reprocess)
		})

		r.Post("/retrieve", cfg.RetrieveHandler.Retrieve)
	})

	return r
}
