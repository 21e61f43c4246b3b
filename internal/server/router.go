package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/helix-works/recall/internal/api"
	"github.com/helix-works/recall/internal/api/handlers"
	"github.com/helix-works/recall/internal/api/middleware"
)

type RouterConfig struct {
	Logger        *zap.Logger
	APIToken      string
	QueryHandler  *handlers.QueryHandler
	IngestHandler *handlers.IngestHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 5 * 1024 * 1024

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog(logger))
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/query", cfg.QueryHandler.Query)
	r.Post("/query/hybrid", cfg.QueryHandler.HybridQuery)
	r.Get("/categories/{category}", cfg.QueryHandler.GetCategory)

	r.Group(func(r chi.Router) {
		r.Use(middleware.APITokenAuth(cfg.APIToken))

		r.Post("/ingest", cfg.IngestHandler.Ingest)
		r.Get("/stats", cfg.IngestHandler.Stats)
		r.Delete("/chunks", cfg.IngestHandler.Clear)
	})

	return r
}
