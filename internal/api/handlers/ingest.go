package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/helix-works/recall/internal/api"
	"github.com/helix-works/recall/internal/domain"
)

// IngestService is the store surface the ingest handler needs.
type IngestService interface {
	AddDocuments(ctx context.Context, inputs []domain.ChunkInput) error
	Count(ctx context.Context) (int64, error)
	ClearAll(ctx context.Context) (int64, error)
}

// IngestHandler serves bulk ingestion and store maintenance requests.
type IngestHandler struct {
	svc IngestService
}

func NewIngestHandler(svc IngestService) *IngestHandler {
	return &IngestHandler{svc: svc}
}

type ingestRequest struct {
	Documents []domain.ChunkInput `json:"documents"`
}

// Ingest handles POST /ingest
func (h *IngestHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Documents) == 0 {
		api.Error(w, http.StatusBadRequest, "documents are required")
		return
	}

	if err := h.svc.AddDocuments(r.Context(), req.Documents); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, map[string]int{"ingested": len(req.Documents)})
}

// Stats handles GET /stats
func (h *IngestHandler) Stats(w http.ResponseWriter, r *http.Request) {
	count, err := h.svc.Count(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]int64{"chunks": count})
}

// Clear handles DELETE /chunks
func (h *IngestHandler) Clear(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.svc.ClearAll(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]int64{"deleted": deleted})
}
