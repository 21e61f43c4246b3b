package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/helix-works/recall/internal/api"
	"github.com/helix-works/recall/internal/domain"
	"github.com/helix-works/recall/internal/retriever"
)

// RetrieverService is the retrieval surface the query handler needs.
type RetrieverService interface {
	Retrieve(ctx context.Context, query string, opts retriever.Options) ([]domain.RetrievedChunk, error)
	HybridSearch(ctx context.Context, query string, opts retriever.Options) ([]domain.RetrievedChunk, error)
	GetContextByCategory(ctx context.Context, category domain.Category, limit int) []domain.RetrievedChunk
}

// QueryHandler serves retrieval requests.
type QueryHandler struct {
	svc RetrieverService
}

func NewQueryHandler(svc RetrieverService) *QueryHandler {
	return &QueryHandler{svc: svc}
}

type queryRequest struct {
	Query         string  `json:"query"`
	K             int     `json:"k,omitempty"`
	Threshold     float64 `json:"threshold,omitempty"`
	UseIntent     *bool   `json:"use_intent,omitempty"`
	RerankResults *bool   `json:"rerank_results,omitempty"`
}

type chunkResponse struct {
	ID          string    `json:"id,omitempty"`
	Content     string    `json:"content"`
	Category    string    `json:"category"`
	Priority    int       `json:"priority"`
	Tags        []string  `json:"tags,omitempty"`
	Source      string    `json:"source,omitempty"`
	LastUpdated time.Time `json:"last_updated"`
	Score       float64   `json:"score"`
}

func (r queryRequest) options() retriever.Options {
	opts := retriever.DefaultOptions()
	if r.K > 0 {
		opts.K = r.K
	}
	if r.Threshold > 0 {
		opts.Threshold = r.Threshold
	}
	if r.UseIntent != nil {
		opts.UseIntent = *r.UseIntent
	}
	if r.RerankResults != nil {
		opts.RerankResults = *r.RerankResults
	}
	return opts
}

// Query handles POST /query
func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	results, err := h.svc.Retrieve(r.Context(), req.Query, req.options())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, toChunkResponses(results))
}

// HybridQuery handles POST /query/hybrid
func (h *QueryHandler) HybridQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	results, err := h.svc.HybridSearch(r.Context(), req.Query, req.options())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, toChunkResponses(results))
}

// GetCategory handles GET /categories/{category}
func (h *QueryHandler) GetCategory(w http.ResponseWriter, r *http.Request) {
	category, err := domain.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	limit := 5
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := parsePositiveInt(v); err == nil {
			limit = parsed
		}
	}

	results := h.svc.GetContextByCategory(r.Context(), category, limit)
	api.Success(w, http.StatusOK, toChunkResponses(results))
}

func toChunkResponses(chunks []domain.RetrievedChunk) []chunkResponse {
	out := make([]chunkResponse, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, chunkResponse{
			ID:          c.ID,
			Content:     c.Content,
			Category:    string(c.Category),
			Priority:    c.Priority,
			Tags:        c.Tags,
			Source:      c.Source,
			LastUpdated: c.LastUpdated,
			Score:       c.Score,
		})
	}
	return out
}

func parsePositiveInt(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, domain.NewDomainError(domain.ErrCodeValidation, "limit must be positive")
	}
	return n, nil
}
