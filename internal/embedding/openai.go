package embedding

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/helix-works/recall/internal/domain"
)

const (
	// DefaultModel is the OpenAI model used for generating embeddings.
	DefaultModel = openai.SmallEmbedding3
	// DefaultDimensions is the vector length requested from the model.
	// Ingestion-time and query-time dimensionality must match, so this is
	// fixed for the lifetime of the index.
	DefaultDimensions = 768
)

// defaultRateLimit spaces outbound embedding calls to stay inside the
// provider's rate limit during batch work.
var defaultRateLimit = rate.Every(200 * time.Millisecond)

// API is the outbound surface of the embedding backend, abstracted for
// testing.
type API interface {
	CreateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// OpenAIProvider implements Provider on top of the OpenAI embeddings API.
type OpenAIProvider struct {
	api        API
	dimensions int
	limiter    *rate.Limiter
}

// Config holds construction options for OpenAIProvider.
type Config struct {
	APIKey     string
	Model      openai.EmbeddingModel
	Dimensions int
	// RateLimit bounds outbound calls during EmbedBatch. Zero means the
	// default of one call per 200ms.
	RateLimit rate.Limit
	Burst     int
}

type openAIAdapter struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
}

func (a *openAIAdapter) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      a.model,
		Dimensions: a.dimensions,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embedding data returned")
	}
	return resp.Data[0].Embedding, nil
}

// NewOpenAIProvider creates a provider with the given configuration.
func NewOpenAIProvider(cfg Config) *OpenAIProvider {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	dimensions := cfg.Dimensions
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	limit := cfg.RateLimit
	if limit == 0 {
		limit = defaultRateLimit
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &OpenAIProvider{
		api:        &openAIAdapter{client: openai.NewClient(cfg.APIKey), model: model, dimensions: dimensions},
		dimensions: dimensions,
		limiter:    rate.NewLimiter(limit, burst),
	}
}

// NewProviderWithAPI wires a custom backend, used by tests and alternative
// deployments.
func NewProviderWithAPI(api API, dimensions int) *OpenAIProvider {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &OpenAIProvider{
		api:        api,
		dimensions: dimensions,
		limiter:    rate.NewLimiter(rate.Inf, 1),
	}
}

// Dimensions returns the fixed output vector length.
func (p *OpenAIProvider) Dimensions() int {
	return p.dimensions
}

// Embed converts text into a dense vector.
func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.ErrEmptyInput
	}

	vector, err := p.api.CreateEmbedding(ctx, text)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeProvider, "failed to create embedding", err)
	}

	if len(vector) != p.dimensions {
		return nil, fmt.Errorf("expected %d dimensions, got %d: %w",
			p.dimensions, len(vector), domain.ErrDimensionMismatch)
	}

	return vector, nil
}

// EmbedBatch embeds texts one at a time behind the token bucket. Ingestion is
// a low-frequency offline operation, so the sequential ordering is deliberate.
func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	type entry struct {
		pos  int
		text string
	}
	valid := make([]entry, 0, len(texts))
	for i, t := range texts {
		if strings.TrimSpace(t) != "" {
			valid = append(valid, entry{pos: i, text: t})
		}
	}
	if len(valid) == 0 {
		return nil, domain.ErrEmptyInput
	}

	vectors := make([][]float32, 0, len(valid))
	for _, e := range valid {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		vector, err := p.Embed(ctx, e.text)
		if err != nil {
			// e.pos points at the caller's slice, not the filtered one.
			return nil, fmt.Errorf("batch entry %d: %w", e.pos, err)
		}
		vectors = append(vectors, vector)
	}

	return vectors, nil
}
