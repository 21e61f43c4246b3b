package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/helix-works/recall/internal/domain"
)

// MockAPI is a mock implementation of API
type MockAPI struct {
	mock.Mock
}

func (m *MockAPI) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

func vectorOfDim(dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = 0.1
	}
	return v
}

func TestOpenAIProvider_Embed(t *testing.T) {
	api := new(MockAPI)
	api.On("CreateEmbedding", mock.Anything, "hello").Return(vectorOfDim(4), nil)

	provider := NewProviderWithAPI(api, 4)

	vector, err := provider.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, vector, 4)
	api.AssertExpectations(t)
}

func TestOpenAIProvider_Embed_EmptyInput(t *testing.T) {
	api := new(MockAPI)
	provider := NewProviderWithAPI(api, 4)

	tests := []string{"", "   ", "\n\t"}
	for _, input := range tests {
		_, err := provider.Embed(context.Background(), input)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrEmptyInput)
	}

	api.AssertNotCalled(t, "CreateEmbedding", mock.Anything, mock.Anything)
}

func TestOpenAIProvider_Embed_ProviderFailure(t *testing.T) {
	api := new(MockAPI)
	api.On("CreateEmbedding", mock.Anything, "hello").Return(nil, errors.New("rate limited"))

	provider := NewProviderWithAPI(api, 4)

	_, err := provider.Embed(context.Background(), "hello")
	require.Error(t, err)

	var domainErr *domain.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, domain.ErrCodeProvider, domainErr.Code)
}

func TestOpenAIProvider_Embed_DimensionMismatch(t *testing.T) {
	api := new(MockAPI)
	api.On("CreateEmbedding", mock.Anything, "hello").Return(vectorOfDim(3), nil)

	provider := NewProviderWithAPI(api, 4)

	_, err := provider.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestOpenAIProvider_EmbedBatch(t *testing.T) {
	api := new(MockAPI)
	api.On("CreateEmbedding", mock.Anything, "first").Return(vectorOfDim(4), nil)
	api.On("CreateEmbedding", mock.Anything, "second").Return(vectorOfDim(4), nil)

	provider := NewProviderWithAPI(api, 4)

	vectors, err := provider.EmbedBatch(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	assert.Len(t, vectors, 2)
	api.AssertExpectations(t)
}

func TestOpenAIProvider_EmbedBatch_FiltersEmptyEntries(t *testing.T) {
	api := new(MockAPI)
	api.On("CreateEmbedding", mock.Anything, "kept").Return(vectorOfDim(4), nil)

	provider := NewProviderWithAPI(api, 4)

	vectors, err := provider.EmbedBatch(context.Background(), []string{"", "kept", "   "})
	require.NoError(t, err)
	assert.Len(t, vectors, 1)
	api.AssertNumberOfCalls(t, "CreateEmbedding", 1)
}

func TestOpenAIProvider_EmbedBatch_AllEmpty(t *testing.T) {
	api := new(MockAPI)
	provider := NewProviderWithAPI(api, 4)

	_, err := provider.EmbedBatch(context.Background(), []string{"", "  "})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmptyInput)
}

func TestOpenAIProvider_EmbedBatch_FailsWholeBatch(t *testing.T) {
	api := new(MockAPI)
	api.On("CreateEmbedding", mock.Anything, "good").Return(vectorOfDim(4), nil)
	api.On("CreateEmbedding", mock.Anything, "bad").Return(nil, errors.New("boom"))

	provider := NewProviderWithAPI(api, 4)

	_, err := provider.EmbedBatch(context.Background(), []string{"good", "bad"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch entry 1")
}

func TestOpenAIProvider_EmbedBatch_ErrorReportsOriginalPosition(t *testing.T) {
	api := new(MockAPI)
	api.On("CreateEmbedding", mock.Anything, "good").Return(vectorOfDim(4), nil)
	api.On("CreateEmbedding", mock.Anything, "bad").Return(nil, errors.New("boom"))

	provider := NewProviderWithAPI(api, 4)

	// The empty entry is filtered out; the error must still name position 2
	// as the caller passed it.
	_, err := provider.EmbedBatch(context.Background(), []string{"good", "", "bad"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch entry 2")
}

func TestOpenAIProvider_Dimensions(t *testing.T) {
	assert.Equal(t, 4, NewProviderWithAPI(new(MockAPI), 4).Dimensions())
	assert.Equal(t, DefaultDimensions, NewProviderWithAPI(new(MockAPI), 0).Dimensions())
}
