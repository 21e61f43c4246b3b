package retriever

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/helix-works/recall/internal/domain"
	"github.com/helix-works/recall/internal/store"
)

// MockEmbedder is a mock implementation of Embedder
type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

// MockStore is a mock implementation of Store
type MockStore struct {
	mock.Mock
}

func (m *MockStore) SimilaritySearch(ctx context.Context, vector []float32, params store.SearchParams) ([]domain.RetrievedChunk, error) {
	args := m.Called(ctx, vector, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RetrievedChunk), args.Error(1)
}

func (m *MockStore) GetByCategory(ctx context.Context, category domain.Category, limit int) ([]domain.RetrievedChunk, error) {
	args := m.Called(ctx, category, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RetrievedChunk), args.Error(1)
}

func (m *MockStore) TouchQueryCount(ctx context.Context, ids []string) error {
	args := m.Called(ctx, ids)
	return args.Error(0)
}

func testVector() []float32 {
	return []float32{0.1, 0.2, 0.3}
}

func testChunks(ids ...string) []domain.RetrievedChunk {
	chunks := make([]domain.RetrievedChunk, 0, len(ids))
	for i, id := range ids {
		chunks = append(chunks, domain.RetrievedChunk{
			ID:       id,
			Content:  "chunk " + id,
			Category: domain.CategorySkills,
			Priority: 2,
			Score:    0.7 - float64(i)*0.01,
		})
	}
	return chunks
}

func TestRetrieve_EmptyQuery(t *testing.T) {
	embedder := new(MockEmbedder)
	st := new(MockStore)
	r := New(embedder, st, zap.NewNop())

	_, err := r.Retrieve(context.Background(), "   ", DefaultOptions())

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmptyInput)
	embedder.AssertNotCalled(t, "Embed", mock.Anything, mock.Anything)
}

func TestRetrieve_EmbedFailureIsFatal(t *testing.T) {
	embedder := new(MockEmbedder)
	st := new(MockStore)
	embedFailure := domain.NewDomainErrorWithCause(domain.ErrCodeProvider, "failed to create embedding", errors.New("timeout"))
	embedder.On("Embed", mock.Anything, mock.Anything).Return(nil, embedFailure)

	r := New(embedder, st, zap.NewNop())

	_, err := r.Retrieve(context.Background(), "what are your skills", DefaultOptions())

	require.Error(t, err)
	var domainErr *domain.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, domain.ErrCodeProvider, domainErr.Code)
	st.AssertNotCalled(t, "SimilaritySearch", mock.Anything, mock.Anything, mock.Anything)
}

func TestRetrieve_ReturnsAtMostK(t *testing.T) {
	embedder := new(MockEmbedder)
	st := new(MockStore)
	embedder.On("Embed", mock.Anything, mock.Anything).Return(testVector(), nil)
	st.On("SimilaritySearch", mock.Anything, testVector(), mock.Anything).
		Return(testChunks("a", "b", "c", "d", "e"), nil)
	st.On("TouchQueryCount", mock.Anything, mock.Anything).Return(nil)

	r := New(embedder, st, zap.NewNop())

	results, err := r.Retrieve(context.Background(), "what are your skills", DefaultOptions())

	require.NoError(t, err)
	assert.Len(t, results, DefaultK)
	for _, c := range results {
		assert.GreaterOrEqual(t, c.Score, 0.0)
		assert.LessOrEqual(t, c.Score, 1.0)
	}
}

func TestRetrieve_WidensCandidateRequest(t *testing.T) {
	embedder := new(MockEmbedder)
	st := new(MockStore)
	embedder.On("Embed", mock.Anything, mock.Anything).Return(testVector(), nil)
	st.On("SimilaritySearch", mock.Anything, mock.Anything, mock.MatchedBy(func(p store.SearchParams) bool {
		return p.K == DefaultK*candidateFactor && p.Threshold < DefaultThreshold
	})).Return(testChunks("a"), nil)
	st.On("TouchQueryCount", mock.Anything, mock.Anything).Return(nil)

	r := New(embedder, st, zap.NewNop())

	_, err := r.Retrieve(context.Background(), "hello world", DefaultOptions())

	require.NoError(t, err)
	st.AssertExpectations(t)
}

func TestRetrieve_ConfidentIntentFiltersCategory(t *testing.T) {
	embedder := new(MockEmbedder)
	st := new(MockStore)
	embedder.On("Embed", mock.Anything, mock.Anything).Return(testVector(), nil)
	st.On("SimilaritySearch", mock.Anything, mock.Anything, mock.MatchedBy(func(p store.SearchParams) bool {
		return p.Category == domain.CategorySkills
	})).Return(testChunks("a"), nil)
	st.On("TouchQueryCount", mock.Anything, mock.Anything).Return(nil)

	r := New(embedder, st, zap.NewNop())

	// Two keyword hits give confidence above the filter gate.
	_, err := r.Retrieve(context.Background(), "What programming languages do you know?", DefaultOptions())

	require.NoError(t, err)
	st.AssertExpectations(t)
}

func TestRetrieve_IntentDisabledSkipsFilter(t *testing.T) {
	embedder := new(MockEmbedder)
	st := new(MockStore)
	embedder.On("Embed", mock.Anything, mock.Anything).Return(testVector(), nil)
	st.On("SimilaritySearch", mock.Anything, mock.Anything, mock.MatchedBy(func(p store.SearchParams) bool {
		return p.Category == ""
	})).Return(testChunks("a"), nil)
	st.On("TouchQueryCount", mock.Anything, mock.Anything).Return(nil)

	opts := DefaultOptions()
	opts.UseIntent = false

	r := New(embedder, st, zap.NewNop())

	_, err := r.Retrieve(context.Background(), "What programming languages do you know?", opts)

	require.NoError(t, err)
	st.AssertExpectations(t)
	st.AssertNotCalled(t, "GetByCategory", mock.Anything, mock.Anything, mock.Anything)
}

func TestRetrieve_CategoryFallbackOnEmptyResults(t *testing.T) {
	embedder := new(MockEmbedder)
	st := new(MockStore)
	embedder.On("Embed", mock.Anything, mock.Anything).Return(testVector(), nil)
	st.On("SimilaritySearch", mock.Anything, mock.Anything, mock.Anything).
		Return([]domain.RetrievedChunk{}, nil)
	st.On("GetByCategory", mock.Anything, domain.CategorySkills, DefaultK).
		Return(testChunks("fallback"), nil)
	st.On("TouchQueryCount", mock.Anything, mock.Anything).Return(nil)

	r := New(embedder, st, zap.NewNop())

	results, err := r.Retrieve(context.Background(), "What are your skills?", DefaultOptions())

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "fallback", results[0].ID)
	st.AssertExpectations(t)
}

func TestRetrieve_CategoryFallbackFailureYieldsEmpty(t *testing.T) {
	embedder := new(MockEmbedder)
	st := new(MockStore)
	embedder.On("Embed", mock.Anything, mock.Anything).Return(testVector(), nil)
	st.On("SimilaritySearch", mock.Anything, mock.Anything, mock.Anything).
		Return([]domain.RetrievedChunk{}, nil)
	st.On("GetByCategory", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("connection lost"))

	r := New(embedder, st, zap.NewNop())

	results, err := r.Retrieve(context.Background(), "What are your skills?", DefaultOptions())

	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRetrieve_EmptyStoreIsNotAnError(t *testing.T) {
	embedder := new(MockEmbedder)
	st := new(MockStore)
	embedder.On("Embed", mock.Anything, mock.Anything).Return(testVector(), nil)
	st.On("SimilaritySearch", mock.Anything, mock.Anything, mock.Anything).
		Return([]domain.RetrievedChunk{}, nil)

	r := New(embedder, st, zap.NewNop())

	results, err := r.Retrieve(context.Background(), "hello world", DefaultOptions())

	require.NoError(t, err)
	assert.Empty(t, results)
	st.AssertNotCalled(t, "TouchQueryCount", mock.Anything, mock.Anything)
}

func TestRetrieve_TouchCountFailureIsIgnored(t *testing.T) {
	embedder := new(MockEmbedder)
	st := new(MockStore)
	embedder.On("Embed", mock.Anything, mock.Anything).Return(testVector(), nil)
	st.On("SimilaritySearch", mock.Anything, mock.Anything, mock.Anything).
		Return(testChunks("a"), nil)
	st.On("TouchQueryCount", mock.Anything, []string{"a"}).Return(errors.New("write failed"))

	r := New(embedder, st, zap.NewNop())

	results, err := r.Retrieve(context.Background(), "hello world", DefaultOptions())

	require.NoError(t, err)
	assert.Len(t, results, 1)
	st.AssertExpectations(t)
}

func TestGetContextByCategory_SortsByPriority(t *testing.T) {
	st := new(MockStore)
	st.On("GetByCategory", mock.Anything, domain.CategoryProjects, 5).Return([]domain.RetrievedChunk{
		{ID: "p3", Priority: 3, Score: 1.0},
		{ID: "p1", Priority: 1, Score: 1.0},
		{ID: "p2", Priority: 2, Score: 1.0},
	}, nil)

	r := New(new(MockEmbedder), st, zap.NewNop())

	results := r.GetContextByCategory(context.Background(), domain.CategoryProjects, 0)

	require.Len(t, results, 3)
	assert.Equal(t, "p1", results[0].ID)
	assert.Equal(t, "p2", results[1].ID)
	assert.Equal(t, "p3", results[2].ID)
}

func TestGetContextByCategory_StoreFailureYieldsEmpty(t *testing.T) {
	st := new(MockStore)
	st.On("GetByCategory", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("connection lost"))

	r := New(new(MockEmbedder), st, zap.NewNop())

	results := r.GetContextByCategory(context.Background(), domain.CategorySkills, 5)

	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestHybridSearch_MergesAndDeduplicates(t *testing.T) {
	embedder := new(MockEmbedder)
	st := new(MockStore)
	embedder.On("Embed", mock.Anything, mock.Anything).Return(testVector(), nil)
	st.On("SimilaritySearch", mock.Anything, mock.Anything, mock.Anything).
		Return(testChunks("a", "b", "c"), nil)
	// The category arm returns one duplicate and one new chunk.
	st.On("GetByCategory", mock.Anything, domain.CategorySkills, 1).Return([]domain.RetrievedChunk{
		{ID: "a", Category: domain.CategorySkills, Priority: 2, Score: 1.0},
	}, nil)
	st.On("TouchQueryCount", mock.Anything, mock.Anything).Return(nil)

	r := New(embedder, st, zap.NewNop())

	results, err := r.HybridSearch(context.Background(), "What programming languages do you know?", DefaultOptions())

	require.NoError(t, err)
	assert.LessOrEqual(t, len(results), DefaultK)

	seen := map[string]bool{}
	for _, c := range results {
		assert.False(t, seen[c.ID], "duplicate chunk %s", c.ID)
		seen[c.ID] = true
	}
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestHybridSearch_VectorArmFailureFallsBackToPlainRetrieve(t *testing.T) {
	embedder := new(MockEmbedder)
	st := new(MockStore)
	embedder.On("Embed", mock.Anything, mock.Anything).Return(testVector(), nil)

	// With k=4 the vector arm asks for ceil(4*0.7)=3 results, so the two
	// Retrieve passes are distinguishable by their widened candidate counts.
	st.On("SimilaritySearch", mock.Anything, mock.Anything, mock.MatchedBy(func(p store.SearchParams) bool {
		return p.K == 3*candidateFactor
	})).Return(nil, errors.New("index corrupt"))
	st.On("SimilaritySearch", mock.Anything, mock.Anything, mock.MatchedBy(func(p store.SearchParams) bool {
		return p.K == 4*candidateFactor
	})).Return(testChunks("a", "b"), nil)
	st.On("TouchQueryCount", mock.Anything, mock.Anything).Return(nil)

	opts := DefaultOptions()
	opts.K = 4

	r := New(embedder, st, zap.NewNop())

	results, err := r.HybridSearch(context.Background(), "hello world", opts)

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ID)
	st.AssertExpectations(t)
}

func TestHybridSearch_NoCategorySkipsBrowseArm(t *testing.T) {
	embedder := new(MockEmbedder)
	st := new(MockStore)
	embedder.On("Embed", mock.Anything, mock.Anything).Return(testVector(), nil)
	st.On("SimilaritySearch", mock.Anything, mock.Anything, mock.Anything).
		Return(testChunks("a"), nil)
	st.On("TouchQueryCount", mock.Anything, mock.Anything).Return(nil)

	r := New(embedder, st, zap.NewNop())

	results, err := r.HybridSearch(context.Background(), "hello world", DefaultOptions())

	require.NoError(t, err)
	assert.Len(t, results, 1)
	st.AssertNotCalled(t, "GetByCategory", mock.Anything, mock.Anything, mock.Anything)
}
