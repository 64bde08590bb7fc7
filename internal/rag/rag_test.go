package rag

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"docqa/internal/chromemdb"
	"docqa/internal/models"
)

type MockEmbedder struct{ mock.Mock }

func (m *MockEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

func (m *MockEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

func buildIndex(t *testing.T, e *MockEmbedder) *chromemdb.Index {
	t.Helper()
	chunks := []models.Chunk{
		{ID: "1", Content: "alpha", PageNumber: 0},
		{ID: "2", Content: "beta", PageNumber: 1},
		{ID: "3", Content: "gamma", PageNumber: 2},
		{ID: "4", Content: "delta", PageNumber: 3},
	}
	e.On("EmbedDocuments", mock.Anything, []string{"alpha", "beta", "gamma", "delta"}).
		Return([][]float32{{1, 0}, {0.9, 0.1}, {0.1, 0.9}, {0, 1}}, nil).Once()
	idx, err := chromemdb.Build(context.Background(), chunks, e)
	require.NoError(t, err)
	return idx
}

func TestRetriever_RetrieveTopK(t *testing.T) {
	e := new(MockEmbedder)
	idx := buildIndex(t, e)
	e.On("EmbedQuery", mock.Anything, "first letters?").Return([]float32{1, 0.05}, nil).Once()

	r := NewRetriever(idx, e, NewQueryCache(time.Minute), 3)
	res, err := r.Retrieve(context.Background(), "first letters?")
	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.Equal(t, "alpha", res[0].Chunk.Content)
	assert.Equal(t, "beta", res[1].Chunk.Content)
	e.AssertExpectations(t)
}

func TestRetriever_CachesQueryEmbedding(t *testing.T) {
	e := new(MockEmbedder)
	idx := buildIndex(t, e)
	e.On("EmbedQuery", mock.Anything, "again").Return([]float32{0, 1}, nil).Once()

	r := NewRetriever(idx, e, NewQueryCache(0), 2)
	first, err := r.Retrieve(context.Background(), "again")
	require.NoError(t, err)
	second, err := r.Retrieve(context.Background(), "again")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	e.AssertNumberOfCalls(t, "EmbedQuery", 1)
}

func TestRetriever_EmbedError(t *testing.T) {
	e := new(MockEmbedder)
	idx := buildIndex(t, e)
	boom := errors.New("embedder down")
	e.On("EmbedQuery", mock.Anything, "q").Return(nil, boom)

	_, err := NewRetriever(idx, e, nil, 3).Retrieve(context.Background(), "q")
	assert.ErrorIs(t, err, boom)
}

func TestRetriever_EmptyIndex(t *testing.T) {
	e := new(MockEmbedder)
	e.On("EmbedQuery", mock.Anything, "q").Return([]float32{1}, nil)

	_, err := NewRetriever(nil, e, nil, 3).Retrieve(context.Background(), "q")
	assert.ErrorIs(t, err, models.ErrIndex)
}
