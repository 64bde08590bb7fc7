package rag

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"docqa/internal/chromemdb"
	"docqa/internal/models"
)

// NewQueryCache returns the cache shared by retrievers of one session. Query
// embeddings do not depend on the index, so it survives re-ingestion.
func NewQueryCache(ttl time.Duration) *cache.Cache {
	if ttl <= 0 {
		return cache.New(cache.NoExpiration, 0)
	}
	return cache.New(ttl, 2*ttl)
}

// Retriever embeds a question and returns the top-k chunks of the index.
type Retriever struct {
	index    *chromemdb.Index
	embedder embeddings.Embedder
	cache    *cache.Cache
	k        int
}

func NewRetriever(index *chromemdb.Index, embedder embeddings.Embedder, queryCache *cache.Cache, k int) *Retriever {
	if k <= 0 {
		k = chromemdb.DefaultK
	}
	return &Retriever{index: index, embedder: embedder, cache: queryCache, k: k}
}

func (r *Retriever) Retrieve(ctx context.Context, question string) ([]models.SearchResult, error) {
	vec, err := r.embedQuery(ctx, question)
	if err != nil {
		return nil, err
	}
	results, err := r.index.Query(ctx, vec, r.k)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("query", question).Int("results", len(results)).Msg("Retrieved chunks")
	return results, nil
}

func (r *Retriever) embedQuery(ctx context.Context, question string) ([]float32, error) {
	if r.cache != nil {
		if v, ok := r.cache.Get(question); ok {
			return v.([]float32), nil
		}
	}
	vec, err := r.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if r.cache != nil {
		r.cache.SetDefault(question, vec)
	}
	return vec, nil
}
