package chromemdb

import (
	"context"
	"fmt"
	"runtime"
	"strconv"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"docqa/internal/models"
)

const (
	collectionName = "document"
	DefaultK       = 3
)

// Index is an in-memory, exact nearest-neighbour index over the chunks of a
// single document. It is rebuilt, never updated.
type Index struct {
	db         *chromem.DB
	collection *chromem.Collection
	chunks     map[string]models.Chunk
}

// Build embeds every chunk and stores it in a fresh in-memory collection.
func Build(ctx context.Context, chunks []models.Chunk, embedder embeddings.Embedder) (*Index, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: cannot build an index from zero chunks", models.ErrIndex)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to embed chunks: %w", models.ErrIndex, err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("%w: embedder returned %d vectors for %d chunks", models.ErrIndex, len(vectors), len(chunks))
	}

	db := chromem.NewDB()
	c, err := db.CreateCollection(collectionName, nil, embeddingFunc(embedder))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create collection: %w", models.ErrIndex, err)
	}

	idx := &Index{db: db, collection: c, chunks: make(map[string]models.Chunk, len(chunks))}
	docs := make([]chromem.Document, len(chunks))
	for i, chunk := range chunks {
		id := chunk.ID
		if id == "" {
			id = strconv.Itoa(i)
		}
		idx.chunks[id] = chunk
		docs[i] = chromem.Document{
			ID:        id,
			Content:   chunk.Content,
			Metadata:  CreateMetadata(chunk),
			Embedding: vectors[i],
		}
	}
	if err := c.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return nil, fmt.Errorf("%w: failed to add documents: %w", models.ErrIndex, err)
	}

	log.Debug().Int("chunks", len(chunks)).Int("dimension", len(vectors[0])).Msg("Built vector index")
	return idx, nil
}

// CreateMetadata returns the chunk attributes stored next to its vector.
func CreateMetadata(chunk models.Chunk) map[string]string {
	return map[string]string{
		"page":         strconv.Itoa(chunk.PageNumber),
		"start_offset": strconv.Itoa(chunk.StartOffset),
		"index":        strconv.Itoa(chunk.Index),
	}
}

// Count returns the number of indexed chunks; zero for a nil index.
func (i *Index) Count() int {
	if i == nil || i.collection == nil {
		return 0
	}
	return i.collection.Count()
}

// Query returns up to k chunks ordered by descending cosine similarity to
// vector. k <= 0 means DefaultK; k is clamped to the chunk count.
func (i *Index) Query(ctx context.Context, vector []float32, k int) ([]models.SearchResult, error) {
	n := i.Count()
	if n == 0 {
		return nil, fmt.Errorf("%w: index is empty or not initialised", models.ErrIndex)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: query vector is empty", models.ErrIndex)
	}
	if k <= 0 {
		k = DefaultK
	}
	k = min(k, n)

	res, err := i.collection.QueryEmbedding(ctx, vector, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query by similarity: %w", models.ErrIndex, err)
	}

	results := make([]models.SearchResult, 0, len(res))
	for _, r := range res {
		chunk, ok := i.chunks[r.ID]
		if !ok {
			return nil, fmt.Errorf("%w: unknown document %q in result", models.ErrIndex, r.ID)
		}
		results = append(results, models.SearchResult{Chunk: chunk, Score: r.Similarity})
	}
	return results, nil
}

func embeddingFunc(e embeddings.Embedder) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return e.EmbedQuery(ctx, text)
	}
}
