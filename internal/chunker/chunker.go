package chunker

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"docqa/internal/config"
	"docqa/internal/helper"
	"docqa/internal/models"
)

// Chunker splits a document where the meaning of consecutive sentence
// windows shifts the most, then merges undersized pieces.
type Chunker struct {
	embedder embeddings.Embedder
	cfg      config.ChunkingConfig
}

func NewChunker(embedder embeddings.Embedder, cfg config.ChunkingConfig) *Chunker {
	return &Chunker{embedder: embedder, cfg: cfg}
}

// span is a half-open range of sentence indices.
type span struct {
	start, end int
}

// Chunk returns the semantic chunks of pages in document order.
func (c *Chunker) Chunk(ctx context.Context, pages []models.Page) ([]models.Chunk, error) {
	sentences := SplitSentences(pages)
	if len(sentences) == 0 {
		return nil, fmt.Errorf("%w: document contains no text", models.ErrIngestion)
	}

	spans, err := c.split(ctx, sentences)
	if err != nil {
		return nil, err
	}
	spans = enforceMinSize(sentences, spans, c.cfg.MinChunkSize)

	chunks := make([]models.Chunk, len(spans))
	for i, sp := range spans {
		id, err := helper.GenerateUUID()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", models.ErrIngestion, err)
		}
		text := joinSentences(sentences[sp.start:sp.end])
		first := sentences[sp.start]
		chunks[i] = models.Chunk{
			ID:          id,
			Index:       i,
			Content:     text,
			PageNumber:  first.Page,
			StartOffset: first.Offset,
			Sentences:   sp.end - sp.start,
			MinSizeMet:  utf8.RuneCountInString(text) >= c.cfg.MinChunkSize,
		}
	}

	log.Debug().Int("sentences", len(sentences)).Int("chunks", len(chunks)).Msg("Semantic chunking done")
	return chunks, nil
}

func (c *Chunker) split(ctx context.Context, sentences []models.Sentence) ([]span, error) {
	if len(sentences) < 2 {
		return []span{{0, len(sentences)}}, nil
	}

	windows := combineSentences(sentences, c.cfg.BufferSize)
	vectors, err := c.embedder.EmbedDocuments(ctx, windows)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to embed sentences: %w", models.ErrIngestion, err)
	}
	if len(vectors) != len(windows) {
		return nil, fmt.Errorf("%w: embedder returned %d vectors for %d sentences", models.ErrIngestion, len(vectors), len(windows))
	}

	distances := make([]float64, len(vectors)-1)
	for i := range distances {
		distances[i] = cosineDistance(vectors[i], vectors[i+1])
	}
	threshold, err := BreakpointThreshold(distances, c.cfg.BreakpointThresholdType, c.cfg.BreakpointThresholdAmount)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrIngestion, err)
	}

	var spans []span
	start := 0
	for i, d := range distances {
		if d > threshold {
			spans = append(spans, span{start, i + 1})
			start = i + 1
		}
	}
	spans = append(spans, span{start, len(sentences)})

	log.Debug().Float64("threshold", threshold).Int("breakpoints", len(spans)-1).Msg("Computed breakpoints")
	return spans, nil
}

// enforceMinSize merges every span shorter than minSize runes into its
// successor, or into its predecessor when it is the last one, until all spans
// are long enough or a single span is left.
func enforceMinSize(sentences []models.Sentence, spans []span, minSize int) []span {
	short := func(sp span) bool {
		return utf8.RuneCountInString(joinSentences(sentences[sp.start:sp.end])) < minSize
	}
	for len(spans) > 1 {
		i := -1
		for j, sp := range spans {
			if short(sp) {
				i = j
				break
			}
		}
		if i < 0 {
			break
		}
		if i == len(spans)-1 {
			i--
		}
		merged := span{spans[i].start, spans[i+1].end}
		spans = append(spans[:i], append([]span{merged}, spans[i+2:]...)...)
	}
	return spans
}
