package chunker

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/config"
	"docqa/internal/models"
)

// keywordEmbedder maps a text to the number of occurrences of each keyword.
type keywordEmbedder struct {
	keywords []string
	calls    int
	err      error
}

func (e *keywordEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = e.EmbedQuery(ctx, t)
	}
	return out, nil
}

func (e *keywordEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	lower := strings.ToLower(text)
	v := make([]float32, len(e.keywords))
	for i, k := range e.keywords {
		v[i] = float32(strings.Count(lower, k))
	}
	return v, nil
}

func chunkingConfig(minSize int) config.ChunkingConfig {
	return config.ChunkingConfig{
		BufferSize:                1,
		BreakpointThresholdType:   config.ThresholdPercentile,
		BreakpointThresholdAmount: 95,
		MinChunkSize:              minSize,
	}
}

func TestChunk_TopicShiftAcrossTenPages(t *testing.T) {
	pages := make([]models.Page, 10)
	for i := range pages {
		pages[i] = models.Page{Number: i}
	}
	pages[0].Text = "The apple is red. An apple grows on trees."
	pages[2].Text = "Apple pie is sweet. People bake apple tarts."
	pages[5].Text = "The rocket launched today. A rocket needs fuel. Rocket engines roar. The rocket reached orbit."

	emb := &keywordEmbedder{keywords: []string{"apple", "rocket"}}
	chunks, err := NewChunker(emb, chunkingConfig(10)).Chunk(context.Background(), pages)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, 0, chunks[0].PageNumber)
	assert.Equal(t, 0, chunks[0].StartOffset)
	assert.Equal(t, 4, chunks[0].Sentences)
	assert.True(t, strings.HasSuffix(chunks[0].Content, "People bake apple tarts."))

	assert.Equal(t, 5, chunks[1].PageNumber)
	assert.Equal(t, 4, chunks[1].Sentences)
	assert.True(t, strings.HasPrefix(chunks[1].Content, "The rocket launched today."))
	assert.Equal(t, 1, emb.calls)
}

func TestChunk_SingleSentenceSkipsEmbedding(t *testing.T) {
	emb := &keywordEmbedder{keywords: []string{"x"}}
	pages := []models.Page{{Number: 3, Text: "  Only one sentence here without a break"}}

	chunks, err := NewChunker(emb, chunkingConfig(500)).Chunk(context.Background(), pages)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 3, chunks[0].PageNumber)
	assert.Equal(t, 2, chunks[0].StartOffset)
	assert.False(t, chunks[0].MinSizeMet)
	assert.Zero(t, emb.calls)
}

func TestChunk_ShortDocumentIsOneChunk(t *testing.T) {
	emb := &keywordEmbedder{keywords: []string{"cat", "dog"}}
	pages := []models.Page{{Text: "A cat sat. A dog ran. The cat slept. The dog barked."}}

	chunks, err := NewChunker(emb, chunkingConfig(500)).Chunk(context.Background(), pages)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "A cat sat. A dog ran. The cat slept. The dog barked.", chunks[0].Content)
}

func TestChunk_MinimumSizeAndOrdering(t *testing.T) {
	topics := []string{"apple", "rocket", "ocean"}
	var pages []models.Page
	for p := 0; p < 4; p++ {
		var b strings.Builder
		for s := 0; s < 6; s++ {
			topic := topics[(p*6+s)%len(topics)]
			b.WriteString(strings.Repeat(topic+" ", s%3+1))
			b.WriteString("is discussed here. ")
		}
		pages = append(pages, models.Page{Number: p, Text: b.String()})
	}
	cfg := chunkingConfig(120)
	cfg.BreakpointThresholdAmount = 10

	chunks, err := NewChunker(&keywordEmbedder{keywords: topics}, cfg).Chunk(context.Background(), pages)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	for i, ch := range chunks {
		if len(chunks) > 1 {
			assert.GreaterOrEqual(t, utf8.RuneCountInString(ch.Content), 120, "chunk %d too short", i)
			assert.True(t, ch.MinSizeMet)
		}
		assert.Equal(t, i, ch.Index)
		if i > 0 {
			prev := chunks[i-1]
			ordered := ch.PageNumber > prev.PageNumber ||
				(ch.PageNumber == prev.PageNumber && ch.StartOffset > prev.StartOffset)
			assert.True(t, ordered, "chunk %d out of order", i)
		}
	}
}

func TestChunk_Errors(t *testing.T) {
	_, err := NewChunker(&keywordEmbedder{}, chunkingConfig(10)).Chunk(context.Background(), []models.Page{{Text: "  \n "}})
	assert.ErrorIs(t, err, models.ErrIngestion)

	_, err = NewChunker(&keywordEmbedder{}, chunkingConfig(10)).Chunk(context.Background(), nil)
	assert.ErrorIs(t, err, models.ErrIngestion)

	boom := errors.New("model offline")
	pages := []models.Page{{Text: "One. Two. Three."}}
	_, err = NewChunker(&keywordEmbedder{err: boom}, chunkingConfig(1)).Chunk(context.Background(), pages)
	assert.ErrorIs(t, err, models.ErrIngestion)
	assert.ErrorIs(t, err, boom)
}

func TestEnforceMinSize_LastMergesBackwards(t *testing.T) {
	sentences := []models.Sentence{
		{Text: "aaaaaaaaaa"}, {Text: "bbbbbbbbbb"}, {Text: "c"},
	}
	spans := enforceMinSize(sentences, []span{{0, 1}, {1, 2}, {2, 3}}, 10)
	assert.Equal(t, []span{{0, 1}, {1, 3}}, spans)
}
