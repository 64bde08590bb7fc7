package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/models"
)

type fakeRetriever struct {
	results []models.SearchResult
	err     error
	queries []string
}

func (f *fakeRetriever) Retrieve(_ context.Context, question string) ([]models.SearchResult, error) {
	f.queries = append(f.queries, question)
	return f.results, f.err
}

type fakeGenerator struct {
	replies []string
	err     error
	prompts []string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	reply := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	return reply, nil
}

func parisResults() []models.SearchResult {
	long := strings.Repeat("France ", 40)
	return []models.SearchResult{
		{Chunk: models.Chunk{Content: "Paris is the capital of France.", PageNumber: 0}, Score: 0.9},
		{Chunk: models.Chunk{Content: long, PageNumber: 4}, Score: 0.5},
	}
}

func TestEngine_Ask(t *testing.T) {
	retriever := &fakeRetriever{results: parisResults()}
	generator := &fakeGenerator{replies: []string{"Context... Answer: Paris is the capital."}}
	history := &History{}

	answer, sources, err := NewEngine(20).Ask(context.Background(), "What is the capital?", history, retriever, generator)
	require.NoError(t, err)

	assert.Equal(t, "Paris is the capital.", answer)
	assert.Equal(t, []string{"What is the capital?"}, retriever.queries)
	require.Len(t, sources, 2)
	assert.Equal(t, 1, sources[0].Page)
	assert.Equal(t, 5, sources[1].Page)
	assert.Equal(t, "Paris is the capital...", sources[0].Excerpt)
	assert.Len(t, []rune(sources[1].Excerpt), 20+len(models.ExcerptEllipsis))

	turns := history.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, models.Turn{Role: models.RoleUser, Content: "What is the capital?"}, turns[0])
	assert.Equal(t, models.RoleAssistant, turns[1].Role)
	assert.Equal(t, "Paris is the capital.", turns[1].Content)
	assert.Equal(t, sources, turns[1].Sources)

	prompt := generator.prompts[0]
	assert.Contains(t, prompt, "Paris is the capital of France."+models.ContextSeparator)
	assert.Contains(t, prompt, models.NoHistoryPlaceholder)
	assert.True(t, strings.HasSuffix(prompt, "Question: What is the capital?\n"+models.AnswerMarker))
}

func TestEngine_AskCarriesPriorTurns(t *testing.T) {
	retriever := &fakeRetriever{results: parisResults()[:1]}
	generator := &fakeGenerator{replies: []string{"Paris.", "About two million."}}
	history := &History{}
	engine := NewEngine(0)

	_, _, err := engine.Ask(context.Background(), "What is the capital?", history, retriever, generator)
	require.NoError(t, err)
	_, _, err = engine.Ask(context.Background(), "How many people live there?", history, retriever, generator)
	require.NoError(t, err)

	require.Len(t, generator.prompts, 2)
	second := generator.prompts[1]
	assert.Contains(t, second, "User: What is the capital?\nAssistant: Paris.")
	assert.NotContains(t, second, "User: How many people live there?")
	assert.Equal(t, []string{"What is the capital?", "How many people live there?"}, retriever.queries)
	assert.Equal(t, 4, history.Len())
}

func TestEngine_AskFailureKeepsQuestion(t *testing.T) {
	boom := errors.New("CUDA out of memory")
	tests := []struct {
		name      string
		retriever *fakeRetriever
		generator *fakeGenerator
	}{
		{"Retrieval Error", &fakeRetriever{err: boom}, &fakeGenerator{replies: []string{"x"}}},
		{"Generation Error", &fakeRetriever{results: parisResults()}, &fakeGenerator{err: boom}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			history := &History{}
			_, _, err := NewEngine(0).Ask(context.Background(), "Why?", history, tt.retriever, tt.generator)
			assert.ErrorIs(t, err, models.ErrGeneration)
			assert.ErrorIs(t, err, boom)
			assert.Equal(t, []models.Turn{{Role: models.RoleUser, Content: "Why?"}}, history.Turns())
		})
	}
}

func TestCleanAnswer(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"Context... Answer: Paris is the capital.", "Paris is the capital."},
		{"Paris is the capital.", "Paris is the capital."},
		{"  no marker, spaces kept  ", "  no marker, spaces kept  "},
		{"Question: q\nAnswer: first\nAnswer:  second ", "second"},
		{"Answer:", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanAnswer(tt.raw), tt.raw)
	}
}

func TestExcerpt_DoesNotTouchStoredText(t *testing.T) {
	chunk := models.Chunk{Content: "Tạm biệt, hẹn gặp lại"}
	assert.Equal(t, "Tạm biệt...", Excerpt(chunk.Content, 8))
	assert.Equal(t, "Tạm biệt, hẹn gặp lại", chunk.Content)
	assert.Equal(t, "short", Excerpt("short", 8))
}

func TestHistory_TurnsIsACopy(t *testing.T) {
	h := &History{}
	h.Append(models.Turn{Role: models.RoleAssistant, Content: "a", Sources: []models.Source{{Page: 1}}})
	turns := h.Turns()
	turns[0].Content = "changed"
	turns[0].Sources[0].Page = 99

	again := h.Turns()
	assert.Equal(t, "a", again[0].Content)
	assert.Equal(t, 1, again[0].Sources[0].Page)

	h.Reset()
	assert.Zero(t, h.Len())
}
