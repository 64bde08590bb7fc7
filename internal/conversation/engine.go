package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"docqa/internal/models"
)

const DefaultExcerptLength = 150

type Retriever interface {
	Retrieve(ctx context.Context, question string) ([]models.SearchResult, error)
}

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Engine answers questions from retrieved chunks and the prior dialogue.
type Engine struct {
	excerptLength int
}

func NewEngine(excerptLength int) *Engine {
	if excerptLength <= 0 {
		excerptLength = DefaultExcerptLength
	}
	return &Engine{excerptLength: excerptLength}
}

// Ask records the question, answers it and records the answer. On failure
// the question stays in history and the error wraps models.ErrGeneration.
func (e *Engine) Ask(ctx context.Context, question string, history *History, retriever Retriever, generator Generator) (string, []models.Source, error) {
	prior := history.Turns()
	history.Append(models.Turn{Role: models.RoleUser, Content: question})

	results, err := retriever.Retrieve(ctx, question)
	if err != nil {
		return "", nil, fmt.Errorf("%w: retrieval: %w", models.ErrGeneration, err)
	}

	prompt := BuildPrompt(prior, results, question)
	raw, err := generator.Generate(ctx, prompt)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", models.ErrGeneration, err)
	}
	answer := CleanAnswer(raw)

	sources := make([]models.Source, len(results))
	for i, r := range results {
		sources[i] = models.Source{
			Page:    r.Chunk.PageNumber + 1,
			Excerpt: Excerpt(r.Chunk.Content, e.excerptLength),
		}
	}

	history.Append(models.Turn{Role: models.RoleAssistant, Content: answer, Sources: sources})
	log.Debug().Int("sources", len(sources)).Int("history", history.Len()).Msg("Answered question")
	return answer, sources, nil
}

// BuildPrompt combines grounding context, prior turns and the question.
func BuildPrompt(prior []models.Turn, results []models.SearchResult, question string) string {
	contexts := make([]string, len(results))
	for i, r := range results {
		contexts[i] = r.Chunk.Content
	}

	dialogue := models.NoHistoryPlaceholder
	if len(prior) > 0 {
		lines := make([]string, len(prior))
		for i, t := range prior {
			speaker := "User"
			if t.Role == models.RoleAssistant {
				speaker = "Assistant"
			}
			lines[i] = speaker + ": " + t.Content
		}
		dialogue = strings.Join(lines, "\n")
	}

	return fmt.Sprintf(models.AnswerPromptTemplate, strings.Join(contexts, models.ContextSeparator), dialogue, question)
}

// CleanAnswer keeps only the text after the last answer marker. Completions
// without the marker are returned unchanged.
func CleanAnswer(raw string) string {
	i := strings.LastIndex(raw, models.AnswerMarker)
	if i < 0 {
		return raw
	}
	return strings.TrimSpace(raw[i+len(models.AnswerMarker):])
}

// Excerpt shortens text to at most n runes for display.
func Excerpt(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + models.ExcerptEllipsis
}
