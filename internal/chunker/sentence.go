package chunker

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"docqa/internal/models"
)

var sentenceEndRe = regexp.MustCompile(models.SentenceEndRegex)

// SplitSentences segments every page into sentences in document order.
func SplitSentences(pages []models.Page) []models.Sentence {
	var sentences []models.Sentence
	for _, page := range pages {
		start := 0
		for _, loc := range sentenceEndRe.FindAllStringIndex(page.Text, -1) {
			sentences = appendSentence(sentences, page, start, loc[1])
			start = loc[1]
		}
		sentences = appendSentence(sentences, page, start, len(page.Text))
	}
	return sentences
}

func appendSentence(sentences []models.Sentence, page models.Page, start, end int) []models.Sentence {
	raw := page.Text[start:end]
	text := strings.Join(strings.Fields(raw), " ")
	if text == "" {
		return sentences
	}
	lead := len(raw) - len(strings.TrimLeftFunc(raw, unicode.IsSpace))
	return append(sentences, models.Sentence{
		Text:   text,
		Page:   page.Number,
		Offset: utf8.RuneCountInString(page.Text[:start+lead]),
	})
}

// combineSentences joins every sentence with bufferSize neighbours on each
// side, giving one embedding window per sentence.
func combineSentences(sentences []models.Sentence, bufferSize int) []string {
	windows := make([]string, len(sentences))
	for i := range sentences {
		lo := max(0, i-bufferSize)
		hi := min(len(sentences)-1, i+bufferSize)
		windows[i] = joinSentences(sentences[lo : hi+1])
	}
	return windows
}

func joinSentences(sentences []models.Sentence) string {
	texts := make([]string, len(sentences))
	for i, s := range sentences {
		texts[i] = s.Text
	}
	return strings.Join(texts, " ")
}
