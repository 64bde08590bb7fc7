package models

const (
	// AnswerMarker separates an echoed prompt from the generated answer.
	AnswerMarker     = "Answer:"
	ContextSeparator = "\n---\n"
	SentenceEndRegex = `[.?!]+["')\]]*\s+`
	ExcerptEllipsis  = "..."
)

var (
	AnswerPromptTemplate = `Use the following pieces of context to answer the question at the end. If you don't know the answer, just say that you don't know, don't try to make up an answer.

Context:
%s

Conversation so far:
%s

Question: %s
` + AnswerMarker

	NoHistoryPlaceholder = "(none)"
)
