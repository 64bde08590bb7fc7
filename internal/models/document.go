package models

// Page is the raw text of one extracted document page. Number is 0-based.
type Page struct {
	Number int
	Text   string
}

// Sentence is a whitespace-normalised sentence. Offset counts runes from the
// start of its page text.
type Sentence struct {
	Text   string
	Page   int
	Offset int
}

// Chunk represents a run of semantically related sentences with metadata
type Chunk struct {
	ID          string `json:"id"`
	Index       int    `json:"index"`
	Content     string `json:"content"`
	PageNumber  int    `json:"page_number"`
	StartOffset int    `json:"start_offset"`
	Sentences   int    `json:"sentences"`
	MinSizeMet  bool   `json:"min_size_met"`
}

// SearchResult pairs a chunk with its cosine similarity to the query.
type SearchResult struct {
	Chunk Chunk
	Score float32
}
