package models

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Source attributes an answer to a page (1-based) and a display excerpt.
type Source struct {
	Page    int    `json:"page"`
	Excerpt string `json:"excerpt"`
}

// Turn is one entry of the chat history.
type Turn struct {
	Role    Role     `json:"role"`
	Content string   `json:"content"`
	Sources []Source `json:"sources,omitempty"`
}

type PromptResponse struct {
	Query   string
	Answer  string
	Sources []Source
}
