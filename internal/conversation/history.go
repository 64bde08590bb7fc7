package conversation

import "docqa/internal/models"

// History is the append-only chat log of a session.
type History struct {
	turns []models.Turn
}

func (h *History) Append(turn models.Turn) {
	h.turns = append(h.turns, turn)
}

// Turns returns a copy of the log, safe for the caller to keep.
func (h *History) Turns() []models.Turn {
	out := make([]models.Turn, len(h.turns))
	for i, t := range h.turns {
		t.Sources = append([]models.Source(nil), t.Sources...)
		out[i] = t
	}
	return out
}

func (h *History) Len() int { return len(h.turns) }

func (h *History) Reset() { h.turns = nil }
