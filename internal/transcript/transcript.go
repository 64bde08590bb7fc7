// Package transcript renders chat history for display. It only reads the
// turns it is given.
package transcript

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"docqa/internal/models"
)

var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// Markdown renders turns as a markdown document, sources as a list under
// each assistant answer.
func Markdown(turns []models.Turn) string {
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteString("\n")
		}
		speaker := "You"
		if t.Role == models.RoleAssistant {
			speaker = "Assistant"
		}
		fmt.Fprintf(&b, "**%s:** %s\n", speaker, t.Content)
		if len(t.Sources) > 0 {
			b.WriteString("\n_Sources:_\n\n")
			for _, s := range t.Sources {
				fmt.Fprintf(&b, "- Page %d: *%s*\n", s.Page, oneLine(s.Excerpt))
			}
		}
	}
	return b.String()
}

// HTML renders the markdown transcript to an HTML fragment.
func HTML(turns []models.Turn) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(Markdown(turns)), &buf); err != nil {
		return "", fmt.Errorf("failed to render transcript: %w", err)
	}
	return buf.String(), nil
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
