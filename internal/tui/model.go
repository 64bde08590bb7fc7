package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"docqa/internal/models"
	"docqa/internal/session"
	"docqa/internal/transcript"
)

// SessionPort is the TUI-facing subset of the session controller.
type SessionPort interface {
	Ingest(ctx context.Context, data []byte, filename string) (*session.IngestResult, error)
	Ask(ctx context.Context, question string) (string, []models.Source, error)
	Reset()
	History() []models.Turn
}

type ingestedMsg struct {
	result *session.IngestResult
	turns  []models.Turn
	err    error
}

type answeredMsg struct {
	turns []models.Turn
	err   error
}

// Model is the Bubble Tea model of the chat screen.
type Model struct {
	ctx      context.Context
	session  SessionPort
	input    textinput.Model
	viewport viewport.Model
	document string
	turns    []models.Turn
	status   string
	busy     bool
	ready    bool
}

func New(ctx context.Context, s SessionPort, document string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question, /load <file> or /reset"
	ti.Focus()
	ti.CharLimit = 0

	status := "Load a document with /load <path>."
	if document != "" {
		status = fmt.Sprintf("Ready. Ask about %s.", document)
	}
	return Model{
		ctx:      ctx,
		session:  s,
		input:    ti,
		viewport: viewport.New(0, 0),
		document: document,
		turns:    s.History(),
		status:   status,
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, bh := chatBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		reserved := 2 + 1 + ih + 1 // header and document, status, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-bh)
		m.refresh()
		return m, nil

	case ingestedMsg:
		m.busy = false
		m.turns = msg.turns
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
		} else {
			m.document = msg.result.Document
			m.status = fmt.Sprintf("Indexed %s: %d pages, %d chunks.", msg.result.Document, msg.result.Pages, msg.result.Chunks)
		}
		m.refresh()
		return m, nil

	case answeredMsg:
		m.busy = false
		m.turns = msg.turns
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
		} else {
			m.status = "Answered."
		}
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		if msg.Type == tea.KeyEnter {
			return m.submit()
		}
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	line := strings.TrimSpace(m.input.Value())
	if line == "" {
		return m, nil
	}
	if m.busy {
		m.status = "Still working, please wait."
		return m, nil
	}
	m.input.SetValue("")

	switch {
	case line == "/quit":
		return m, tea.Quit
	case line == "/reset":
		m.session.Reset()
		m.document = ""
		m.turns = nil
		m.status = "Session cleared. Load a document with /load <path>."
		m.refresh()
		return m, nil
	case strings.HasPrefix(line, "/load"):
		path := strings.TrimSpace(strings.TrimPrefix(line, "/load"))
		if path == "" {
			m.status = "Usage: /load <path>"
			return m, nil
		}
		m.busy = true
		m.status = "Processing " + path + "..."
		return m, m.ingest(path)
	}

	m.busy = true
	m.status = "Thinking..."
	return m, m.ask(line)
}

// ingest reads the file and hands its bytes to the session as an upload.
func (m Model) ingest(path string) tea.Cmd {
	ctx, s := m.ctx, m.session
	return func() tea.Msg {
		data, err := os.ReadFile(path)
		if err != nil {
			return ingestedMsg{turns: s.History(), err: err}
		}
		res, err := s.Ingest(ctx, data, filepath.Base(path))
		return ingestedMsg{result: res, turns: s.History(), err: err}
	}
}

func (m Model) ask(question string) tea.Cmd {
	ctx, s := m.ctx, m.session
	return func() tea.Msg {
		_, _, err := s.Ask(ctx, question)
		return answeredMsg{turns: s.History(), err: err}
	}
}

// refresh redraws the chat from the last history snapshot, so it never
// waits on a running command.
func (m *Model) refresh() {
	if len(m.turns) == 0 {
		m.viewport.SetContent("No questions yet.")
		return
	}
	m.viewport.SetContent(transcript.Markdown(m.turns))
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Document Q&A")
	doc := m.document
	if doc == "" {
		doc = "no document loaded"
	}
	document := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(doc)
	chat := chatBoxStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())

	statusStyle := okStyle
	if strings.HasPrefix(m.status, "Error") {
		statusStyle = errStyle
	}
	return header + "\n" + document + "\n" + chat + "\n" + input + "\n" + statusStyle.Render(m.status)
}

var (
	chatBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)
