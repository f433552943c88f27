// Package console provides an interactive terminal chat over the ingested
// documents.
package console

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/sparkline"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fyrsmithlabs/docrag/internal/app"
	"github.com/fyrsmithlabs/docrag/internal/document"
	"github.com/fyrsmithlabs/docrag/internal/generation"
)

const (
	sparklineWidth  = 30
	sparklineHeight = 3
	minWidth        = 40
	// reservedLines is everything outside the transcript: header, status,
	// sources section, input box, footer and the borders around them.
	reservedLines = 14
)

// Backend answers questions. *app.App satisfies it.
type Backend interface {
	Chat(ctx context.Context, question, persona string) (*app.Answer, error)
	Documents(ctx context.Context) ([]*document.Document, error)
}

// Model is the bubbletea model of the chat console.
type Model struct {
	ctx      context.Context
	backend  Backend
	personas []generation.Persona
	persona  int

	input      textinput.Model
	transcript viewport.Model
	confidence progress.Model

	exchanges []exchange
	documents int
	totalSize int64
	waiting   bool
	ready     bool
	quitting  bool
	err       error
}

type exchange struct {
	question string
	persona  string
	answer   *app.Answer
	took     time.Duration
}

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	containerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	footerKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)

	sparklineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51"))
)

// NewModel creates a console answering through backend. persona selects
// the initial persona by name; unknown names select the first one.
func NewModel(ctx context.Context, backend Backend, personas []generation.Persona, persona string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0

	m := Model{
		ctx:        ctx,
		backend:    backend,
		personas:   personas,
		input:      ti,
		transcript: viewport.New(minWidth, 10),
		confidence: progress.New(
			progress.WithGradient("#ff0000", "#00ff00"),
			progress.WithWidth(sparklineWidth),
		),
	}
	for i, p := range personas {
		if p.Name == persona {
			m.persona = i
		}
	}
	return m
}

// Message types
type answerMsg exchange
type documentsMsg []*document.Document
type errMsg error

// Init loads the document summary and starts the cursor blinking.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.loadDocuments())
}

func (m Model) loadDocuments() tea.Cmd {
	return func() tea.Msg {
		docs, err := m.backend.Documents(m.ctx)
		if err != nil {
			return errMsg(err)
		}
		return documentsMsg(docs)
	}
}

func (m Model) ask(question string) tea.Cmd {
	persona := m.currentPersona()
	return func() tea.Msg {
		start := time.Now()
		answer, err := m.backend.Chat(m.ctx, question, persona.Name)
		if err != nil {
			return errMsg(err)
		}
		return answerMsg{
			question: question,
			persona:  persona.Label,
			answer:   answer,
			took:     time.Since(start),
		}
	}
}

func (m Model) currentPersona() generation.Persona {
	if len(m.personas) == 0 {
		return generation.Persona{}
	}
	return m.personas[m.persona]
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		width := max(minWidth, msg.Width-4)
		m.transcript.Width = width
		m.transcript.Height = max(3, msg.Height-reservedLines)
		m.input.Width = width - 4
		m.transcript.SetContent(m.renderTranscript())
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyTab:
			if len(m.personas) > 0 {
				m.persona = (m.persona + 1) % len(m.personas)
			}
			return m, nil
		case tea.KeyEnter:
			question := strings.TrimSpace(m.input.Value())
			if question == "" || m.waiting {
				return m, nil
			}
			m.waiting = true
			m.err = nil
			m.input.Reset()
			return m, m.ask(question)
		case tea.KeyUp, tea.KeyDown, tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.transcript, cmd = m.transcript.Update(msg)
			return m, cmd
		}

	case answerMsg:
		m.waiting = false
		m.exchanges = append(m.exchanges, exchange(msg))
		m.transcript.SetContent(m.renderTranscript())
		m.transcript.GotoBottom()
		return m, nil

	case documentsMsg:
		m.documents = len(msg)
		m.totalSize = 0
		for _, d := range msg {
			m.totalSize += d.SizeBytes
		}
		return m, nil

	case errMsg:
		m.waiting = false
		m.err = error(msg)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the console
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading..."
	}

	var b strings.Builder
	persona := m.currentPersona()
	b.WriteString(headerStyle.Render(" docrag ") + "   " +
		labelStyle.Render("Persona: ") + valueStyle.Render(persona.Label) + "   " +
		dimStyle.Render(fmt.Sprintf("%d documents, %s", m.documents, FormatSize(m.totalSize))) + "\n")

	b.WriteString(containerStyle.Render(m.transcript.View()) + "\n")
	b.WriteString(m.renderSources())

	switch {
	case m.err != nil:
		b.WriteString(errorStyle.Render("Error: "+m.err.Error()) + "\n")
	case m.waiting:
		b.WriteString(dimStyle.Render("Thinking...") + "\n")
	default:
		b.WriteString("\n")
	}

	b.WriteString(containerStyle.Render(m.input.View()) + "\n")
	b.WriteString(footerKeyStyle.Render("[enter]") + footerStyle.Render(" ask  ") +
		footerKeyStyle.Render("[tab]") + footerStyle.Render(" persona  ") +
		footerKeyStyle.Render("[up/down]") + footerStyle.Render(" scroll  ") +
		footerKeyStyle.Render("[esc]") + footerStyle.Render(" quit"))
	return b.String()
}

func (m Model) renderTranscript() string {
	if len(m.exchanges) == 0 {
		return dimStyle.Render("No questions yet.")
	}
	wrap := lipgloss.NewStyle().Width(m.transcript.Width)

	var b strings.Builder
	for i, ex := range m.exchanges {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(wrap.Render(labelStyle.Render("You: ")+ex.question) + "\n")
		b.WriteString(wrap.Render(valueStyle.Render(ex.persona+": ")+ex.answer.Reply.Content) + "\n")
		for j, s := range ex.answer.Sources {
			b.WriteString(dimStyle.Render(fmt.Sprintf("  [%d] %s (%s)", j+1, s.Chunk.Source, FormatScore(s.Score))) + "\n")
		}
		b.WriteString(dimStyle.Render("  "+FormatLatency(ex.took.Seconds())) + "\n")
	}
	return b.String()
}

// renderSources charts the similarity scores behind the latest answer.
func (m Model) renderSources() string {
	var scores []float64
	if n := len(m.exchanges); n > 0 {
		for _, s := range m.exchanges[n-1].answer.Sources {
			scores = append(scores, s.Score)
		}
	}

	out := sectionStyle.Render("| Sources") + "\n"
	if len(scores) == 0 {
		return out + dimStyle.Render("  no passages above the similarity threshold") + "\n"
	}

	spark := sparkline.New(sparklineWidth, sparklineHeight)
	for _, s := range scores {
		spark.Push(s)
	}
	spark.Draw()

	top := scores[0]
	if top > 1 {
		top = 1
	}
	out += labelStyle.Render("  Scores: ") + sparklineStyle.Render(spark.View()) + "\n"
	out += labelStyle.Render("  Best:   ") + m.confidence.ViewAs(top) +
		" " + dimStyle.Render(FormatPercentage(top)) + "\n"
	return out
}
