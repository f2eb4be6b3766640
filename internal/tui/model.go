// Package tui is an interactive chat console over the orchestrator.
package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"supportbot/internal/domain"
)

// Asker is the chat-facing subset of the orchestrator.
type Asker interface {
	Orchestrate(ctx context.Context, q domain.Query) domain.OrchestrationResult
}

type turn struct {
	query  string
	result domain.OrchestrationResult
}

// answerMsg carries a finished orchestration back into Update.
type answerMsg struct {
	turn turn
}

// Model is the Bubble Tea model for the chat console.
type Model struct {
	asker    Asker
	userID   string
	timeout  time.Duration
	input    textinput.Model
	viewport viewport.Model
	turns    []turn
	banner   string
	status   string
	cursor   int
	pending  bool
	ready    bool
}

// New creates a chat console for userID. banner is shown under the title.
func New(asker Asker, userID, banner string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a support question and press Enter"
	ti.Focus()
	ti.CharLimit = 1000
	vp := viewport.New(0, 0)
	return Model{
		asker:    asker,
		userID:   userID,
		timeout:  60 * time.Second,
		input:    ti,
		viewport: vp,
		banner:   banner,
		status:   "Ready. Up/Down browse sources, Ctrl+C quits.",
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) ask(q string) tea.Cmd {
	asker, userID, timeout := m.asker, m.userID, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return answerMsg{turn: turn{query: q, result: asker.Orchestrate(ctx, domain.Query{Text: q, UserID: userID})}}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := transcriptBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header+banner, status, input box, spacer
		vh := msg.Height - reserved
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.refresh()
		return m, nil
	case answerMsg:
		m.pending = false
		m.turns = append(m.turns, msg.turn)
		m.cursor = 0
		r := msg.turn.result
		m.status = fmt.Sprintf("intent=%s confidence=%.2f action=%s sources=%d", r.Intent, r.Confidence, actionName(r.ActionInvoked), len(r.SourceDocs))
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.pending {
				return m, nil
			}
			m.input.SetValue("")
			m.pending = true
			m.status = "Thinking..."
			return m, m.ask(q)
		case "down":
			if docs := m.lastDocs(); len(docs) > 0 {
				m.cursor = (m.cursor + 1) % len(docs)
				m.refresh()
				return m, nil
			}
		case "up":
			if docs := m.lastDocs(); len(docs) > 0 {
				m.cursor = (m.cursor - 1 + len(docs)) % len(docs)
				m.refresh()
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Support Assistant")
	banner := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.banner)
	transcript := transcriptBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	return header + "\n" + banner + "\n" + transcript + "\n" + input + "\n" + status
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m Model) lastDocs() []domain.RetrievedDocument {
	if len(m.turns) == 0 {
		return nil
	}
	return m.turns[len(m.turns)-1].result.SourceDocs
}

func (m Model) renderTranscript() string {
	if len(m.turns) == 0 {
		return "No messages yet."
	}
	var b strings.Builder
	for i, t := range m.turns {
		b.WriteString(userStyle.Render("You: "))
		b.WriteString(t.query)
		b.WriteString("\n")
		b.WriteString(botStyle.Render("Bot: "))
		b.WriteString(t.result.Response)
		b.WriteString("\n")
		if i == len(m.turns)-1 && len(t.result.SourceDocs) > 0 {
			d := t.result.SourceDocs[m.cursor]
			b.WriteString("\n")
			b.WriteString(sourceStyle.Render(fmt.Sprintf("Source %d/%d  score=%.3f", m.cursor+1, len(t.result.SourceDocs), d.SimilarityScore)))
			b.WriteString("\n")
			b.WriteString(highlightBestSentence(d.Text, t.query))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func actionName(a *string) string {
	if a == nil {
		return "none"
	}
	return *a
}

var (
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	userStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	botStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
	sourceStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	unicodeWordRe      = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe         = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
)

// highlightBestSentence emphasises the sentence sharing the most words
// with the query.
func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		sentences = []string{strings.TrimSpace(text)}
	}
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx, bestScore := 0, -1
	for i, s := range sentences {
		if score := tokenOverlapScore(qTokens, s); score > bestScore {
			bestScore, bestIdx = score, i
		}
	}
	for i := range sentences {
		sent := strings.TrimSpace(sentences[i])
		if i == bestIdx {
			sent = highlightStyle.Render(sent)
		}
		sentences[i] = sent
	}
	return strings.Join(sentences, " ")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	seen := map[string]struct{}{}
	for _, t := range unicodeWordRe.FindAllString(strings.ToLower(sentence), -1) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
