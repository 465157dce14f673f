// Package tui is the interactive terminal front end: type a query to browse
// ranked passages, press Ctrl+G to stream an answer, Esc to cancel it.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"sparserag/internal/chunker"
	"sparserag/internal/domain"
	"sparserag/internal/service"
	"sparserag/internal/tokenizer"
)

// RAGPort is the TUI-facing subset of the RAG service.
type RAGPort interface {
	Retrieve(ctx context.Context, query string, k int) ([]domain.RetrievalHit, error)
	Ask(ctx context.Context, question string, opts service.AskOptions, onProgress domain.ProgressFunc) (service.Answer, error)
	Summary() string
	TopK() int
}

type progressMsg domain.GenerationProgress

type searchMsg struct {
	seq   int
	query string
	hits  []domain.RetrievalHit
	err   error
}

type answerMsg struct {
	answer service.Answer
	err    error
}

// Model is the Bubble Tea model for the TUI application.
type Model struct {
	service   RAGPort
	input     textinput.Model
	viewport  viewport.Model
	spinner   spinner.Model
	results   []domain.RetrievalHit
	summary   string
	status    string
	cursor    int
	ready     bool
	lastQuery string

	searchSeq    int
	searchCancel context.CancelFunc

	asking bool
	answer string
	cancel context.CancelFunc
	events <-chan tea.Msg
}

// New creates a new TUI model instance.
func New(svc RAGPort) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type a query, Enter to search, Ctrl+G to ask"
	ti.Focus()
	ti.CharLimit = 0
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		service:  svc,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		summary:  svc.Summary(),
		status:   "Index ready. Type to search.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and generation events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header+summary, status, query box, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-rh)
		m.viewport.SetContent(m.render())
		return m, nil

	case progressMsg:
		if !m.asking {
			return m, nil
		}
		m.status = domain.GenerationProgress(msg).String()
		return m, waitForEvent(m.events)

	case searchMsg:
		if msg.seq != m.searchSeq {
			return m, nil
		}
		m.finishSearch(msg)
		m.viewport.SetContent(m.render())
		return m, nil

	case answerMsg:
		m.finishAsk(msg)
		m.viewport.SetContent(m.render())
		return m, nil

	case spinner.TickMsg:
		if !m.asking {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD:
			if m.cancel != nil {
				m.cancel()
			}
			if m.searchCancel != nil {
				m.searchCancel()
			}
			return m, tea.Quit
		case tea.KeyEsc:
			if m.asking && m.cancel != nil {
				m.cancel()
				m.status = "Cancelling..."
			}
			return m, nil
		case tea.KeyCtrlG:
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.asking {
				return m, nil
			}
			return m, m.startAsk(q)
		case tea.KeyEnter:
			q := strings.TrimSpace(m.input.Value())
			if q != "" {
				return m, m.search(q)
			}
		case tea.KeyDown:
			if len(m.results) > 0 {
				m.cursor = (m.cursor + 1) % len(m.results)
				m.viewport.SetContent(m.render())
				return m, nil
			}
		case tea.KeyUp:
			if len(m.results) > 0 {
				m.cursor = (m.cursor - 1 + len(m.results)) % len(m.results)
				m.viewport.SetContent(m.render())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// search returns a command running Retrieve off the update loop. A newer
// search cancels the one in flight and its late result is ignored.
func (m *Model) search(q string) tea.Cmd {
	if m.searchCancel != nil {
		m.searchCancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.searchCancel = cancel
	m.searchSeq++
	m.status = fmt.Sprintf("Searching for %q...", q)

	seq, svc, k := m.searchSeq, m.service, m.service.TopK()
	return func() tea.Msg {
		defer cancel()
		hits, err := svc.Retrieve(ctx, q, k)
		return searchMsg{seq: seq, query: q, hits: hits, err: err}
	}
}

func (m *Model) finishSearch(msg searchMsg) {
	m.searchCancel = nil
	if msg.err != nil {
		m.status = "Error: " + msg.err.Error()
		m.results = nil
		return
	}
	m.status = fmt.Sprintf("%d results for %q", len(msg.hits), msg.query)
	m.results = msg.hits
	m.cursor = 0
	m.lastQuery = msg.query
	m.answer = ""
}

// startAsk runs Ask on its own goroutine and feeds progress and the final
// answer back through a channel read by waitForEvent.
func (m *Model) startAsk(q string) tea.Cmd {
	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan tea.Msg, 32)
	m.cancel = cancel
	m.events = events
	m.asking = true
	m.answer = ""
	m.lastQuery = q
	m.status = "Generating..."

	svc := m.service
	go func() {
		defer close(events)
		ans, err := svc.Ask(ctx, q, service.AskOptions{}, func(p domain.GenerationProgress) {
			select {
			case events <- progressMsg(p):
			default:
				// the UI is behind; the next notification supersedes this one
			}
		})
		events <- answerMsg{answer: ans, err: err}
	}()
	return tea.Batch(m.spinner.Tick, waitForEvent(events))
}

func (m *Model) finishAsk(msg answerMsg) {
	if m.cancel != nil {
		m.cancel()
	}
	m.asking = false
	m.cancel = nil
	m.events = nil
	switch {
	case errors.Is(msg.err, domain.ErrCancelled):
		m.status = "Generation cancelled."
	case msg.err != nil:
		m.status = "Error: " + msg.err.Error()
	default:
		m.answer = msg.answer.Text
		m.results = msg.answer.Hits
		m.cursor = 0
		m.status = fmt.Sprintf("Answer ready (%d tokens, %d sources).", msg.answer.Tokens, len(msg.answer.Hits))
	}
}

func waitForEvent(events <-chan tea.Msg) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-events
		if !ok {
			return nil
		}
		return msg
	}
}

// View renders the TUI layout and current result.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("RAG Sparse Search")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	input := queryBoxStyle.Render(m.input.View())
	status := m.status
	if m.asking {
		status = m.spinner.View() + " " + status
	}
	status = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) render() string {
	var b strings.Builder
	if m.answer != "" {
		b.WriteString(answerStyle.Render("Answer"))
		b.WriteString("\n")
		b.WriteString(m.answer)
		b.WriteString("\n\n")
	}
	if len(m.results) == 0 {
		b.WriteString("No results yet.")
		return b.String()
	}
	r := m.results[m.cursor]
	fmt.Fprintf(&b, "Result %d/%d  doc=%d  score=%.3f", m.cursor+1, len(m.results), r.DocumentIndex, r.Score)
	if r.DocumentID != "" {
		fmt.Fprintf(&b, "  id=%s", r.DocumentID)
	}
	b.WriteString("\n\n")
	b.WriteString(highlightBestSentence(r.Text, m.lastQuery))
	return b.String()
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	answerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
)

// highlightBestSentence marks the sentence sharing the most distinct tokens
// with query.
func highlightBestSentence(text, query string) string {
	sentences := chunker.SplitSentences(text)
	if len(sentences) == 0 {
		return text
	}
	q := tokenSet(query)
	if len(q) == 0 {
		return strings.Join(sentences, " ")
	}
	best, bestScore := 0, -1
	for i, s := range sentences {
		score := 0
		for tok := range tokenSet(s) {
			if _, ok := q[tok]; ok {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	sentences[best] = highlightStyle.Render(sentences[best])
	return strings.Join(sentences, " ")
}

func tokenSet(s string) map[string]struct{} {
	m := map[string]struct{}{}
	for tok := range tokenizer.Tokens(s) {
		m[tok] = struct{}{}
	}
	return m
}
