package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sparserag/internal/domain"
	"sparserag/internal/service"
)

type stubPort struct {
	hits    []domain.RetrievalHit
	block   chan struct{}
	err     error
	askCtx  chan context.Context
	release chan struct{}
}

func (s *stubPort) Retrieve(ctx context.Context, _ string, _ int) ([]domain.RetrievalHit, error) {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return nil, domain.Cancelled(ctx.Err())
		}
	}
	return s.hits, s.err
}

func (s *stubPort) Ask(ctx context.Context, q string, _ service.AskOptions, onProgress domain.ProgressFunc) (service.Answer, error) {
	if s.askCtx != nil {
		s.askCtx <- ctx
	}
	onProgress(domain.GenerationProgress{TokensSoFar: 3, Target: 10, Elapsed: time.Second})
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return service.Answer{}, domain.Cancelled(ctx.Err())
		}
	}
	return service.Answer{Text: "answer to " + q, Hits: s.hits, Tokens: 3}, nil
}

func (s *stubPort) Summary() string { return "corpus summary" }
func (s *stubPort) TopK() int       { return 3 }

func typeQuery(t *testing.T, m Model, q string) Model {
	t.Helper()
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(q)})
	return next.(Model)
}

// enter submits the typed query and applies the search result.
func enter(t *testing.T, m Model) Model {
	t.Helper()
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	next, _ = next.Update(cmd())
	return next.(Model)
}

func sized(m Model) Model {
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return next.(Model)
}

func TestSearchAndNavigate(t *testing.T) {
	port := &stubPort{hits: []domain.RetrievalHit{
		{DocumentIndex: 0, Score: 0.8, Text: "The cat sat. The dog ran."},
		{DocumentIndex: 2, Score: 0.1, Text: "A bird flew."},
	}}
	m := sized(New(port))
	m = typeQuery(t, m, "cat")

	m = enter(t, m)
	require.Len(t, m.results, 2)
	assert.Contains(t, m.status, `2 results for "cat"`)
	assert.Contains(t, m.render(), "Result 1/2")

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(Model)
	assert.Equal(t, 1, m.cursor)
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(Model)
	assert.Equal(t, 0, m.cursor)
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	m = next.(Model)
	assert.Equal(t, 1, m.cursor)

	assert.Contains(t, m.View(), "corpus summary")
}

func TestSearchError(t *testing.T) {
	port := &stubPort{err: domain.WrapPhase(domain.PhaseRetrieve, domain.ErrNotReady)}
	m := enter(t, typeQuery(t, sized(New(port)), "cat"))
	assert.Equal(t, "Error: retrieve: index not ready", m.status)
	assert.Empty(t, m.results)
}

func TestSearchRunsOffTheUpdateLoop(t *testing.T) {
	port := &stubPort{
		hits:  []domain.RetrievalHit{{DocumentIndex: 0, Score: 0.5, Text: "The cat sat."}},
		block: make(chan struct{}),
	}
	m := typeQuery(t, sized(New(port)), "cat")

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	require.NotNil(t, cmd)
	assert.Equal(t, `Searching for "cat"...`, m.status)
	assert.Empty(t, m.results)

	results := make(chan tea.Msg, 1)
	go func() { results <- cmd() }()
	close(port.block)
	next, _ = m.Update(<-results)
	m = next.(Model)
	require.Len(t, m.results, 1)
	assert.Equal(t, `1 results for "cat"`, m.status)
}

func TestNewerSearchSupersedesOlder(t *testing.T) {
	port := &stubPort{hits: []domain.RetrievalHit{{DocumentIndex: 1, Text: "A dog ran."}}}
	m := typeQuery(t, sized(New(port)), "dog")

	next, first := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	next, second := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)

	stale := first().(searchMsg)
	stale.hits = nil
	stale.err = domain.ErrNotReady
	next, _ = m.Update(stale)
	m = next.(Model)
	assert.Equal(t, `Searching for "dog"...`, m.status)

	next, _ = m.Update(second())
	m = next.(Model)
	require.Len(t, m.results, 1)
	assert.Equal(t, "A dog ran.", m.results[0].Text)
}

// drain feeds pending generation events back into the model until the
// answer arrives.
func drain(t *testing.T, m Model) Model {
	t.Helper()
	for i := 0; i < 10 && m.asking; i++ {
		msg := waitForEvent(m.events)()
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	return m
}

func TestAskStreamsToAnswer(t *testing.T) {
	port := &stubPort{hits: []domain.RetrievalHit{{Text: "source passage."}}}
	m := typeQuery(t, sized(New(port)), "why")

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlG})
	m = next.(Model)
	require.True(t, m.asking)
	require.NotNil(t, cmd)

	msg := waitForEvent(m.events)()
	require.IsType(t, progressMsg{}, msg)
	next, _ = m.Update(msg)
	m = next.(Model)
	assert.Equal(t, "[generate]  30% | tokens=3 | 3.0 t/s | ETA 2s", m.status)

	m = drain(t, m)
	assert.False(t, m.asking)
	assert.Equal(t, "answer to why", m.answer)
	assert.True(t, strings.HasPrefix(m.status, "Answer ready"))
	assert.Contains(t, m.render(), "answer to why")
}

func TestEscCancelsAsk(t *testing.T) {
	port := &stubPort{askCtx: make(chan context.Context, 1), release: make(chan struct{})}
	m := typeQuery(t, sized(New(port)), "slow question")

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlG})
	m = next.(Model)
	ctx := <-port.askCtx

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = next.(Model)
	assert.Equal(t, "Cancelling...", m.status)
	assert.Error(t, ctx.Err())

	m = drain(t, m)
	assert.False(t, m.asking)
	assert.Equal(t, "Generation cancelled.", m.status)
	assert.Empty(t, m.answer)
}

func TestHighlightBestSentence(t *testing.T) {
	out := highlightBestSentence("Dogs bark. Cats purr loudly.", "cats purr")
	assert.Contains(t, out, highlightStyle.Render("Cats purr loudly."))
	assert.Equal(t, "Dogs bark. Cats purr.", highlightBestSentence("Dogs bark. Cats purr.", "   "))
}
