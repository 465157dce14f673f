package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"sparserag/internal/domain"
)

// outputJSON writes a value as formatted JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

const snippetLen = 160

// truncate collapses whitespace and cuts s to at most n runes.
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-3]) + "..."
}

func printHits(w io.Writer, hits []domain.RetrievalHit) {
	if len(hits) == 0 {
		fmt.Fprintln(w, "no results")
		return
	}
	for i, h := range hits {
		id := h.DocumentID
		if id == "" {
			id = fmt.Sprint(h.DocumentIndex)
		}
		fmt.Fprintf(w, "%2d. [%s] score=%.4f\n    %s\n", i+1, id, h.Score, truncate(h.Text, snippetLen))
	}
}

// progressPrinter redraws one status line in place.
type progressPrinter struct {
	w       io.Writer
	printed bool
}

func (p *progressPrinter) update(g domain.GenerationProgress) {
	fmt.Fprintf(p.w, "\r%-60s", g.String())
	p.printed = true
}

func (p *progressPrinter) done() {
	if p.printed {
		fmt.Fprintln(p.w)
	}
}
