// Package corpus loads the ordered document sequence the index is built
// from, either as JSONL records or as plain text files split into sentence
// chunks.
package corpus

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"

	"sparserag/internal/domain"
)

const maxRecordSize = 16 << 20

// Record is one JSONL corpus line.
type Record struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Text  *string `json:"text"`
}

// JSONLProvider reads one {"id","title","text"} record per line.
type JSONLProvider struct {
	path   string
	logger *slog.Logger
}

func NewJSONLProvider(path string) *JSONLProvider {
	return &JSONLProvider{
		path:   path,
		logger: slog.Default().With("component", "corpus", "format", FormatJSONL),
	}
}

// Load returns the records in file order. Blank lines are skipped; any other
// undecodable line, or a record without text, fails the whole load.
func (p *JSONLProvider) Load(ctx context.Context) ([]domain.Document, error) {
	f, err := os.Open(p.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, p.path)
		}
		return nil, fmt.Errorf("open corpus: %w", err)
	}
	defer f.Close()

	var docs []domain.Document
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxRecordSize)
	for lineNo := 1; sc.Scan(); lineNo++ {
		if err := ctx.Err(); err != nil {
			return nil, domain.Cancelled(err)
		}
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", p.path, lineNo, err)
		}
		if rec.Text == nil {
			return nil, fmt.Errorf("%s:%d: record has no text field", p.path, lineNo)
		}
		idx := len(docs)
		id := rec.ID
		if id == "" {
			id = strconv.Itoa(idx)
		}
		docs = append(docs, domain.Document{
			Index: idx,
			ID:    id,
			Title: rec.Title,
			Path:  p.path,
			Text:  *rec.Text,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read corpus %s: %w", p.path, err)
	}
	p.logger.Info("corpus loaded", "path", p.path, "documents", len(docs))
	return docs, nil
}
