package corpus

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"sparserag/internal/domain"
)

// TextProvider reads plain text files and turns every sentence chunk into
// its own document. The source may be a file, a directory (searched
// recursively for .txt and .md files) or a glob pattern.
type TextProvider struct {
	source  string
	chunker domain.Chunker
	logger  *slog.Logger
}

func NewTextProvider(source string, chunker domain.Chunker) *TextProvider {
	return &TextProvider{
		source:  source,
		chunker: chunker,
		logger:  slog.Default().With("component", "corpus", "format", FormatText),
	}
}

func (p *TextProvider) Load(ctx context.Context) ([]domain.Document, error) {
	files, err := p.files()
	if err != nil {
		return nil, err
	}
	var docs []domain.Document
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, domain.Cancelled(err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		chunks, err := p.chunker.Chunk(domain.Document{ID: filepath.ToSlash(path), Title: title, Path: path, Text: string(data)})
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", path, err)
		}
		for _, ch := range chunks {
			docs = append(docs, domain.Document{
				Index: len(docs),
				ID:    ch.ChunkID,
				Title: title,
				Path:  path,
				Text:  ch.Text,
			})
		}
	}
	p.logger.Info("corpus loaded", "source", p.source, "files", len(files), "documents", len(docs))
	return docs, nil
}

// files resolves the source to a sorted list of regular files.
func (p *TextProvider) files() ([]string, error) {
	info, err := os.Stat(p.source)
	switch {
	case err == nil && info.IsDir():
		var files []string
		err := filepath.WalkDir(p.source, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.Type().IsRegular() && isTextFile(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", p.source, err)
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("%w: no text files under %s", domain.ErrNotFound, p.source)
		}
		return files, nil
	case err == nil:
		return []string{p.source}, nil
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("stat %s: %w", p.source, err)
	}

	matches, err := filepath.Glob(p.source)
	if err != nil {
		return nil, fmt.Errorf("bad corpus pattern %q: %w", p.source, err)
	}
	matches = slices.DeleteFunc(matches, func(path string) bool {
		info, err := os.Stat(path)
		return err != nil || !info.Mode().IsRegular()
	})
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, p.source)
	}
	slices.Sort(matches)
	return matches, nil
}

func isTextFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", ".text":
		return true
	}
	return false
}
