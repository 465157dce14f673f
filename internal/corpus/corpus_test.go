package corpus

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sparserag/internal/chunker"
	"sparserag/internal/domain"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestJSONL_Load(t *testing.T) {
	path := writeFile(t, t.TempDir(), "corpus.jsonl",
		`{"id":"a","title":"First","text":"the cat sat"}`+"\n"+
			"\n"+
			`{"text":"the dog sat"}`+"\n"+
			`{"id":"c","text":""}`+"\n")

	docs, err := NewJSONLProvider(path).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 3)

	assert.Equal(t, domain.Document{Index: 0, ID: "a", Title: "First", Path: path, Text: "the cat sat"}, docs[0])
	assert.Equal(t, "1", docs[1].ID)
	assert.Equal(t, 1, docs[1].Index)
	assert.Equal(t, "", docs[2].Text)
}

func TestJSONL_Errors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"malformed", `{"text":"ok"}` + "\n" + `{broken`, ":2:"},
		{"missing text", `{"id":"x"}`, "no text field"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, tt.name+".jsonl", tt.content)
			_, err := NewJSONLProvider(path).Load(context.Background())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestJSONL_NotFound(t *testing.T) {
	_, err := NewJSONLProvider(filepath.Join(t.TempDir(), "missing.jsonl")).Load(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestText_LoadDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.txt", "Bees buzz. Bees sting.")
	writeFile(t, dir, "sub/a.md", "Ants march. Ants carry leaves. Ants rest.")
	writeFile(t, dir, "ignored.bin", "binary")

	p, err := New(Options{Path: dir, Format: FormatText, SentencesPerChunk: 2, OverlapSentences: 0})
	require.NoError(t, err)
	docs, err := p.Load(context.Background())
	require.NoError(t, err)

	var texts []string
	for i, d := range docs {
		assert.Equal(t, i, d.Index)
		texts = append(texts, d.Text)
	}
	assert.Equal(t, []string{"Bees buzz. Bees sting.", "Ants march. Ants carry leaves.", "Ants rest."}, texts)
	assert.Equal(t, "a", docs[1].Title)
}

func TestText_Glob(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "one.txt", "First file.")
	writeFile(t, dir, "two.txt", "Second file.")

	docs, err := NewTextProvider(filepath.Join(dir, "*.txt"), chunker.NewSentenceChunker(5, 0)).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "First file.", docs[0].Text)
	assert.Equal(t, "Second file.", docs[1].Text)
	assert.Equal(t, filepath.ToSlash(filepath.Join(dir, "two.txt"))+":0", docs[1].ID)
}

func TestText_NotFound(t *testing.T) {
	p, err := New(Options{Path: filepath.Join(t.TempDir(), "nothing-*.txt"), Format: FormatText})
	require.NoError(t, err)
	_, err = p.Load(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestNew_UnknownFormat(t *testing.T) {
	_, err := New(Options{Path: "x", Format: "parquet"})
	assert.Error(t, err)
}
