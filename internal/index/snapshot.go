package index

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"time"

	"sparserag/internal/domain"
	"sparserag/internal/embedding/tfidf"
	"sparserag/internal/sparse"
	"sparserag/internal/tokenizer"
)

// BuildStats summarises one successful build.
type BuildStats struct {
	Documents      int           `json:"documents"`
	VocabularySize int           `json:"vocabulary_size"`
	Tokens         int           `json:"tokens"`
	Workers        int           `json:"workers"`
	Duration       time.Duration `json:"duration"`
}

// Snapshot is an immutable, fully built index. A rebuild produces a new
// Snapshot; nothing mutates a Snapshot after Build returns it, so any number
// of goroutines may read it concurrently.
type Snapshot struct {
	generation  uint64
	fingerprint string
	builtAt     time.Time
	vocab      *Vocabulary
	model      *tfidf.Model
	vectors    []sparse.Vector
	docs       []domain.Document
	stats      BuildStats
}

// Generation is a per-builder sequence number, increasing with every
// successful build.
func (s *Snapshot) Generation() uint64 { return s.generation }

// Fingerprint is a hex digest of the indexed documents in order. Two
// snapshots with equal fingerprints rank every query identically, whichever
// process or builder produced them.
func (s *Snapshot) Fingerprint() string { return s.fingerprint }

// BuiltAt returns when the build finished.
func (s *Snapshot) BuiltAt() time.Time { return s.builtAt }

// Stats returns the build statistics.
func (s *Snapshot) Stats() BuildStats { return s.stats }

// Vocabulary returns the frozen vocabulary.
func (s *Snapshot) Vocabulary() *Vocabulary { return s.vocab }

// IDF returns the per-id IDF weights. Callers must not modify the slice.
func (s *Snapshot) IDF() []float64 { return s.model.IDF() }

// Len returns the number of documents.
func (s *Snapshot) Len() int { return len(s.docs) }

// Document returns document i.
func (s *Snapshot) Document(i int) domain.Document { return s.docs[i] }

// Vector returns the normalised weight vector of document i.
func (s *Snapshot) Vector(i int) sparse.Vector { return s.vectors[i] }

// QueryVector tokenizes query, drops tokens missing from the vocabulary and
// weighs the rest exactly like a document.
func (s *Snapshot) QueryVector(query string) sparse.Vector {
	var ids []int32
	for tok := range tokenizer.Tokens(query) {
		if id, ok := s.vocab.Lookup(tok); ok {
			ids = append(ids, id)
		}
	}
	return s.model.Vector(ids)
}

// fingerprint hashes id, title and text of every document. Fields are length
// prefixed so that shifting bytes between neighbours changes the digest.
func fingerprint(docs []domain.Document) string {
	h := sha256.New()
	for _, d := range docs {
		writeField(h, d.ID)
		writeField(h, d.Title)
		writeField(h, d.Text)
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}

func writeField(h hash.Hash, s string) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(s)))
	h.Write(n[:])
	h.Write([]byte(s))
}
