// Package tfidf implements the log-TF x smoothed-IDF weight model over a
// fixed integer vocabulary.
package tfidf

import (
	"errors"
	"math"
	"slices"

	"sparserag/internal/sparse"
)

// Model holds IDF weights computed from a corpus of global-id token streams.
// It is read-only after Fit returns.
type Model struct {
	idf  []float64
	df   []int
	docs int
}

// Fit computes document frequencies and IDF weights. docs[i] holds the
// vocabulary ids of document i in token order; every id must be in
// [0, vocabSize).
func Fit(docs [][]int32, vocabSize int) (*Model, error) {
	if vocabSize < 0 {
		return nil, errors.New("negative vocabulary size")
	}
	df := DocumentFrequency(docs, vocabSize)
	return &Model{
		idf:  IDF(df, len(docs)),
		df:   df,
		docs: len(docs),
	}, nil
}

// DocumentFrequency counts, for every id, the number of distinct documents
// that contain it at least once.
func DocumentFrequency(docs [][]int32, vocabSize int) []int {
	df := make([]int, vocabSize)
	// lastDoc[id] holds the 1-based index of the last document that counted id.
	lastDoc := make([]int, vocabSize)
	for d, ids := range docs {
		for _, id := range ids {
			if lastDoc[id] == d+1 {
				continue
			}
			lastDoc[id] = d + 1
			df[id]++
		}
	}
	return df
}

// IDF returns ln((N+1)/(df+0.5)) + 1 per id, treating df 0 as 1. The result
// is strictly positive.
func IDF(df []int, numDocs int) []float64 {
	idf := make([]float64, len(df))
	n := float64(numDocs)
	for i, f := range df {
		if f == 0 {
			f = 1
		}
		idf[i] = math.Log((n+1)/(float64(f)+0.5)) + 1
	}
	return idf
}

// IDF returns the per-id weights. Callers must not modify the slice.
func (m *Model) IDF() []float64 { return m.idf }

// DocFreq returns the document frequency of id.
func (m *Model) DocFreq(id int32) int { return m.df[id] }

// Docs returns the number of documents the model was fitted on.
func (m *Model) Docs() int { return m.docs }

// VocabSize returns the number of ids the model covers.
func (m *Model) VocabSize() int { return len(m.idf) }

// Vector weights ids by (1 + ln tf) * idf and L2-normalises the result. Ids
// must be inside the vocabulary; an empty input yields an empty vector with
// norm 0.
func (m *Model) Vector(ids []int32) sparse.Vector {
	return Weigh(ids, m.idf)
}

// Weigh is Vector for a caller-held IDF table.
func Weigh(ids []int32, idf []float64) sparse.Vector {
	if len(ids) == 0 {
		return sparse.Vector{}
	}
	tf := make(map[int32]int, len(ids))
	for _, id := range ids {
		tf[id]++
	}
	indices := make([]int32, 0, len(tf))
	for id := range tf {
		indices = append(indices, id)
	}
	slices.Sort(indices)
	weights := make([]float64, len(indices))
	for i, id := range indices {
		weights[i] = (1 + math.Log(float64(tf[id]))) * idf[id]
	}
	v := sparse.Vector{Indices: indices, Weights: weights}
	v.Normalize()
	return v
}
