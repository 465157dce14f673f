package tfidf

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentFrequency_CountsDistinctDocuments(t *testing.T) {
	docs := [][]int32{
		{0, 0, 0, 1},
		{1, 2},
		{},
		{2, 2},
	}
	df := DocumentFrequency(docs, 4)
	assert.Equal(t, []int{1, 2, 2, 0}, df)
}

func TestIDF(t *testing.T) {
	idf := IDF([]int{1, 3, 0}, 3)
	assert.InDelta(t, math.Log(4/1.5)+1, idf[0], 1e-12)
	assert.InDelta(t, math.Log(4/3.5)+1, idf[1], 1e-12)
	// df 0 is treated as 1
	assert.Equal(t, idf[0], idf[2])
	for _, w := range idf {
		assert.Greater(t, w, 0.0)
	}
}

func TestFit(t *testing.T) {
	m, err := Fit([][]int32{{0, 1}, {1}}, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Docs())
	assert.Equal(t, 2, m.VocabSize())
	assert.Equal(t, 1, m.DocFreq(0))
	assert.Equal(t, 2, m.DocFreq(1))
	assert.Greater(t, m.IDF()[0], m.IDF()[1])

	_, err = Fit(nil, -1)
	assert.Error(t, err)
}

func TestVector(t *testing.T) {
	idf := []float64{2, 1, 3}
	v := Weigh([]int32{2, 0, 2, 2}, idf)

	require.True(t, v.Valid())
	assert.Equal(t, []int32{0, 2}, v.Indices)

	w0 := 1.0 * 2
	w2 := (1 + math.Log(3)) * 3
	norm := math.Sqrt(w0*w0 + w2*w2)
	assert.InDelta(t, norm, v.Norm, 1e-12)
	assert.InDelta(t, w0/(norm+1e-8), v.Weights[0], 1e-12)
	assert.InDelta(t, w2/(norm+1e-8), v.Weights[1], 1e-12)
}

func TestVector_Empty(t *testing.T) {
	m, err := Fit([][]int32{{0}}, 1)
	require.NoError(t, err)
	v := m.Vector(nil)
	assert.Zero(t, v.Len())
	assert.Zero(t, v.Norm)
}
