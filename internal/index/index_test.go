package index

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sparserag/internal/domain"
	"sparserag/internal/sparse"
)

func docsOf(texts ...string) []domain.Document {
	docs := make([]domain.Document, len(texts))
	for i, t := range texts {
		docs[i] = domain.Document{Index: i, Text: t}
	}
	return docs
}

func TestPartitionRanges(t *testing.T) {
	tests := []struct {
		n, w int
		want [][2]int
	}{
		{n: 10, w: 1, want: [][2]int{{0, 10}}},
		{n: 10, w: 3, want: [][2]int{{0, 3}, {3, 6}, {6, 10}}},
		{n: 10, w: 4, want: [][2]int{{0, 2}, {2, 4}, {4, 6}, {6, 10}}},
		{n: 2, w: 4, want: [][2]int{{0, 1}, {1, 2}, {2, 2}, {2, 2}}},
		{n: 3, w: 0, want: [][2]int{{0, 3}}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("n=%d,w=%d", tt.n, tt.w), func(t *testing.T) {
			got := partitionRanges(tt.n, tt.w)
			assert.Equal(t, tt.want, got)
			covered := 0
			for _, r := range got {
				covered += r[1] - r[0]
			}
			assert.Equal(t, tt.n, covered)
		})
	}
}

func TestBuildPartition_LocalFirstSeenIDs(t *testing.T) {
	docs := docsOf("b a b", "c a")
	var pool bufferPool
	p, err := buildPartition(context.Background(), 0, docs, 0, 2, pool.get())
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a", "c"}, p.vocab.Tokens())
	assert.Equal(t, []int32{0, 1, 0, 2, 1}, p.tokens())
	assert.Equal(t, []Span{{Start: 0, Count: 3}, {Start: 3, Count: 2}}, p.spans)
}

func TestMerge_ResolvesThroughTokenStrings(t *testing.T) {
	// Worker 0 sees "x y", worker 1 sees "y z": both assign local id 0 to
	// different tokens, so forwarding local ids would be wrong.
	docs := docsOf("x y", "y z")
	var pool bufferPool
	p0, err := buildPartition(context.Background(), 0, docs, 0, 1, pool.get())
	require.NoError(t, err)
	p1, err := buildPartition(context.Background(), 1, docs, 1, 2, pool.get())
	require.NoError(t, err)
	require.Equal(t, []int32{0, 1}, p0.tokens())
	require.Equal(t, []int32{0, 1}, p1.tokens())

	vocab, stream, spans := merge([]*partition{p0, p1}, 2)
	assert.Equal(t, []string{"x", "y", "z"}, vocab.Tokens())
	assert.Equal(t, []int32{0, 1, 1, 2}, stream)
	assert.Equal(t, []Span{{0, 2}, {2, 2}}, spans)

	for d, sp := range spans {
		var got []string
		for _, id := range stream[sp.Start : sp.Start+sp.Count] {
			got = append(got, vocab.Token(id))
		}
		assert.Equal(t, []string{"x y", "y z"}[d], fmt.Sprintf("%s %s", got[0], got[1]))
	}
}

func TestBuild_EmptyCorpus(t *testing.T) {
	_, err := NewBuilder(2).Build(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrEmptyCorpus)
}

func TestBuild_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewBuilder(4).Build(ctx, docsOf("a", "b", "c", "d", "e"))
	assert.ErrorIs(t, err, domain.ErrCancelled)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuild_SnapshotInvariants(t *testing.T) {
	snap, err := NewBuilder(3).Build(context.Background(), docsOf(
		"the cat sat on the mat",
		"",
		"the dog sat",
		"a bird flew over the dog",
		"!!!",
	))
	require.NoError(t, err)

	assert.Equal(t, 5, snap.Len())
	assert.Len(t, snap.IDF(), snap.Vocabulary().Len())
	for i := 0; i < snap.Len(); i++ {
		v := snap.Vector(i)
		assert.True(t, v.Valid(), "document %d", i)
		assert.Equal(t, i, snap.Document(i).Index)
	}
	assert.Zero(t, snap.Vector(1).Len())
	assert.Zero(t, snap.Vector(1).Norm)
	assert.Zero(t, snap.Vector(4).Len())

	stats := snap.Stats()
	assert.Equal(t, 5, stats.Documents)
	assert.Equal(t, 3, stats.Workers)
	assert.Equal(t, 15, stats.Tokens)
	assert.Equal(t, snap.Vocabulary().Len(), stats.VocabularySize)
}

func TestBuild_WorkerCountIndependent(t *testing.T) {
	corpus := docsOf(
		"alpha beta gamma",
		"delta alpha",
		"epsilon zeta beta beta",
		"eta theta",
		"gamma delta epsilon",
		"iota kappa alpha",
		"lambda",
	)
	one, err := NewBuilder(1).Build(context.Background(), corpus)
	require.NoError(t, err)
	four, err := NewBuilder(4).Build(context.Background(), corpus)
	require.NoError(t, err)

	assert.Equal(t, one.Vocabulary().Tokens(), four.Vocabulary().Tokens())
	assert.Equal(t, one.IDF(), four.IDF())
	for i := 0; i < one.Len(); i++ {
		assert.Equal(t, one.Vector(i), four.Vector(i))
	}
}

func TestBuild_GenerationIncreases(t *testing.T) {
	b := NewBuilder(2)
	s1, err := b.Build(context.Background(), docsOf("a b"))
	require.NoError(t, err)
	s2, err := b.Build(context.Background(), docsOf("c d"))
	require.NoError(t, err)
	assert.Greater(t, s2.Generation(), s1.Generation())
}

func TestBuild_PooledBuffersDoNotLeak(t *testing.T) {
	b := NewBuilder(2)
	big := docsOf("one two three four five six", "seven eight nine ten")
	small := docsOf("x", "y")

	_, err := b.Build(context.Background(), big)
	require.NoError(t, err)
	snap, err := b.Build(context.Background(), small)
	require.NoError(t, err)

	assert.Equal(t, []string{"x", "y"}, snap.Vocabulary().Tokens())
	assert.Equal(t, 2, snap.Stats().Tokens)
}

func TestBufferPool_ResetsLength(t *testing.T) {
	var pool bufferPool
	buf := pool.get()
	*buf = append(*buf, 1, 2, 3)
	pool.put(buf)
	again := pool.get()
	assert.Empty(t, *again)
}

func TestQueryVector_DropsUnknownTokens(t *testing.T) {
	snap, err := NewBuilder(1).Build(context.Background(), docsOf("cat sat", "dog sat"))
	require.NoError(t, err)

	v := snap.QueryVector("Cat unicorn")
	require.Equal(t, 1, v.Len())
	id, ok := snap.Vocabulary().Lookup("cat")
	require.True(t, ok)
	assert.Equal(t, id, v.Indices[0])

	assert.Zero(t, snap.QueryVector("unicorn").Len())
	assert.InDelta(t, 1, sparse.Cosine(snap.QueryVector("cat sat"), snap.Vector(0)), 1e-6)
}

func TestBuildError_WrapsWorkerFailure(t *testing.T) {
	b := NewBuilder(1)
	err := b.buildError(context.Background(), errors.New("boom"))
	assert.ErrorContains(t, err, "boom")
	assert.NotErrorIs(t, err, domain.ErrCancelled)
}

func TestSnapshot_Fingerprint(t *testing.T) {
	a, err := NewBuilder(1).Build(context.Background(), docsOf("the cat sat", "a bird flew"))
	require.NoError(t, err)
	again, err := NewBuilder(3).Build(context.Background(), docsOf("the cat sat", "a bird flew"))
	require.NoError(t, err)
	b, err := NewBuilder(1).Build(context.Background(), docsOf("a dog ran", "my cat purrs loudly"))
	require.NoError(t, err)
	shifted, err := NewBuilder(1).Build(context.Background(), docsOf("the cat", "sat a bird flew"))
	require.NoError(t, err)

	assert.Len(t, a.Fingerprint(), 32)
	assert.Equal(t, a.Generation(), b.Generation())
	assert.Equal(t, a.Fingerprint(), again.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), shifted.Fingerprint())
}
