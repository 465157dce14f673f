package retriever

import (
	"container/heap"
	"sort"
)

type scored struct {
	doc   int
	score float64
}

// better reports whether a ranks above b: higher score first, and on equal
// scores the lower document index wins.
func better(a, b scored) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	return a.doc < b.doc
}

// minHeap keeps the worst retained candidate at the root.
type minHeap []scored

func (h minHeap) Len() int           { return len(h) }
func (h minHeap) Less(i, j int) bool { return better(h[j], h[i]) }
func (h minHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x any)        { *h = append(*h, x.(scored)) }
func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// topK is a fixed-capacity selection of the k best candidates.
type topK struct {
	k int
	h minHeap
}

func newTopK(k int) *topK {
	return &topK{k: k, h: make(minHeap, 0, k)}
}

// offer considers one candidate. Once full, a candidate only replaces the
// current minimum if it ranks strictly better.
func (t *topK) offer(c scored) {
	if t.k <= 0 {
		return
	}
	if len(t.h) < t.k {
		heap.Push(&t.h, c)
		return
	}
	if better(c, t.h[0]) {
		t.h[0] = c
		heap.Fix(&t.h, 0)
	}
}

// sorted returns the retained candidates best first.
func (t *topK) sorted() []scored {
	out := make([]scored, len(t.h))
	copy(out, t.h)
	sort.Slice(out, func(i, j int) bool { return better(out[i], out[j]) })
	return out
}
