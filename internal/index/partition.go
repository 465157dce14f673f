package index

import (
	"context"
	"fmt"
	"sync"

	"sparserag/internal/domain"
	"sparserag/internal/tokenizer"
)

// Span locates one document's tokens inside a token stream.
type Span struct {
	Start int
	Count int
}

// partition is the private output of one build worker: a local vocabulary,
// the document spans it owns and a single local-id token buffer. Local ids
// are only meaningful together with the partition's own vocabulary.
type partition struct {
	worker int
	lo, hi int
	vocab  *Vocabulary
	buf    *[]int32
	spans  []Span
}

func (p *partition) tokens() []int32 { return *p.buf }

// partitionRanges splits n documents across workers into contiguous ranges.
// partSize is max(1, n/workers); every worker but the last owns
// [t*partSize, min(n, (t+1)*partSize)) and the last one absorbs the rest.
func partitionRanges(n, workers int) [][2]int {
	if workers < 1 {
		workers = 1
	}
	partSize := n / workers
	if partSize < 1 {
		partSize = 1
	}
	ranges := make([][2]int, workers)
	for t := 0; t < workers; t++ {
		lo := min(n, t*partSize)
		hi := min(n, (t+1)*partSize)
		if t == workers-1 {
			hi = n
		}
		ranges[t] = [2]int{lo, hi}
	}
	return ranges
}

// bufferPool recycles per-worker token buffers between builds. Buffers are
// always handed out with length zero.
type bufferPool struct {
	pool sync.Pool
}

func (p *bufferPool) get() *[]int32 {
	if v, ok := p.pool.Get().(*[]int32); ok {
		*v = (*v)[:0]
		return v
	}
	buf := make([]int32, 0, 1024)
	return &buf
}

func (p *bufferPool) put(buf *[]int32) {
	if buf == nil {
		return
	}
	*buf = (*buf)[:0]
	p.pool.Put(buf)
}

// buildPartition tokenizes docs[lo:hi] into a fresh local vocabulary. It
// touches no state shared with other workers.
func buildPartition(ctx context.Context, worker int, docs []domain.Document, lo, hi int, buf *[]int32) (p *partition, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker %d panicked: %v", worker, r)
		}
	}()
	p = &partition{
		worker: worker,
		lo:     lo,
		hi:     hi,
		vocab:  newVocabulary(256),
		buf:    buf,
		spans:  make([]Span, 0, hi-lo),
	}
	for d := lo; d < hi; d++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := len(*buf)
		for tok := range tokenizer.Tokens(docs[d].Text) {
			*buf = append(*buf, p.vocab.add(tok))
		}
		p.spans = append(p.spans, Span{Start: start, Count: len(*buf) - start})
	}
	return p, nil
}
