package index

// merge unions the local vocabularies into one global vocabulary and remaps
// every local token into the global id space.
//
// Global ids are assigned by worker index, then by each worker's local
// first-seen order, so the result does not depend on which worker finished
// first. Local ids are translated through their token string; they are never
// assumed to be comparable across workers.
//
// The returned stream lays documents out in document order and spans[d]
// locates document d inside it.
func merge(parts []*partition, numDocs int) (*Vocabulary, []int32, []Span) {
	capacity := 0
	total := 0
	for _, p := range parts {
		capacity += p.vocab.Len()
		total += len(p.tokens())
	}
	global := newVocabulary(capacity)

	remaps := make([][]int32, len(parts))
	for w, p := range parts {
		remap := make([]int32, p.vocab.Len())
		for local, tok := range p.vocab.Tokens() {
			remap[local] = global.add(tok)
		}
		remaps[w] = remap
	}

	type owner struct {
		part  int
		local int
	}
	owners := make([]owner, numDocs)
	for w, p := range parts {
		for i := range p.spans {
			owners[p.lo+i] = owner{part: w, local: i}
		}
	}

	stream := make([]int32, 0, total)
	spans := make([]Span, numDocs)
	for d := 0; d < numDocs; d++ {
		o := owners[d]
		p := parts[o.part]
		src := p.spans[o.local]
		remap := remaps[o.part]
		spans[d] = Span{Start: len(stream), Count: src.Count}
		for _, local := range p.tokens()[src.Start : src.Start+src.Count] {
			stream = append(stream, remap[local])
		}
	}
	return global, stream, spans
}
