package index

// Vocabulary is a bijection between token strings and dense ids in
// [0, Len()). Ids are assigned in insertion order. A Vocabulary owned by a
// Snapshot is never mutated.
type Vocabulary struct {
	ids    map[string]int32
	tokens []string
}

func newVocabulary(capacity int) *Vocabulary {
	return &Vocabulary{
		ids:    make(map[string]int32, capacity),
		tokens: make([]string, 0, capacity),
	}
}

// add returns the id of tok, assigning the next free id if it is new.
func (v *Vocabulary) add(tok string) int32 {
	if id, ok := v.ids[tok]; ok {
		return id
	}
	id := int32(len(v.tokens))
	v.ids[tok] = id
	v.tokens = append(v.tokens, tok)
	return id
}

// Lookup returns the id of tok.
func (v *Vocabulary) Lookup(tok string) (int32, bool) {
	id, ok := v.ids[tok]
	return id, ok
}

// Token returns the token string for id.
func (v *Vocabulary) Token(id int32) string { return v.tokens[id] }

// Len returns the number of distinct tokens.
func (v *Vocabulary) Len() int { return len(v.tokens) }

// Tokens returns the tokens in id order. Callers must not modify the slice.
func (v *Vocabulary) Tokens() []string { return v.tokens }
