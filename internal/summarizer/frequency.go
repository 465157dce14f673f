// Package summarizer picks the most representative sentences of a text.
package summarizer

import (
	"math"
	"sort"
	"strings"

	"sparserag/internal/chunker"
	"sparserag/internal/tokenizer"
)

// FrequencySummarizer scores each sentence by the normalised frequency of
// its non-stopword tokens and keeps the best ones in their original order.
type FrequencySummarizer struct {
	stopwords map[string]struct{}
}

func NewFrequencySummarizer() *FrequencySummarizer {
	return &FrequencySummarizer{stopwords: defaultStopwords()}
}

// Summarize returns at most maxSentences sentences of text (5 when
// maxSentences <= 0).
func (s *FrequencySummarizer) Summarize(text string, maxSentences int) (string, error) {
	if maxSentences <= 0 {
		maxSentences = 5
	}
	sentences := chunker.SplitSentences(text)
	if len(sentences) <= maxSentences {
		return strings.Join(sentences, " "), nil
	}

	tokens := make([][]string, len(sentences))
	freq := map[string]float64{}
	peak := 0.0
	for i, sent := range sentences {
		for tok := range tokenizer.Tokens(sent) {
			tokens[i] = append(tokens[i], tok)
			if _, stop := s.stopwords[tok]; stop {
				continue
			}
			freq[tok]++
			peak = max(peak, freq[tok])
		}
	}

	type ranked struct {
		idx   int
		score float64
	}
	scores := make([]ranked, len(sentences))
	for i, toks := range tokens {
		score := 0.0
		for _, tok := range toks {
			score += freq[tok]
		}
		if peak > 0 && len(toks) > 0 {
			// long sentences should not win on length alone
			score /= peak * math.Sqrt(float64(len(toks)))
		}
		scores[i] = ranked{i, score}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	keep := make([]int, maxSentences)
	for i := range keep {
		keep[i] = scores[i].idx
	}
	sort.Ints(keep)
	out := make([]string, len(keep))
	for i, idx := range keep {
		out[i] = sentences[idx]
	}
	return strings.Join(out, " "), nil
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by",
		"with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "its", "this", "that", "these",
		"those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into",
		"about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own",
		"same", "too", "very", "can", "will", "just", "don", "should", "now", "not", "no", "we", "you", "they",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
