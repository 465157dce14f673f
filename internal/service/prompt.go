package service

import (
	"fmt"
	"strings"

	"sparserag/internal/domain"
)

const promptHeader = "Answer the question using only the context below. " +
	"If the context does not contain the answer, say so.\n\n"

// BuildPrompt numbers the retrieved passages into a context block followed
// by the question.
func BuildPrompt(question string, hits []domain.RetrievalHit) string {
	var b strings.Builder
	b.WriteString(promptHeader)
	b.WriteString("Context:\n")
	if len(hits) == 0 {
		b.WriteString("(no relevant passages)\n")
	}
	for i, h := range hits {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, strings.TrimSpace(h.Text))
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(strings.TrimSpace(question))
	b.WriteString("\nAnswer:")
	return b.String()
}
