package generation

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"sparserag/internal/domain"
)

// event is one NDJSON line of a streaming /api/generate response.
type event struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

func parseEvent(line []byte) (event, error) {
	var ev event
	if err := json.Unmarshal(line, &ev); err != nil {
		return event{}, fmt.Errorf("%w: %v", domain.ErrMalformedEvent, err)
	}
	return ev, nil
}

// countTokens approximates the number of tokens in a fragment: one per run
// of non-whitespace that ends at whitespace or at the end of the fragment.
// Words split across fragments are counted once per fragment.
func countTokens(fragment string) int {
	n := 0
	inRun := false
	for _, r := range fragment {
		if unicode.IsSpace(r) {
			if inRun {
				n++
			}
			inRun = false
			continue
		}
		inRun = true
	}
	if inRun {
		n++
	}
	return n
}

// snippet shortens a raw line for logging.
func snippet(line []byte) string {
	s := strings.TrimSpace(string(line))
	if len(s) > 120 {
		return s[:120] + "..."
	}
	return s
}
