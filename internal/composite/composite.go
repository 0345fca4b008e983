// Package composite builds the weighted text representation of a taxonomy
// entry that gets embedded as its profile vector. Field weights are expressed
// as whole-word repetition counts: duties 3x, title 2x, description 1.5x,
// requirements and example titles 1x. Concatenation order is fixed, so
// identical entries always produce identical composites.
package composite

import (
	"strings"

	"github.com/MikeCob/noc-job-matcher/internal/noc"
)

// Build returns the weighted composite string for an entry. Empty fields
// contribute nothing; the result is never padded with placeholders.
func Build(e *noc.Entry) string {
	var parts []string

	duties := strings.Join(e.MainDuties, " ")
	parts = appendRepeated(parts, duties, 3)
	parts = appendRepeated(parts, e.Title, 2)
	parts = appendWeighted(parts, e.Description)
	parts = appendRepeated(parts, e.Requirements, 1)
	parts = appendRepeated(parts, strings.Join(e.ExampleTitles, " "), 1)

	return strings.Join(parts, " ")
}

// NormalizeDuty canonicalizes a duty statement or an extracted responsibility
// before embedding: lowercase, trimmed, internal whitespace collapsed. Both
// sides of the duty-level comparison go through this, so semantically
// identical phrasing embeds to comparable text.
func NormalizeDuty(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

func appendRepeated(parts []string, text string, times int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return parts
	}
	for range times {
		parts = append(parts, text)
	}
	return parts
}

// appendWeighted approximates a 1.5x weight: the full text once, then every
// second word again. The scheme is arbitrary but fixed; changing it changes
// every profile embedding and requires a cache rebuild.
func appendWeighted(parts []string, text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return parts
	}

	parts = append(parts, strings.Join(words, " "))

	half := make([]string, 0, (len(words)+1)/2)
	for i := 0; i < len(words); i += 2 {
		half = append(half, words[i])
	}
	return append(parts, strings.Join(half, " "))
}
