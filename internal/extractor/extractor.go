// Package extractor splits free-text job descriptions into candidate
// responsibility statements for duty-level matching. Over-splitting is
// acceptable: downstream scoring takes a best-match maximum per taxonomy
// duty, so spurious fragments only add low-similarity noise.
package extractor

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// minSentenceRunes drops fragments too short to carry a duty.
	minSentenceRunes = 10
	// maxResponsibilities caps the extracted list; long postings repeat
	// themselves and extra fragments add nothing past the per-duty max.
	maxResponsibilities = 20
)

// actionVerbs marks sentences that read like responsibility statements.
var actionVerbs = []string{
	"develop", "manage", "create", "implement", "design", "coordinate",
	"lead", "supervise", "analyze", "maintain", "ensure", "provide",
	"support", "review", "prepare", "conduct", "monitor", "plan",
	"organize", "direct", "control", "evaluate", "establish", "perform",
}

// Extract returns an order-preserving list of candidate responsibility
// statements. For non-empty input the result is never empty: when no finer
// split survives the heuristics, the whole trimmed text is returned as a
// single element.
func Extract(jobText string) []string {
	trimmed := strings.TrimSpace(jobText)
	if trimmed == "" {
		return nil
	}

	sentences := splitSentences(trimmed)

	var responsibilities []string
	for _, sentence := range sentences {
		if utf8.RuneCountInString(sentence) < minSentenceRunes {
			continue
		}
		if looksLikeResponsibility(sentence) {
			responsibilities = append(responsibilities, sentence)
		}
	}

	// Nothing matched the heuristics: keep every sentence of usable length.
	if len(responsibilities) == 0 {
		for _, sentence := range sentences {
			if utf8.RuneCountInString(sentence) >= minSentenceRunes {
				responsibilities = append(responsibilities, sentence)
			}
		}
	}

	if len(responsibilities) == 0 {
		return []string{trimmed}
	}

	if len(responsibilities) > maxResponsibilities {
		responsibilities = responsibilities[:maxResponsibilities]
	}
	return responsibilities
}

func splitSentences(text string) []string {
	raw := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n' || r == ';'
	})

	sentences := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		s = strings.TrimLeft(s, "-•* \t")
		if s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

func looksLikeResponsibility(sentence string) bool {
	lower := strings.ToLower(sentence)
	for _, verb := range actionVerbs {
		if strings.Contains(lower, verb) {
			return true
		}
	}

	first, _ := utf8.DecodeRuneInString(sentence)
	return unicode.IsUpper(first)
}
