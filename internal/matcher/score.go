package matcher

import (
	"fmt"
	"math"
	"sort"

	"github.com/MikeCob/noc-job-matcher/internal/noc"
)

// Hybrid score composition. Duty-level specificity is more discriminative
// than whole-profile context, hence the heavier duty weight. These are fixed
// constants, not per-query tunables.
const (
	ProfileWeight = 0.4
	DutyWeight    = 0.6

	// MinDutyConfidence is the raw cosine score a duty's best-aligned
	// responsibility must exceed to count as matched. Duties below it are
	// omitted from explanations and contribute nothing to the aggregate.
	MinDutyConfidence = 0.3

	// topDutyCount caps how many matched-duty maxima enter the aggregate
	// mean, so entries with long duty lists are not diluted.
	topDutyCount = 5
)

// ScoreEntry computes the hybrid score for one taxonomy entry: the profile
// cosine between the job embedding and the entry's profile embedding,
// combined with the mean of the top matched-duty similarities. Per duty the
// similarity is the maximum across all responsibility embeddings, so a single
// well-aligned responsibility explains a duty without unrelated ones diluting
// it. Pure function of its inputs.
func (m *Matcher) ScoreEntry(entry *noc.Entry, jobVec []float32, respVecs [][]float32, responsibilities []string) (*MatchResult, error) {
	dim := m.cache.Dimension()
	if len(jobVec) != dim {
		return nil, fmt.Errorf("%w: job embedding has dimension %d, cache has %d",
			ErrDimensionMismatch, len(jobVec), dim)
	}
	for i, vec := range respVecs {
		if len(vec) != dim {
			return nil, fmt.Errorf("%w: responsibility embedding %d has dimension %d, cache has %d",
				ErrDimensionMismatch, i, len(vec), dim)
		}
	}

	profileScore := cosineSimilarity(jobVec, m.cache.Profile(entry.Code))

	var matches []DutyMatch
	for _, duty := range m.cache.DutiesFor(entry.Code) {
		best := -1.0
		bestResp := -1
		for i, respVec := range respVecs {
			if sim := cosineSimilarity(duty.Vector, respVec); sim > best {
				best = sim
				bestResp = i
			}
		}

		if bestResp < 0 || best <= MinDutyConfidence {
			continue
		}

		matches = append(matches, DutyMatch{
			Duty:           duty.Text,
			Responsibility: responsibilities[bestResp],
			Confidence:     best,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Confidence > matches[j].Confidence
	})

	dutyScore := 0.0
	if len(matches) > 0 {
		n := min(len(matches), topDutyCount)
		for _, match := range matches[:n] {
			dutyScore += match.Confidence
		}
		dutyScore /= float64(n)
	}

	return &MatchResult{
		Code:         entry.Code,
		Title:        entry.Title,
		ProfileScore: profileScore,
		DutyScore:    dutyScore,
		Score:        ProfileWeight*profileScore + DutyWeight*dutyScore,
		DutyMatches:  matches,
		Entry:        entry,
	}, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
