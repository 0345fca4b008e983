package matcher

import (
	"encoding/json"
	"os"

	"github.com/MikeCob/noc-job-matcher/internal/noc"
)

// DutyMatch explains one taxonomy duty: the extracted responsibility that
// best aligns with it and the similarity between the two. Only duties above
// the confidence threshold are reported.
type DutyMatch struct {
	Duty           string  `json:"duty"`
	Responsibility string  `json:"matched_responsibility"`
	Confidence     float64 `json:"confidence"`
}

// MatchResult is one ranked taxonomy entry for a query. Created fresh per
// query and never persisted.
type MatchResult struct {
	Code         string      `json:"noc_code"`
	Title        string      `json:"title"`
	ProfileScore float64     `json:"profile_score"`
	DutyScore    float64     `json:"duty_score"`
	Score        float64     `json:"score"`
	DutyMatches  []DutyMatch `json:"duty_matches,omitempty"`

	Entry *noc.Entry `json:"-"`
}

// Results is an ordered ranking, best match first.
type Results struct {
	Items []*MatchResult `json:"items"`
}

func (r *Results) Len() int {
	return len(r.Items)
}

// DumpToTmpFile writes the ranking to a temporary JSON file and returns its name.
func (r *Results) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "noc_matches_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	return file.Name(), nil
}
