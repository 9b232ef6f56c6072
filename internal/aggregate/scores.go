package aggregate

import (
	"strconv"
	"strings"

	"github.com/pantheonreview/pantheon/pkg/models"
)

// ParseScoreValue converts a raw score marker value to an integer in
// [0, 100]. "N/A" and anything else that is not a number are rejected.
func ParseScoreValue(raw string) (int, bool) {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || v < 0 || v > 100 {
		return 0, false
	}
	return v, true
}

// RollupScores parses each source's score and averages the valid ones.
// Mean stays nil when no source has a numeric score. A source listed more
// than once counts once.
func RollupScores(sources []models.SourceFeedback) models.ScoreRollup {
	rollup := models.ScoreRollup{PerSource: []models.SourceScore{}}
	seen := make(map[string]bool, len(sources))

	sum, count := 0, 0
	for _, src := range sources {
		if seen[src.SourceID] {
			continue
		}
		seen[src.SourceID] = true

		score := models.SourceScore{SourceID: src.SourceID, Raw: src.Score}
		if v, ok := ParseScoreValue(src.Score); ok {
			score.Value = v
			score.Valid = true
			sum += v
			count++
		}
		rollup.PerSource = append(rollup.PerSource, score)
	}

	if count > 0 {
		mean := float64(sum) / float64(count)
		rollup.Mean = &mean
	}
	return rollup
}
