package output

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pantheonreview/pantheon/pkg/models"
)

func testBundle() *models.ReviewBundle {
	mean := 70.0
	return &models.ReviewBundle{
		RunID: "run-1",
		Resolved: []models.ResolvedComment{{
			FilePath: "app.py", Line: 11, Position: 2,
			Body:    "**Apollo** - Apollo (Style)\n\nRename this.",
			Sources: []string{"Apollo"},
		}},
		Unresolved: []models.UnresolvedComment{
			{FilePath: "app.py", Line: 99, Body: "**Hermes**\n\nOut of range.", Sources: []string{"Hermes"}},
			{Body: "**Athena**\n\nOverall too complex.", Sources: []string{"Athena"}},
		},
		Scores: models.ScoreRollup{
			PerSource: []models.SourceScore{
				{SourceID: "Apollo", Raw: "80", Value: 80, Valid: true},
				{SourceID: "Hermes", Raw: "N/A"},
				{SourceID: "Athena", Raw: "60", Value: 60, Valid: true},
			},
			Mean: &mean,
		},
		Failures: []models.SourceFailure{{SourceID: "Chronos", Error: "timeout"}},
	}
}

func TestReviewBody(t *testing.T) {
	body := ReviewBody(testBundle(), false)

	assert.True(t, strings.HasPrefix(body, "## Pantheon Review"))
	assert.Contains(t, body, "| Apollo | 80 |")
	assert.Contains(t, body, "| Hermes | N/A |")
	assert.Contains(t, body, "| **Mean** | **70.0** |")
	assert.Contains(t, body, "#### `app.py:99`")
	assert.Contains(t, body, "#### Overall")
	assert.Contains(t, body, "- **Chronos**: timeout")
	assert.NotContains(t, body, "Rename this.")
}

func TestReviewBodyWithResolved(t *testing.T) {
	body := ReviewBody(testBundle(), true)

	assert.Contains(t, body, "#### `app.py:11`")
	assert.Contains(t, body, "Rename this.")
}

func TestReviewBodyUndefinedMean(t *testing.T) {
	body := ReviewBody(&models.ReviewBundle{Scores: models.ScoreRollup{
		PerSource: []models.SourceScore{{SourceID: "Apollo", Raw: "N/A"}},
	}}, false)

	assert.Contains(t, body, "| **Mean** | **N/A** |")
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, testBundle()))

	out := buf.String()
	assert.Contains(t, out, "app.py:11")
	assert.Contains(t, out, "(general)")
	assert.Contains(t, out, "LOCATION")
	assert.Contains(t, out, "Apollo")
	assert.Contains(t, out, "70.0")
	assert.Contains(t, out, "Chronos: timeout")
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, testBundle()))

	var got models.ReviewBundle
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, testBundle(), &got)
}

func TestAppendStepSummary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.md")
	t.Setenv(StepSummaryEnv, path)

	require.NoError(t, AppendStepSummary(testBundle(), "https://github.com/acme/widgets/pull/42"))
	require.NoError(t, AppendStepSummary(testBundle(), ""))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "## Pantheon Review"))
	assert.Contains(t, string(data), "| `app.py:11` | 2 | Apollo |")
}

func TestAppendStepSummaryOutsideActions(t *testing.T) {
	t.Setenv(StepSummaryEnv, "")
	assert.NoError(t, AppendStepSummary(testBundle(), ""))
}

func TestLocation(t *testing.T) {
	assert.Equal(t, "(general)", Location("", 0))
	assert.Equal(t, "line 4", Location("", 4))
	assert.Equal(t, "a.go", Location("a.go", 0))
	assert.Equal(t, "a.go:4", Location("a.go", 4))
}
