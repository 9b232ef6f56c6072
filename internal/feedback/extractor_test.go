package feedback

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractFileLineIssueSuggestion(t *testing.T) {
	text := "File: app.py\nLine 42\nIssue: naming\nSuggestion: rename"

	fb := NewExtractor().Extract("athena", text)

	require.Len(t, fb.Candidates, 1)
	c := fb.Candidates[0]
	assert.Equal(t, "athena", c.SourceID)
	assert.Equal(t, "app.py", c.FilePath)
	assert.Equal(t, 42, c.Line)
	assert.Equal(t, "naming", c.Issue)
	assert.Equal(t, "rename", c.Suggestion)
	assert.Equal(t, "file-label+line-ref", c.Rule)
	assert.Equal(t, "**Issue:** naming\n\n**Suggestion:** rename", c.Body())
}

func TestExtractLineWithQuoteHasNoFile(t *testing.T) {
	text := `Line 7: "x = 1" uses a magic number that should become a named constant.`

	fb := NewExtractor().Extract("hermes", text)

	require.Len(t, fb.Candidates, 1)
	c := fb.Candidates[0]
	assert.False(t, c.HasFile())
	assert.Equal(t, 7, c.Line)
	assert.Equal(t, "x = 1", c.Quote)
	assert.Equal(t, `"x = 1" uses a magic number that should become a named constant.`, c.Text)
	assert.Equal(t, "line-ref+quote-double", c.Rule)
}

func TestExtractProseOnly(t *testing.T) {
	text := "Overall this change looks solid and well structured.\n\nSCORE: 85"

	fb := NewExtractor().Extract("zeus", text)

	assert.Empty(t, fb.Candidates)
	assert.Equal(t, "85", fb.Score)
}

func TestExtractEmptyText(t *testing.T) {
	fb := NewExtractor().Extract("empty", " \r\n ")
	assert.Equal(t, "empty", fb.SourceID)
	assert.Empty(t, fb.Candidates)
	assert.Empty(t, fb.Score)
}

func TestExtractFileWithoutLineIsIgnored(t *testing.T) {
	fb := NewExtractor().Extract("s", "The file config.yaml looks fine overall.")
	assert.Empty(t, fb.Candidates)
}

func TestExtractMultipleLinesUnderOneFile(t *testing.T) {
	text := "File: a.go\nLine 3: Issue: unused variable\nLine 9: Issue: missing return"

	fb := NewExtractor().Extract("s", text)

	require.Len(t, fb.Candidates, 2)
	assert.Equal(t, "a.go", fb.Candidates[0].FilePath)
	assert.Equal(t, 3, fb.Candidates[0].Line)
	assert.Equal(t, "unused variable", fb.Candidates[0].Issue)
	assert.Equal(t, "a.go", fb.Candidates[1].FilePath)
	assert.Equal(t, 9, fb.Candidates[1].Line)
	assert.Equal(t, "missing return", fb.Candidates[1].Issue)
}

func TestExtractPathLineSuffix(t *testing.T) {
	text := "In `handlers/user.go:88` the error from Save is ignored."

	fb := NewExtractor().Extract("s", text)

	require.Len(t, fb.Candidates, 1)
	c := fb.Candidates[0]
	assert.Equal(t, "handlers/user.go", c.FilePath)
	assert.Equal(t, 88, c.Line)
	assert.Equal(t, "the error from Save is ignored.", c.Text)
}

func TestExtractPlaceholderWhenNoText(t *testing.T) {
	fb := NewExtractor(WithPlaceholder("nothing recovered")).Extract("s", "Line 5")

	require.Len(t, fb.Candidates, 1)
	assert.Equal(t, 5, fb.Candidates[0].Line)
	assert.Equal(t, "nothing recovered", fb.Candidates[0].Text)
}

func TestExtractSectionBlocks(t *testing.T) {
	text := `/* [SECTION: src/app.py:12] [DEITY: Athena (Wisdom)] */
The loop recomputes the total on every pass.

/* [SECTION: src/util.py:3] [DEITY: Hermes (Speed)] */
Cache the lookup.

SCORE: 70`

	fb := NewExtractor().Extract("pantheon", text)

	require.Len(t, fb.Candidates, 2)
	first := fb.Candidates[0]
	assert.Equal(t, "src/app.py", first.FilePath)
	assert.Equal(t, 12, first.Line)
	assert.Equal(t, "Athena (Wisdom)", first.Attribution)
	assert.Equal(t, "The loop recomputes the total on every pass.", first.Text)
	assert.Equal(t, "70", first.Score)

	second := fb.Candidates[1]
	assert.Equal(t, "src/util.py", second.FilePath)
	assert.Equal(t, 3, second.Line)
	assert.Equal(t, "Hermes (Speed)", second.Attribution)
	assert.Equal(t, "Cache the lookup.", second.Text)
}

func TestExtractSectionBodyInsideComment(t *testing.T) {
	text := "/* [SECTION: main.go:4] Prefer errors.Is over string comparison. */"

	fb := NewExtractor().Extract("s", text)

	require.Len(t, fb.Candidates, 1)
	assert.Equal(t, "main.go", fb.Candidates[0].FilePath)
	assert.Equal(t, "Prefer errors.Is over string comparison.", fb.Candidates[0].Text)
}

func TestExtractJSONReviews(t *testing.T) {
	text := "Here is my review:\n```json\n" +
		`{"reviews": [{"lineNumber": 12, "reviewComment": "Avoid shadowing err."}, {"lineNumber": 30, "filePath": "pkg/a.go", "reviewComment": "Close the body."}]}` +
		"\n```"

	fb := NewExtractor().Extract("claude", text)

	require.Len(t, fb.Candidates, 2)
	assert.Equal(t, 12, fb.Candidates[0].Line)
	assert.False(t, fb.Candidates[0].HasFile())
	assert.Equal(t, "Avoid shadowing err.", fb.Candidates[0].Text)
	assert.Equal(t, "json-reviews", fb.Candidates[0].Rule)

	assert.Equal(t, 30, fb.Candidates[1].Line)
	assert.Equal(t, "pkg/a.go", fb.Candidates[1].FilePath)
	assert.Equal(t, "Close the body.", fb.Candidates[1].Text)
}

func TestExtractBrokenJSONIsRepaired(t *testing.T) {
	text := `{"reviews": [{"lineNumber": 5, "reviewComment": "Missing nil check"}`

	fb := NewExtractor().Extract("claude", text)

	require.Len(t, fb.Candidates, 1)
	assert.Equal(t, 5, fb.Candidates[0].Line)
	assert.Equal(t, "Missing nil check", fb.Candidates[0].Text)
}

func TestExtractCandidatesInTextOrder(t *testing.T) {
	text := "Line 20: Issue: second thought\n\nFile: b.go\nLine 4: Issue: first"

	fb := NewExtractor().Extract("s", text)

	require.Len(t, fb.Candidates, 2)
	assert.Equal(t, 20, fb.Candidates[0].Line)
	assert.False(t, fb.Candidates[0].HasFile())
	assert.Equal(t, "b.go", fb.Candidates[1].FilePath)
	assert.Equal(t, 4, fb.Candidates[1].Line)
}

func TestExtractCustomRules(t *testing.T) {
	rules := append(DefaultRules(), Rule{
		Name:    "row-ref",
		Role:    RoleLine,
		Tier:    1,
		Pattern: regexp.MustCompile(`(?i)\brow\s+(?P<value>\d+)`),
	})

	fb := NewExtractor(WithRules(rules)).Extract("s", "Row 4 - Issue: off by one")

	require.Len(t, fb.Candidates, 1)
	assert.Equal(t, 4, fb.Candidates[0].Line)
	assert.Equal(t, "off by one", fb.Candidates[0].Issue)
}

func TestParseScore(t *testing.T) {
	tests := []struct {
		text     string
		expected string
	}{
		{"SCORE: 80", "80"},
		{"Final SCORE: [92]", "92"},
		{"score: 85/100", "85"},
		{"SCORE: N/A", "N/A"},
		{"score: na", "N/A"},
		{"SCORE: [0-100]", ""},
		{"SCORE: [0-100]\n...\nSCORE: 72", "72"},
		{"no marker here", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, ParseScore(tt.text), tt.text)
	}
}

func TestExtractStarredSectionBlock(t *testing.T) {
	text := `* [SECTION: lib/cache.go:21]
* [DEITY: Hermes (Performance)]
* [SCORE: 64]
* The map is read without holding the mutex.`

	fb := NewExtractor().Extract("pantheon", text)

	require.Len(t, fb.Candidates, 1)
	c := fb.Candidates[0]
	assert.Equal(t, "lib/cache.go", c.FilePath)
	assert.Equal(t, 21, c.Line)
	assert.Equal(t, "Hermes (Performance)", c.Attribution)
	assert.Equal(t, "The map is read without holding the mutex.", c.Text)
	assert.Equal(t, "64", fb.Score)
}

func TestExtractFileNameInsideIssueKeepsLabels(t *testing.T) {
	text := "File: app.py\nLine 42\nIssue: response.json() may raise on empty bodies\nSuggestion: wrap the call in a try block"

	fb := NewExtractor().Extract("s", text)

	require.Len(t, fb.Candidates, 1)
	c := fb.Candidates[0]
	assert.Equal(t, "app.py", c.FilePath)
	assert.Equal(t, 42, c.Line)
	assert.Equal(t, "response.json() may raise on empty bodies", c.Issue)
	assert.Equal(t, "wrap the call in a try block", c.Suggestion)
}

func TestExtractBarePathInProseDoesNotCutWindow(t *testing.T) {
	text := "File: app.py\nLine 42: the call mirrors what util.go does\nSuggestion: extract a helper"

	fb := NewExtractor().Extract("s", text)

	require.Len(t, fb.Candidates, 1)
	assert.Equal(t, "app.py", fb.Candidates[0].FilePath)
	assert.Equal(t, 42, fb.Candidates[0].Line)
	assert.Equal(t, "extract a helper", fb.Candidates[0].Suggestion)
}

func TestExtractLineMentionInsideIssueIsNotALocation(t *testing.T) {
	text := "File: app.py\nLine 42\nIssue: this duplicates the logic at line 9 of the helper\nSuggestion: call the helper instead"

	fb := NewExtractor().Extract("s", text)

	require.Len(t, fb.Candidates, 1)
	c := fb.Candidates[0]
	assert.Equal(t, 42, c.Line)
	assert.Equal(t, "this duplicates the logic at line 9 of the helper", c.Issue)
	assert.Equal(t, "call the helper instead", c.Suggestion)
}

func TestExtractLineMentionInsideProseIsNotALocation(t *testing.T) {
	text := "File: app.py\nLine 42: the loop re-reads the config like the code at line 9 does, cache it once instead."

	fb := NewExtractor().Extract("s", text)

	require.Len(t, fb.Candidates, 1)
	assert.Equal(t, 42, fb.Candidates[0].Line)
	assert.Contains(t, fb.Candidates[0].Text, "cache it once instead")
}

func TestExtractStarredSectionEndsAtUnstarredLine(t *testing.T) {
	text := `* [SECTION: lib/cache.go:21]
* [DEITY: Hermes (Performance)]
* The map is read without holding the mutex.

## Other notes

File: b.go
Line 4
Issue: unchecked error
Suggestion: return it`

	fb := NewExtractor().Extract("pantheon", text)

	require.Len(t, fb.Candidates, 2)
	section := fb.Candidates[0]
	assert.Equal(t, "lib/cache.go", section.FilePath)
	assert.Equal(t, "The map is read without holding the mutex.", section.Text)

	c := fb.Candidates[1]
	assert.Equal(t, "b.go", c.FilePath)
	assert.Equal(t, 4, c.Line)
	assert.Equal(t, "unchecked error", c.Issue)
	assert.Equal(t, "return it", c.Suggestion)
}

func TestExtractSectionTextEndsAtParagraphBreak(t *testing.T) {
	text := "/* [SECTION: main.go:7] [DEITY: Athena (Wisdom)] */\nThe retry loop never sleeps.\n\nFile: util.go\nLine 3: Issue: shadowed err"

	fb := NewExtractor().Extract("pantheon", text)

	require.Len(t, fb.Candidates, 2)
	assert.Equal(t, "The retry loop never sleeps.", fb.Candidates[0].Text)
	assert.Equal(t, "util.go", fb.Candidates[1].FilePath)
	assert.Equal(t, 3, fb.Candidates[1].Line)
	assert.Equal(t, "shadowed err", fb.Candidates[1].Issue)
}

func TestExtractLineAfterFileAnchor(t *testing.T) {
	text := "File: app.py\nThe handler below changes how requests are parsed.\nLine 42\nIssue: naming\nSuggestion: rename"

	fb := NewExtractor().Extract("s", text)

	require.Len(t, fb.Candidates, 1)
	c := fb.Candidates[0]
	assert.Equal(t, "app.py", c.FilePath)
	assert.Equal(t, 42, c.Line)
	assert.Contains(t, c.Body(), "naming")
	assert.Contains(t, c.Body(), "rename")
}

func TestExtractFileAnchorWindow(t *testing.T) {
	tests := []struct {
		name     string
		distance int
		file     string
	}{
		{name: "inside window", distance: 299, file: "app.py"},
		{name: "outside window", distance: 301, file: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// "File: app.py" is 12 bytes, so the line reference starts
			// exactly distance bytes after the anchor
			text := "File: app.py\n" + strings.Repeat("x", tt.distance-2) + "\nLine 42: Issue: naming"

			fb := NewExtractor().Extract("s", text)

			require.Len(t, fb.Candidates, 1)
			c := fb.Candidates[0]
			assert.Equal(t, tt.file, c.FilePath)
			assert.Equal(t, 42, c.Line)
			assert.Equal(t, "naming", c.Issue)
		})
	}
}

func TestExtractIssueWindow(t *testing.T) {
	tests := []struct {
		name   string
		filler int
		issue  string
	}{
		{name: "issue inside window", filler: 270, issue: "naming"},
		{name: "issue past window", filler: 300, issue: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := "File: app.py\nLine 42\n" + strings.Repeat("x", tt.filler) + "\nIssue: naming"

			fb := NewExtractor().Extract("s", text)

			require.Len(t, fb.Candidates, 1)
			c := fb.Candidates[0]
			assert.Equal(t, "app.py", c.FilePath)
			assert.Equal(t, tt.issue, c.Issue)
			assert.NotEmpty(t, c.Body())
		})
	}
}
