package output

import (
	"fmt"
	"os"
	"strings"

	"github.com/pantheonreview/pantheon/pkg/models"
)

// StepSummaryEnv names the file GitHub Actions renders as the job summary
const StepSummaryEnv = "GITHUB_STEP_SUMMARY"

const title = "## Pantheon Review"

// ReviewBody renders the body of the submitted review: the score rollup
// and every comment that could not be placed on a diff position. With
// includeResolved the positioned comments are inlined too, which is used
// when the host rejects the positioned review.
func ReviewBody(bundle *models.ReviewBundle, includeResolved bool) string {
	if bundle == nil {
		bundle = &models.ReviewBundle{}
	}

	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n\n")
	writeScores(&b, bundle.Scores)

	if includeResolved && len(bundle.Resolved) > 0 {
		b.WriteString("\n### Line comments\n")
		for _, c := range bundle.Resolved {
			fmt.Fprintf(&b, "\n#### `%s`\n\n%s\n", Location(c.FilePath, c.Line), c.Body)
		}
	}

	if len(bundle.Unresolved) > 0 {
		b.WriteString("\n### General feedback\n")
		for _, c := range bundle.Unresolved {
			fmt.Fprintf(&b, "\n#### %s\n\n%s\n", unresolvedHeading(c), c.Body)
		}
	}

	if len(bundle.Failures) > 0 {
		b.WriteString("\n### Reviewers that did not respond\n\n")
		for _, f := range bundle.Failures {
			fmt.Fprintf(&b, "- **%s**: %s\n", f.SourceID, f.Error)
		}
	}
	return b.String()
}

// StepSummary renders the full report for the Actions job summary
func StepSummary(bundle *models.ReviewBundle, prURL string) string {
	if bundle == nil {
		bundle = &models.ReviewBundle{}
	}

	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n\n")
	if prURL != "" {
		fmt.Fprintf(&b, "Pull request: %s\n\n", prURL)
	}
	fmt.Fprintf(&b, "%d line comments, %d general comments\n\n", len(bundle.Resolved), len(bundle.Unresolved))
	writeScores(&b, bundle.Scores)

	if len(bundle.Resolved) > 0 {
		b.WriteString("\n| Location | Position | Sources |\n|---|---|---|\n")
		for _, c := range bundle.Resolved {
			fmt.Fprintf(&b, "| `%s` | %d | %s |\n", Location(c.FilePath, c.Line), c.Position, strings.Join(c.Sources, ", "))
		}
	}
	if len(bundle.Unresolved) > 0 {
		b.WriteString("\n### General feedback\n")
		for _, c := range bundle.Unresolved {
			fmt.Fprintf(&b, "\n#### %s\n\n%s\n", unresolvedHeading(c), c.Body)
		}
	}
	return b.String()
}

// AppendStepSummary appends the report to $GITHUB_STEP_SUMMARY. It is a
// no-op outside GitHub Actions.
func AppendStepSummary(bundle *models.ReviewBundle, prURL string) error {
	path := os.Getenv(StepSummaryEnv)
	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open step summary: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(StepSummary(bundle, prURL) + "\n"); err != nil {
		return fmt.Errorf("failed to write step summary: %w", err)
	}
	return nil
}

func writeScores(b *strings.Builder, r models.ScoreRollup) {
	if len(r.PerSource) == 0 {
		return
	}
	b.WriteString("| Reviewer | Score |\n|---|---|\n")
	for _, s := range r.PerSource {
		fmt.Fprintf(b, "| %s | %s |\n", s.SourceID, scoreText(s))
	}
	fmt.Fprintf(b, "| **Mean** | **%s** |\n", MeanText(r))
}

func unresolvedHeading(c models.UnresolvedComment) string {
	if c.FilePath == "" && c.Line == 0 {
		return "Overall"
	}
	return "`" + Location(c.FilePath, c.Line) + "`"
}
