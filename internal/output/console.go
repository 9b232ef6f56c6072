package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/pantheonreview/pantheon/pkg/models"
)

// maxExcerpt bounds the comment text shown in a table cell
const maxExcerpt = 60

// WriteTable prints the bundle as two console tables: the comments and
// the per-source scores
func WriteTable(w io.Writer, bundle *models.ReviewBundle) error {
	if bundle == nil {
		bundle = &models.ReviewBundle{}
	}

	var buf bytes.Buffer

	comments := tablewriter.NewWriter(&buf)
	comments.SetHeader([]string{"Location", "Position", "Sources", "Comment"})
	comments.SetBorder(false)
	comments.SetCenterSeparator("")
	comments.SetAutoWrapText(false)
	comments.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_CENTER, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT})

	for _, c := range bundle.Resolved {
		comments.Append([]string{
			Location(c.FilePath, c.Line),
			fmt.Sprintf("%d", c.Position),
			strings.Join(c.Sources, ", "),
			excerpt(c.Body),
		})
	}
	for _, c := range bundle.Unresolved {
		comments.Append([]string{
			Location(c.FilePath, c.Line),
			"-",
			strings.Join(c.Sources, ", "),
			excerpt(c.Body),
		})
	}
	comments.SetFooter([]string{
		fmt.Sprintf("Resolved %d", len(bundle.Resolved)),
		"",
		fmt.Sprintf("Unresolved %d", len(bundle.Unresolved)),
		"",
	})
	comments.Render()

	buf.WriteString("\n")

	scores := tablewriter.NewWriter(&buf)
	scores.SetHeader([]string{"Source", "Score"})
	scores.SetBorder(false)
	scores.SetCenterSeparator("")
	scores.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_CENTER})
	for _, s := range bundle.Scores.PerSource {
		scores.Append([]string{s.SourceID, scoreText(s)})
	}
	scores.SetFooter([]string{"Mean", MeanText(bundle.Scores)})
	scores.Render()

	if len(bundle.Failures) > 0 {
		buf.WriteString("\nFailed sources:\n")
		for _, f := range bundle.Failures {
			fmt.Fprintf(&buf, "  %s: %s\n", f.SourceID, f.Error)
		}
	}

	_, err := w.Write(buf.Bytes())
	return err
}

// WriteJSON prints the bundle as indented JSON
func WriteJSON(w io.Writer, bundle *models.ReviewBundle) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(bundle)
}

// Location renders file:line, or a placeholder for missing parts
func Location(file string, line int) string {
	switch {
	case file == "" && line == 0:
		return "(general)"
	case file == "":
		return fmt.Sprintf("line %d", line)
	case line == 0:
		return file
	}
	return fmt.Sprintf("%s:%d", file, line)
}

// MeanText renders the rollup mean or N/A
func MeanText(r models.ScoreRollup) string {
	if r.Mean == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.1f", *r.Mean)
}

func scoreText(s models.SourceScore) string {
	if !s.Valid {
		return "N/A"
	}
	return fmt.Sprintf("%d", s.Value)
}

func excerpt(body string) string {
	text := []rune(strings.Join(strings.Fields(body), " "))
	if len(text) <= maxExcerpt {
		return string(text)
	}
	return string(text[:maxExcerpt-3]) + "..."
}
