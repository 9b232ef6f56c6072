package ai

import (
	"fmt"
	"strings"

	"github.com/pantheonreview/pantheon/pkg/models"
)

const sectionInstructions = `When referring to specific code, include the file and line number using exactly this format:

/* [SECTION: path/to/file:line_number] [DEITY: %s] */
Your feedback for that line.

Use the new-file line numbers shown at the start of each diff line. Your feedback should be specific, constructive and actionable.
At the bottom of your review, score the change on a scale of 0-100, where 100 is perfect. Assume high standards for production code. Output the score in the following format: "SCORE: [0-100]".`

const jsonInstructions = `Provide the response in the following JSON format: {"reviews": [{"filePath": "<path>", "lineNumber": <line_number>, "reviewComment": "<review comment>"}]}
Use the new-file line numbers shown at the start of each diff line. Write each comment in GitHub Markdown.
Provide comments ONLY if there is something to improve, otherwise "reviews" should be an empty array.
After the JSON, output a score for the change in the following format: "SCORE: [0-100]".`

// BuildPrompt renders the review task for one persona
func BuildPrompt(persona Persona, input models.ReviewInput) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are %s, reviewing for %s.\n", persona.Name, persona.Domain)
	if persona.SystemPrompt != "" {
		b.WriteString(persona.SystemPrompt)
		b.WriteString("\n")
	}
	b.WriteString("\nReview the following code changes from a pull request according to your domain of expertise.\n\n")

	if input.Title != "" {
		fmt.Fprintf(&b, "Pull request title: %s\n", input.Title)
	}
	if strings.TrimSpace(input.Description) != "" {
		fmt.Fprintf(&b, "Pull request description:\n---\n%s\n---\n", strings.TrimSpace(input.Description))
	}
	b.WriteString("\n")

	for _, f := range input.Files {
		if f == nil || f.IsDeleted() || len(f.Hunks) == 0 {
			continue
		}
		writeFile(&b, f)
	}

	b.WriteString("\n")
	if persona.Format == FormatJSON {
		b.WriteString(jsonInstructions)
	} else {
		fmt.Fprintf(&b, sectionInstructions, persona.Attribution())
	}
	b.WriteString("\n")
	return b.String()
}

// writeFile renders a file's hunks with the new-file line number in front
// of every added or context line
func writeFile(b *strings.Builder, f *models.CodeDiff) {
	fmt.Fprintf(b, "## File: %s\n```diff\n", f.FilePath)
	for _, h := range f.Hunks {
		b.WriteString(h.Header)
		b.WriteString("\n")
		for _, line := range h.Lines {
			switch line.Kind {
			case models.LineAdded:
				fmt.Fprintf(b, "%5d +%s\n", line.TargetLine, line.Content)
			case models.LineRemoved:
				fmt.Fprintf(b, "      -%s\n", line.Content)
			default:
				fmt.Fprintf(b, "%5d  %s\n", line.TargetLine, line.Content)
			}
		}
	}
	b.WriteString("```\n\n")
}
