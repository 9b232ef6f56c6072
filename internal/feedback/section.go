package feedback

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pantheonreview/pantheon/pkg/models"
)

var scoreLineRe = regexp.MustCompile(`(?im)^[ \t*_\[]*SCORE\s*:.*$`)

// sectionPass handles blocks of the form
//
//	/* [SECTION: path:line] [DEITY: Name (Domain)] */ feedback text
//
// and the starred form where every line of the block starts with "*".
// The feedback is the text inside the comment when there is any, otherwise
// the first paragraph after it. A starred block ends at the first line
// that is not starred.
func (e *Extractor) sectionPass(text string, claimed *spans) []models.FeedbackCandidate {
	markers := e.rules.all(RoleSection, text, 0, len(text))
	if len(markers) == 0 {
		return nil
	}

	var out []models.FeedbackCandidate
	for i, marker := range markers {
		line, err := strconv.Atoi(marker.groups["line"])
		path := cleanPath(marker.value)
		if err != nil || line <= 0 || path == "" {
			continue
		}

		regionEnd := len(text)
		if i+1 < len(markers) {
			regionEnd = markers[i+1].start
		}
		region := text[marker.end:regionEnd]

		c := models.FeedbackCandidate{
			FilePath:  path,
			Line:      line,
			Rule:      marker.rule.Name,
			SpanStart: marker.start,
		}

		var body string
		var bodyEnd int
		if starred(text, marker.start) {
			body, bodyEnd = starredBody(region)
		} else {
			body, bodyEnd = sectionBody(region)
		}
		if m, ok := e.rules.first(RoleAttribution, region, 0, bodyEnd); ok {
			c.Attribution = cleanValue(m.value)
		}
		c.Text = e.cleanSectionBody(body)
		if c.Text == "" {
			c.Text = e.placeholder
		}
		c.SpanEnd = marker.end + bodyEnd

		claimed.add(c.SpanStart, c.SpanEnd)
		out = append(out, c)
	}
	return out
}

// sectionBody picks the feedback text out of the region after a marker and
// returns it with its end offset in region. A closing "*/" only counts when
// it comes before the first paragraph break.
func sectionBody(region string) (string, int) {
	limit := paragraphEnd(region)
	if closing := strings.Index(region[:limit], "*/"); closing >= 0 {
		inside := region[:closing]
		if strings.TrimSpace(stripMarkers(inside)) != "" {
			return inside, closing + 2
		}
		start := closing + 2
		end := start + paragraphEnd(region[start:])
		if open := strings.Index(region[start:end], "/*"); open >= 0 {
			end = start + open
		}
		return region[start:end], end
	}

	end := limit
	if open := strings.Index(region[:end], "/*"); open >= 0 {
		end = open
	}
	return region[:end], end
}

// starred reports whether the marker at pos opens a "* [SECTION: ...]" line
func starred(text string, pos int) bool {
	lineStart := strings.LastIndexByte(text[:pos], '\n') + 1
	return strings.TrimSpace(text[lineStart:pos]) == "*"
}

// starredBody returns the rest of the marker line and every following line
// that starts with "*", stopping at a blank or unstarred line
func starredBody(region string) (string, int) {
	end := strings.IndexByte(region, '\n')
	if end < 0 {
		return region, len(region)
	}
	for end < len(region) {
		next := strings.IndexByte(region[end+1:], '\n')
		lineEnd := len(region)
		if next >= 0 {
			lineEnd = end + 1 + next
		}
		trimmed := strings.TrimSpace(region[end+1 : lineEnd])
		if trimmed == "" || !strings.HasPrefix(trimmed, "*") {
			break
		}
		end = lineEnd
		if strings.HasPrefix(trimmed, "*/") {
			break
		}
	}
	return region[:end], end
}

var markerRe = regexp.MustCompile(`(?i)\[(?:DEITY|REVIEWER|PERSONA):[^\]\n]*\]`)

func stripMarkers(s string) string {
	s = markerRe.ReplaceAllString(s, "")
	s = scoreLineRe.ReplaceAllString(s, "")
	return s
}

func (e *Extractor) cleanSectionBody(body string) string {
	body = stripMarkers(body)

	var lines []string
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimRight(line, " \t")
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "*") && !strings.HasPrefix(trimmed, "**") {
			line = strings.TrimSpace(strings.TrimPrefix(trimmed, "*"))
		}
		lines = append(lines, line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
