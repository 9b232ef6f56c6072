package feedback

import (
	"math"
	"regexp"
	"strings"
)

// spans is a set of claimed [start, end) byte ranges
type spans [][2]int

func (s *spans) add(start, end int) {
	if end > start {
		*s = append(*s, [2]int{start, end})
	}
}

func (s spans) contains(pos int) bool {
	for _, sp := range s {
		if pos >= sp[0] && pos < sp[1] {
			return true
		}
	}
	return false
}

// nextStrong returns the start of the first strong line reference at or
// after pos
func nextStrong(refs []lineRef, pos int) int {
	for _, r := range refs {
		if r.strong && r.start >= pos {
			return r.start
		}
	}
	return math.MaxInt
}

var (
	headingRe = regexp.MustCompile(`^(?:#{1,6}\s|\*\*[^*\n]+\*\*:?\s*$|[A-Z][A-Za-z ]{0,40}:\s*$)`)
	bulletRe  = regexp.MustCompile(`^(?:[-*+•]\s|\d+[.)]\s)`)
	spaceRe   = regexp.MustCompile(`[ \t]+`)

	linePrefixRe   = regexp.MustCompile("^[ \t>*_#+\\-•]*(?:\\d+[.)][ \t]*)?[ \t*_`]*$")
	labeledAfterRe = regexp.MustCompile("^[*_`]*[ \t]*(?::|[-–][ \t])")
	blankLineRe    = regexp.MustCompile(`\n[ \t]*\n`)
)

// atLineStart reports whether only list or emphasis markup precedes pos
// on its line
func atLineStart(text string, pos int) bool {
	lineStart := strings.LastIndexByte(text[:pos], '\n') + 1
	return linePrefixRe.MatchString(text[lineStart:pos])
}

// labeledAfter reports whether a reference ending at pos is followed by a
// label separator, as in "line 9: ..." or "line 9 - ..."
func labeledAfter(text string, pos int) bool {
	return labeledAfterRe.MatchString(text[pos:min(len(text), pos+8)])
}

// restOfLineEmpty reports whether nothing but markup follows pos on its line
func restOfLineEmpty(text string, pos int) bool {
	rest := text[pos:]
	if i := strings.IndexByte(rest, '\n'); i >= 0 {
		rest = rest[:i]
	}
	return strings.Trim(rest, " \t`*_:\"'") == ""
}

// paragraphEnd returns the offset of the first blank line in s that comes
// after some content, or len(s)
func paragraphEnd(s string) int {
	content := len(s) - len(strings.TrimLeft(s, " \t\n"))
	if loc := blankLineRe.FindStringIndex(s[content:]); loc != nil {
		return content + loc[0]
	}
	return len(s)
}

func isHeading(s string) bool {
	return headingRe.MatchString(s)
}

func isBullet(s string) bool {
	return bulletRe.MatchString(s)
}

// paragraphAt returns the paragraph of text that contains pos, cut to the
// [from, to) range
func paragraphAt(text string, from, pos, to int) (string, int) {
	pos, to = clampRange(text, pos, to)
	start := from
	if i := strings.LastIndex(text[:pos], "\n\n"); i >= 0 && i+2 > from {
		start = i + 2
	}
	end := to
	if i := strings.Index(text[pos:to], "\n\n"); i >= 0 {
		end = pos + i
	}
	return cleanValue(strings.TrimLeft(strings.TrimSpace(text[start:end]), ":-–—).,; \t")), end
}

// cleanValue collapses whitespace and strips markdown emphasis around s
func cleanValue(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "*_")
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func trimQuotes(s string) string {
	return strings.Trim(strings.TrimSpace(s), "\"'`")
}

// cleanPath normalizes a file reference taken from prose
func cleanPath(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "\"'`*_")
	s = strings.TrimRight(s, ".,:;)")
	for _, prefix := range []string{"a/", "b/", "./"} {
		if strings.HasPrefix(s, prefix) && len(s) > len(prefix) {
			s = s[len(prefix):]
			break
		}
	}
	if !strings.Contains(s, ".") && !strings.Contains(s, "/") {
		return ""
	}
	return s
}
