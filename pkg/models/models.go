package models

import (
	"sort"
	"strings"
)

// LineKind classifies a line in a hunk body
type LineKind string

const (
	LineAdded   LineKind = "added"
	LineRemoved LineKind = "removed"
	LineContext LineKind = "context"
)

// DiffLine is one body line of a hunk. TargetLine is 0 for removed lines.
type DiffLine struct {
	Kind       LineKind `json:"kind"`
	TargetLine int      `json:"target_line,omitempty"`
	Position   int      `json:"position"`
	Content    string   `json:"content"`
}

// DiffHunk represents a single @@ -a,b +c,d @@ block of a diff
type DiffHunk struct {
	OldStartLine int        `json:"old_start_line"`
	OldLineCount int        `json:"old_line_count"`
	NewStartLine int        `json:"new_start_line"`
	NewLineCount int        `json:"new_line_count"`
	Header       string     `json:"header"`
	Lines        []DiffLine `json:"lines"`
}

// LinePositionMap maps target-file line numbers to diff positions.
// Entries can only be appended; the first position recorded for a line wins.
type LinePositionMap struct {
	positions map[int]int
	lines     []int
}

// NewLinePositionMap creates an empty map
func NewLinePositionMap() *LinePositionMap {
	return &LinePositionMap{positions: make(map[int]int)}
}

// Record adds line -> position unless the line is already mapped.
// It reports whether the entry was added.
func (m *LinePositionMap) Record(line, position int) bool {
	if m.positions == nil {
		m.positions = make(map[int]int)
	}
	if _, exists := m.positions[line]; exists {
		return false
	}
	m.positions[line] = position
	m.lines = append(m.lines, line)
	return true
}

// Position returns the diff position for a target line
func (m *LinePositionMap) Position(line int) (int, bool) {
	if m == nil {
		return 0, false
	}
	pos, ok := m.positions[line]
	return pos, ok
}

// Lines returns the mapped target lines in ascending order
func (m *LinePositionMap) Lines() []int {
	if m == nil {
		return nil
	}
	out := make([]int, len(m.lines))
	copy(out, m.lines)
	sort.Ints(out)
	return out
}

// Len returns the number of mapped lines
func (m *LinePositionMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.lines)
}

// FileStatus describes how a file changed in the changeset
type FileStatus string

const (
	FileModified FileStatus = "modified"
	FileAdded    FileStatus = "added"
	FileRemoved  FileStatus = "removed"
	FileRenamed  FileStatus = "renamed"
)

// CodeDiff represents one changed file of a pull request
type CodeDiff struct {
	FilePath    string
	OldFilePath string // Only set for renames
	Status      FileStatus
	FileType    string
	Patch       string
	Hunks       []DiffHunk
	Positions   *LinePositionMap
	// SkippedHunks counts hunk headers that failed to parse
	SkippedHunks int
}

// IsDeleted reports whether the file was removed by the changeset
func (d *CodeDiff) IsDeleted() bool {
	return d.Status == FileRemoved
}

// FeedbackCandidate is a single unit of critique recovered from one source's text.
// FilePath is empty and Line is 0 when the text did not name them.
type FeedbackCandidate struct {
	SourceID    string `json:"source_id"`
	FilePath    string `json:"file_path,omitempty"`
	Line        int    `json:"line,omitempty"`
	Quote       string `json:"quote,omitempty"`
	Issue       string `json:"issue,omitempty"`
	Suggestion  string `json:"suggestion,omitempty"`
	Text        string `json:"text,omitempty"`
	Attribution string `json:"attribution,omitempty"`
	Score       string `json:"score,omitempty"`
	Rule        string `json:"rule"`
	SpanStart   int    `json:"span_start"`
	SpanEnd     int    `json:"span_end"`
}

// HasFile reports whether the candidate names a file
func (c FeedbackCandidate) HasFile() bool {
	return c.FilePath != ""
}

// HasLine reports whether the candidate names a line
func (c FeedbackCandidate) HasLine() bool {
	return c.Line > 0
}

// Body composes the comment text of the candidate
func (c FeedbackCandidate) Body() string {
	var parts []string
	if c.Quote != "" {
		parts = append(parts, "> `"+c.Quote+"`")
	}
	if c.Issue != "" {
		parts = append(parts, "**Issue:** "+c.Issue)
	}
	if c.Suggestion != "" {
		parts = append(parts, "**Suggestion:** "+c.Suggestion)
	}
	if c.Text != "" {
		parts = append(parts, c.Text)
	}
	return strings.Join(parts, "\n\n")
}

// SourceFeedback is the extractor output for one source
type SourceFeedback struct {
	SourceID   string              `json:"source_id"`
	Score      string              `json:"score,omitempty"`
	Candidates []FeedbackCandidate `json:"candidates"`
}

// Contribution is one source's text inside a combined comment
type Contribution struct {
	SourceID    string `json:"source_id"`
	Attribution string `json:"attribution,omitempty"`
	Text        string `json:"text"`
}

// ResolvedComment is feedback placed on an addressable diff position
type ResolvedComment struct {
	FilePath      string         `json:"file_path"`
	Line          int            `json:"line"`
	Position      int            `json:"position"`
	Body          string         `json:"body"`
	Sources       []string       `json:"sources"`
	Contributions []Contribution `json:"contributions"`
	Scores        ScoreRollup    `json:"scores"`
}

// UnresolvedComment is feedback without an addressable position.
// FilePath is empty for the file-less bucket.
type UnresolvedComment struct {
	FilePath      string         `json:"file_path,omitempty"`
	Line          int            `json:"line,omitempty"`
	Body          string         `json:"body"`
	Sources       []string       `json:"sources"`
	Contributions []Contribution `json:"contributions"`
	Scores        ScoreRollup    `json:"scores"`
}

// SourceScore is the parsed score of a single source
type SourceScore struct {
	SourceID string `json:"source_id"`
	Raw      string `json:"raw,omitempty"`
	Value    int    `json:"value"`
	Valid    bool   `json:"valid"`
}

// ScoreRollup summarises the scores of a set of sources.
// Mean is nil when no source reported a numeric score.
type ScoreRollup struct {
	PerSource []SourceScore `json:"per_source"`
	Mean      *float64      `json:"mean"`
}

// Value returns the numeric score for a source
func (r ScoreRollup) Value(sourceID string) (int, bool) {
	for _, s := range r.PerSource {
		if s.SourceID == sourceID && s.Valid {
			return s.Value, true
		}
	}
	return 0, false
}

// SourceFailure records a source whose collaborator call failed
type SourceFailure struct {
	SourceID string `json:"source_id"`
	Error    string `json:"error"`
}

// ReviewBundle is the final output of one pipeline run
type ReviewBundle struct {
	RunID      string              `json:"run_id,omitempty"`
	Resolved   []ResolvedComment   `json:"resolved"`
	Unresolved []UnresolvedComment `json:"unresolved"`
	Scores     ScoreRollup         `json:"scores"`
	Failures   []SourceFailure     `json:"failures,omitempty"`
}

// CommentCount returns the number of resolved and unresolved comments
func (b *ReviewBundle) CommentCount() int {
	if b == nil {
		return 0
	}
	return len(b.Resolved) + len(b.Unresolved)
}

// ReviewInput is what every reviewer source is given for one run
type ReviewInput struct {
	Title       string
	Description string
	Files       []*CodeDiff
}
