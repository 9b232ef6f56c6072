package diff

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pantheonreview/pantheon/pkg/models"
)

// PositionMode selects how removed lines affect the diff position counter.
type PositionMode string

const (
	// PositionGitHub counts every line below the first hunk header,
	// removed lines and later hunk headers included. This is the
	// convention of the GitHub pull request review comment API.
	PositionGitHub PositionMode = "github"
	// PositionSkipRemoved does not advance the counter on removed lines.
	// Each hunk header resets the counter to the header's own ordinal.
	PositionSkipRemoved PositionMode = "skip-removed"
)

// ParsePositionMode validates a configured mode name
func ParsePositionMode(s string) (PositionMode, bool) {
	switch PositionMode(strings.ToLower(strings.TrimSpace(s))) {
	case PositionGitHub, "":
		return PositionGitHub, true
	case PositionSkipRemoved:
		return PositionSkipRemoved, true
	}
	return "", false
}

// Example: @@ -10,3 +10,4 @@ func main() {
// Counts may be omitted when they equal 1.
var hunkHeaderRe = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@(.*)$`)

// Parser parses unified diff text into hunks and line position maps
type Parser struct {
	mode   PositionMode
	logger zerolog.Logger
}

// Option configures a Parser
type Option func(*Parser)

// WithPositionMode sets the position counting convention
func WithPositionMode(mode PositionMode) Option {
	return func(p *Parser) {
		p.mode = mode
	}
}

// WithLogger sets the logger used for skipped hunks
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Parser) {
		p.logger = logger
	}
}

// NewParser creates a new diff parser
func NewParser(opts ...Option) *Parser {
	p := &Parser{
		mode:   PositionGitHub,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Mode returns the position convention in use
func (p *Parser) Mode() PositionMode {
	return p.mode
}

// ParseFile parses the patch of a single file. The patch may start with
// file headers; everything before the first hunk header is ignored.
func (p *Parser) ParseFile(path, patch string) *models.CodeDiff {
	codeDiff := &models.CodeDiff{
		FilePath:  path,
		Status:    models.FileModified,
		FileType:  determineFileType(path),
		Patch:     patch,
		Positions: models.NewLinePositionMap(),
	}

	lines := splitLines(patch)
	firstHeader := -1
	var cur *models.DiffHunk
	var target, pos int
	var oldRem, newRem int

	flush := func() {
		if cur != nil {
			codeDiff.Hunks = append(codeDiff.Hunks, *cur)
			cur = nil
		}
	}

	for i, line := range lines {
		if strings.HasPrefix(line, "@@") {
			flush()
			if firstHeader < 0 {
				firstHeader = i
			}
			ordinal := i - firstHeader
			pos = ordinal

			hunk, ok := parseHunkHeader(line)
			if !ok {
				codeDiff.SkippedHunks++
				p.logger.Debug().
					Str("file", path).
					Int("ordinal", ordinal).
					Str("header", line).
					Msg("Skipping malformed hunk header")
				continue
			}
			cur = &hunk
			target = hunk.NewStartLine - 1
			oldRem, newRem = hunk.OldLineCount, hunk.NewLineCount
			continue
		}

		if cur == nil {
			continue
		}

		if line == "" {
			// Some transports strip the single space of empty context lines
			if oldRem <= 0 || newRem <= 0 {
				flush()
				continue
			}
			line = " "
		}

		switch line[0] {
		case '-':
			oldRem--
			dl := models.DiffLine{Kind: models.LineRemoved, Content: line[1:]}
			if p.mode == PositionGitHub {
				pos++
				dl.Position = pos
			}
			cur.Lines = append(cur.Lines, dl)
		case '\\':
			// "\ No newline at end of file" occupies a row but addresses no line
			if p.mode == PositionGitHub {
				pos++
			}
		case '+', ' ':
			target++
			pos++
			kind := models.LineContext
			newRem--
			if line[0] == '+' {
				kind = models.LineAdded
			} else {
				oldRem--
			}
			cur.Lines = append(cur.Lines, models.DiffLine{
				Kind:       kind,
				TargetLine: target,
				Position:   pos,
				Content:    line[1:],
			})
			codeDiff.Positions.Record(target, pos)
		default:
			flush()
		}
	}
	flush()

	return codeDiff
}

// Parse parses a diff stream covering several files. Files are demarcated
// by "diff --git" lines, "---"/"+++" header pairs, or a bare "--- path"
// line outside of a hunk body.
func (p *Parser) Parse(diffText string) *Model {
	if strings.TrimSpace(diffText) == "" {
		return NewModel()
	}

	sections := splitDiffByFile(splitLines(diffText))
	files := make([]*models.CodeDiff, 0, len(sections))
	for _, s := range sections {
		if s.path == "" {
			p.logger.Debug().Int("lines", len(s.lines)).Msg("Skipping diff section without a file path")
			continue
		}
		codeDiff := p.ParseFile(s.path, strings.Join(s.lines, "\n"))
		codeDiff.Status = s.status
		codeDiff.OldFilePath = s.oldPath
		files = append(files, codeDiff)
	}

	return NewModel(files...)
}

type fileSection struct {
	path     string
	oldPath  string
	status   models.FileStatus
	lines    []string
	hasHunks bool
	fromGit  bool
}

// splitDiffByFile splits a unified diff into separate file sections.
// Hunk line counts are tracked so that a removed line such as "--- x"
// inside a hunk body is not mistaken for a file header.
func splitDiffByFile(lines []string) []*fileSection {
	var sections []*fileSection
	var cur *fileSection
	var oldRem, newRem int

	start := func(fromGit bool) *fileSection {
		cur = &fileSection{status: models.FileModified, fromGit: fromGit}
		sections = append(sections, cur)
		oldRem, newRem = 0, 0
		return cur
	}

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		inBody := oldRem > 0 || newRem > 0

		if inBody && cur != nil {
			cur.lines = append(cur.lines, line)
			switch {
			case strings.HasPrefix(line, "-"):
				oldRem--
			case strings.HasPrefix(line, "+"):
				newRem--
			case strings.HasPrefix(line, "\\"):
			default:
				oldRem--
				newRem--
			}
			continue
		}

		switch {
		case strings.HasPrefix(line, "diff --git "):
			s := start(true)
			s.oldPath, s.path = parseGitHeader(line)
			if s.oldPath == s.path {
				s.oldPath = ""
			}
		case strings.HasPrefix(line, "--- "):
			next := ""
			if i+1 < len(lines) {
				next = lines[i+1]
			}
			oldPath := cleanHeaderPath(line[4:])
			if strings.HasPrefix(next, "+++ ") {
				if cur == nil || !cur.fromGit || cur.hasHunks {
					start(false)
				}
				newPath := cleanHeaderPath(next[4:])
				switch {
				case newPath == "/dev/null":
					cur.status = models.FileRemoved
					cur.path = oldPath
				case oldPath == "/dev/null":
					cur.status = models.FileAdded
					cur.path = newPath
				default:
					cur.path = newPath
					if oldPath != newPath && cur.status == models.FileModified {
						cur.status = models.FileRenamed
						cur.oldPath = oldPath
					}
				}
				i++
				continue
			}
			s := start(false)
			s.path = oldPath
		case strings.HasPrefix(line, "@@"):
			if cur == nil {
				start(false)
			}
			cur.hasHunks = true
			cur.lines = append(cur.lines, line)
			if hunk, ok := parseHunkHeader(line); ok {
				oldRem, newRem = hunk.OldLineCount, hunk.NewLineCount
			}
		case cur == nil:
		case !cur.hasHunks && strings.HasPrefix(line, "new file mode"):
			cur.status = models.FileAdded
		case !cur.hasHunks && strings.HasPrefix(line, "deleted file mode"):
			cur.status = models.FileRemoved
		case !cur.hasHunks && strings.HasPrefix(line, "rename from "):
			cur.status = models.FileRenamed
			cur.oldPath = strings.TrimPrefix(line, "rename from ")
		case !cur.hasHunks && strings.HasPrefix(line, "rename to "):
			cur.status = models.FileRenamed
			cur.path = strings.TrimPrefix(line, "rename to ")
		default:
			if cur.hasHunks {
				cur.lines = append(cur.lines, line)
			}
		}
	}

	return sections
}

// parseHunkHeader parses "@@ -a,b +c,d @@ text"
func parseHunkHeader(line string) (models.DiffHunk, bool) {
	m := hunkHeaderRe.FindStringSubmatch(line)
	if m == nil {
		return models.DiffHunk{}, false
	}
	oldStart, err := strconv.Atoi(m[1])
	if err != nil {
		return models.DiffHunk{}, false
	}
	newStart, err := strconv.Atoi(m[3])
	if err != nil {
		return models.DiffHunk{}, false
	}
	oldCount, ok := parseCount(m[2])
	if !ok {
		return models.DiffHunk{}, false
	}
	newCount, ok := parseCount(m[4])
	if !ok {
		return models.DiffHunk{}, false
	}
	return models.DiffHunk{
		OldStartLine: oldStart,
		OldLineCount: oldCount,
		NewStartLine: newStart,
		NewLineCount: newCount,
		Header:       line,
	}, true
}

func parseCount(s string) (int, bool) {
	if s == "" {
		return 1, true
	}
	n, err := strconv.Atoi(s)
	return n, err == nil
}

// parseGitHeader extracts paths from "diff --git a/old b/new"
func parseGitHeader(line string) (oldPath, newPath string) {
	rest := strings.TrimPrefix(line, "diff --git ")
	idx := strings.Index(rest, " b/")
	if idx < 0 {
		fields := strings.Fields(rest)
		if len(fields) == 2 {
			return cleanHeaderPath(fields[0]), cleanHeaderPath(fields[1])
		}
		return "", ""
	}
	return cleanHeaderPath(rest[:idx]), cleanHeaderPath(rest[idx+1:])
}

// cleanHeaderPath strips a/ b/ prefixes and trailing timestamps from header paths
func cleanHeaderPath(p string) string {
	if tab := strings.IndexByte(p, '\t'); tab >= 0 {
		p = p[:tab]
	}
	p = strings.TrimSpace(p)
	if p == "/dev/null" {
		return p
	}
	if strings.HasPrefix(p, "a/") || strings.HasPrefix(p, "b/") {
		p = p[2:]
	}
	return p
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

// determineFileType determines the type of file based on its path
func determineFileType(filePath string) string {
	base := filePath
	if slash := strings.LastIndexByte(base, '/'); slash >= 0 {
		base = base[slash+1:]
	}
	parts := strings.Split(base, ".")
	if len(parts) > 1 {
		return parts[len(parts)-1]
	}
	return ""
}
