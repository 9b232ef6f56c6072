package diff

import (
	"path"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/pantheonreview/pantheon/pkg/models"
)

// Model is the parsed form of one changeset: every changed file with its
// hunks and line position map. A Model belongs to a single pipeline run.
type Model struct {
	files  []*models.CodeDiff
	byPath map[string]*models.CodeDiff
	paths  []string
}

// NewModel builds a model from parsed files. When two files share a path
// the first one is kept.
func NewModel(files ...*models.CodeDiff) *Model {
	m := &Model{byPath: make(map[string]*models.CodeDiff, len(files))}
	for _, f := range files {
		if f == nil || f.FilePath == "" {
			continue
		}
		if _, exists := m.byPath[f.FilePath]; exists {
			continue
		}
		if f.Positions == nil {
			f.Positions = models.NewLinePositionMap()
		}
		m.byPath[f.FilePath] = f
		m.files = append(m.files, f)
		m.paths = append(m.paths, f.FilePath)
	}
	sort.Strings(m.paths)
	return m
}

// Files returns the changed files in input order
func (m *Model) Files() []*models.CodeDiff {
	if m == nil {
		return nil
	}
	return m.files
}

// Len returns the number of changed files
func (m *Model) Len() int {
	if m == nil {
		return 0
	}
	return len(m.files)
}

// File returns the changed file with the exact path
func (m *Model) File(filePath string) (*models.CodeDiff, bool) {
	if m == nil {
		return nil, false
	}
	f, ok := m.byPath[filePath]
	return f, ok
}

// Paths returns the changed file paths in lexicographic order. This is
// the order used to probe files for feedback that names no file.
func (m *Model) Paths() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.paths))
	copy(out, m.paths)
	return out
}

// Position looks up the diff position of a line in a file
func (m *Model) Position(filePath string, line int) (int, bool) {
	f, ok := m.File(filePath)
	if !ok {
		return 0, false
	}
	return f.Positions.Position(line)
}

// ResolvePath maps a path named in feedback to a changed file. An exact
// match wins; otherwise the first changed file, in probe order, whose path
// ends with the named path on a directory boundary is used.
func (m *Model) ResolvePath(named string) (string, bool) {
	if m == nil || named == "" {
		return "", false
	}
	if _, ok := m.byPath[named]; ok {
		return named, true
	}
	named = strings.TrimPrefix(named, "./")
	if _, ok := m.byPath[named]; ok {
		return named, true
	}
	for _, p := range m.paths {
		if strings.HasSuffix(p, "/"+named) {
			return p, true
		}
	}
	return "", false
}

// ProbeLine returns the first file, in probe order, whose map contains line
func (m *Model) ProbeLine(line int) (string, int, bool) {
	if m == nil || line <= 0 {
		return "", 0, false
	}
	for _, p := range m.paths {
		if pos, ok := m.byPath[p].Positions.Position(line); ok {
			return p, pos, true
		}
	}
	return "", 0, false
}

// Exclude returns a model without the files matching any glob pattern.
// Patterns use doublestar syntax ("**" crosses directories) and are
// matched against the full path and the base name.
func (m *Model) Exclude(patterns []string) *Model {
	if m == nil {
		return NewModel()
	}
	if len(patterns) == 0 {
		return m
	}
	kept := make([]*models.CodeDiff, 0, len(m.files))
	for _, f := range m.files {
		if !matchesAny(f.FilePath, patterns) {
			kept = append(kept, f)
		}
	}
	return NewModel(kept...)
}

func matchesAny(filePath string, patterns []string) bool {
	base := path.Base(filePath)
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		if ok, _ := doublestar.Match(pattern, filePath); ok {
			return true
		}
		if ok, _ := doublestar.Match(pattern, base); ok {
			return true
		}
	}
	return false
}
