package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testModel() *Model {
	p := NewParser()
	return NewModel(
		p.ParseFile("src/zeta.go", "@@ -1,1 +1,2 @@\n a\n+b"),
		p.ParseFile("docs/readme.md", "@@ -7,1 +7,1 @@\n-x\n+y"),
		p.ParseFile("src/alpha.go", "@@ -1,1 +1,3 @@\n a\n+b\n+c"),
	)
}

func TestModelOrdering(t *testing.T) {
	m := testModel()

	require.Equal(t, 3, m.Len())
	assert.Equal(t, "src/zeta.go", m.Files()[0].FilePath, "Files keeps input order")
	assert.Equal(t, []string{"docs/readme.md", "src/alpha.go", "src/zeta.go"}, m.Paths())
}

func TestModelKeepsFirstDuplicate(t *testing.T) {
	p := NewParser()
	first := p.ParseFile("a.go", "@@ -1,1 +1,1 @@\n a")
	second := p.ParseFile("a.go", "@@ -9,1 +9,1 @@\n z")

	m := NewModel(first, second, nil)

	require.Equal(t, 1, m.Len())
	_, ok := m.Position("a.go", 1)
	assert.True(t, ok)
	_, ok = m.Position("a.go", 9)
	assert.False(t, ok)
}

func TestProbeLineUsesLexicographicOrder(t *testing.T) {
	m := testModel()

	// Line 2 exists in src/alpha.go and src/zeta.go
	file, pos, ok := m.ProbeLine(2)
	require.True(t, ok)
	assert.Equal(t, "src/alpha.go", file)
	assert.Equal(t, 2, pos)

	file, _, ok = m.ProbeLine(7)
	require.True(t, ok)
	assert.Equal(t, "docs/readme.md", file)

	_, _, ok = m.ProbeLine(99)
	assert.False(t, ok)

	_, _, ok = m.ProbeLine(0)
	assert.False(t, ok)
}

func TestResolvePath(t *testing.T) {
	m := testModel()

	tests := []struct {
		named    string
		expected string
		found    bool
	}{
		{"src/alpha.go", "src/alpha.go", true},
		{"./src/zeta.go", "src/zeta.go", true},
		{"readme.md", "docs/readme.md", true},
		{"alpha.go", "src/alpha.go", true},
		{"pha.go", "", false},
		{"missing.go", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := m.ResolvePath(tt.named)
		assert.Equal(t, tt.found, ok, tt.named)
		assert.Equal(t, tt.expected, got, tt.named)
	}
}

func TestExclude(t *testing.T) {
	m := testModel()

	filtered := m.Exclude([]string{"*.md", " "})
	assert.Equal(t, []string{"src/alpha.go", "src/zeta.go"}, filtered.Paths())

	filtered = m.Exclude([]string{"src/*"})
	assert.Equal(t, []string{"docs/readme.md"}, filtered.Paths())

	filtered = m.Exclude([]string{"**/zeta.go"})
	assert.Equal(t, []string{"docs/readme.md", "src/alpha.go"}, filtered.Paths())

	assert.Same(t, m, m.Exclude(nil))
}

func TestNilModel(t *testing.T) {
	var m *Model
	assert.Equal(t, 0, m.Len())
	assert.Nil(t, m.Files())
	_, ok := m.File("x")
	assert.False(t, ok)
	_, _, ok = m.ProbeLine(1)
	assert.False(t, ok)
}
