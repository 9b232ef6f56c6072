package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pantheonreview/pantheon/pkg/models"
)

func TestBuildPromptSections(t *testing.T) {
	prompt := BuildPrompt(DefaultPersonas()[3], testInput())

	assert.Contains(t, prompt, "You are Hephaestus, reviewing for Code Accuracy.")
	assert.Contains(t, prompt, "Pull request title: Add cache")
	assert.Contains(t, prompt, "## File: app.py")
	assert.Contains(t, prompt, "   11 +added1\n")
	assert.Contains(t, prompt, "      -removedX\n")
	assert.Contains(t, prompt, "   12  context2\n")
	assert.Contains(t, prompt, "[DEITY: Hephaestus (Code Accuracy)]")
	assert.Contains(t, prompt, `"SCORE: [0-100]"`)
	assert.NotContains(t, prompt, `"reviews"`)
}

func TestBuildPromptJSON(t *testing.T) {
	personas := DefaultPersonas()
	style := personas[len(personas)-1]
	require.Equal(t, FormatJSON, style.Format)

	prompt := BuildPrompt(style, testInput())

	assert.Contains(t, prompt, `{"reviews": [`)
	assert.NotContains(t, prompt, "[SECTION:")
}

func TestBuildPromptSkipsRemovedFiles(t *testing.T) {
	input := testInput()
	input.Files = append(input.Files, &models.CodeDiff{
		FilePath: "gone.py",
		Status:   models.FileRemoved,
		Hunks:    []models.DiffHunk{{Header: "@@ -1 +0,0 @@"}},
	})

	prompt := BuildPrompt(DefaultPersonas()[0], input)

	assert.NotContains(t, prompt, "gone.py")
}

func TestParseProvider(t *testing.T) {
	tests := []struct {
		name    string
		want    Provider
		wantErr bool
	}{
		{"", ProviderOpenAI, false},
		{"Gemini", ProviderGoogleAI, false},
		{"claude", ProviderAnthropic, false},
		{"cohere", ProviderCohere, false},
		{"local", ProviderOllama, false},
		{"watson", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseProvider(tt.name)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrProviderNotFound)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
