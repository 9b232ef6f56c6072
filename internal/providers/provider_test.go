package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePRURL(t *testing.T) {
	tests := []struct {
		raw      string
		expected PullRequestRef
	}{
		{"https://github.com/acme/widgets/pull/42", PullRequestRef{"acme", "widgets", 42}},
		{"https://github.com/acme/widgets/pull/42/files", PullRequestRef{"acme", "widgets", 42}},
		{"https://ghe.example.com/team/api/pull/7/", PullRequestRef{"team", "api", 7}},
		{"acme/widgets#9", PullRequestRef{"acme", "widgets", 9}},
	}

	for _, tt := range tests {
		ref, err := ParsePRURL(tt.raw)
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.expected, ref, tt.raw)
	}
}

func TestParsePRURLRejectsOtherURLs(t *testing.T) {
	for _, raw := range []string{
		"",
		"https://github.com/acme/widgets",
		"https://github.com/acme/widgets/issues/3",
		"https://github.com/acme/widgets/pull/abc",
		"acme/widgets#0",
	} {
		_, err := ParsePRURL(raw)
		assert.ErrorIs(t, err, ErrInvalidPRURL, raw)
	}
}

func TestPullRequestRefID(t *testing.T) {
	assert.Equal(t, "acme/widgets/42", PullRequestRef{"acme", "widgets", 42}.ID())
}

func TestIsGitHubPRURL(t *testing.T) {
	assert.True(t, IsGitHubPRURL("https://github.com/a/b/pull/1"))
	assert.False(t, IsGitHubPRURL("https://gitlab.com/a/b/-/merge_requests/1"))
}
