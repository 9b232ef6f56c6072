package github

import (
	"errors"

	"github.com/pantheonreview/pantheon/internal/providers"
)

// ErrMissingToken is returned when no access token is configured
var ErrMissingToken = errors.New("github token is required")

// GitHubConfig holds the settings read from the [github] config section
type GitHubConfig struct {
	Token             string
	APIURL            string
	RequestsPerSecond float64
}

// New creates a provider from configuration
func New(config GitHubConfig, opts ...Option) (providers.Provider, error) {
	if config.Token == "" {
		return nil, ErrMissingToken
	}
	all := []Option{WithAPIURL(config.APIURL)}
	if config.RequestsPerSecond > 0 {
		all = append(all, WithRateLimit(config.RequestsPerSecond, int(config.RequestsPerSecond)+1))
	}
	return NewGitHubProvider(config.Token, append(all, opts...)...), nil
}
