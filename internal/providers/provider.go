package providers

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ErrInvalidPRURL is returned for URLs that do not point at a pull request
var ErrInvalidPRURL = errors.New("invalid pull request URL")

// ErrReviewRejected is returned when the host refuses the positioned
// comments of a review, usually because a position is outside the diff
var ErrReviewRejected = errors.New("review rejected by host")

// IsGitHubPRURL detects a github.com pull request URL
func IsGitHubPRURL(raw string) bool {
	return strings.HasPrefix(raw, "https://github.com/") && strings.Contains(raw, "/pull/")
}

// PullRequestRef identifies a pull request on a host
type PullRequestRef struct {
	Owner  string
	Repo   string
	Number int
}

// ID returns the owner/repo/number form of the reference
func (r PullRequestRef) ID() string {
	return fmt.Sprintf("%s/%s/%d", r.Owner, r.Repo, r.Number)
}

// ParsePRURL accepts https://<host>/owner/repo/pull/N[/...] and the
// short owner/repo#N form
func ParsePRURL(raw string) (PullRequestRef, error) {
	raw = strings.TrimSpace(raw)

	if owner, rest, ok := strings.Cut(raw, "/"); ok && !strings.Contains(raw, "://") {
		if repo, num, ok := strings.Cut(rest, "#"); ok {
			n, err := strconv.Atoi(num)
			if err != nil || n <= 0 || owner == "" || repo == "" {
				return PullRequestRef{}, fmt.Errorf("%w: %q", ErrInvalidPRURL, raw)
			}
			return PullRequestRef{Owner: owner, Repo: repo, Number: n}, nil
		}
	}

	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return PullRequestRef{}, fmt.Errorf("%w: %q", ErrInvalidPRURL, raw)
	}
	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(parts) < 4 || parts[2] != "pull" {
		return PullRequestRef{}, fmt.Errorf("%w: expected /owner/repo/pull/number, got %q", ErrInvalidPRURL, parsed.Path)
	}
	n, err := strconv.Atoi(parts[3])
	if err != nil || n <= 0 {
		return PullRequestRef{}, fmt.Errorf("%w: bad pull request number %q", ErrInvalidPRURL, parts[3])
	}
	return PullRequestRef{Owner: parts[0], Repo: parts[1], Number: n}, nil
}
