package providers

import (
	"context"

	"github.com/pantheonreview/pantheon/pkg/models"
)

// Provider represents a code hosting provider that serves pull request
// diffs and accepts reviews
type Provider interface {
	GetPullRequest(ctx context.Context, ref PullRequestRef) (*PullRequestDetails, error)
	GetPullRequestFiles(ctx context.Context, ref PullRequestRef) ([]*models.CodeDiff, error)
	SubmitReview(ctx context.Context, ref PullRequestRef, review Review) error
	Name() string
}

// PullRequestDetails contains information about a pull request
type PullRequestDetails struct {
	Number       int
	Title        string
	Description  string
	Author       string
	State        string
	SourceBranch string
	TargetBranch string
	WebURL       string
	DiffRefs     DiffRefs
}

// DiffRefs contains the commits the diff was computed between
type DiffRefs struct {
	BaseSHA string
	HeadSHA string
}

// Review is one review submission: a summary body plus comments placed on
// diff positions
type Review struct {
	CommitID string
	Body     string
	Comments []ReviewComment
}

// ReviewComment is a comment anchored to a diff position
type ReviewComment struct {
	Path     string `json:"path"`
	Position int    `json:"position"`
	Body     string `json:"body"`
}
