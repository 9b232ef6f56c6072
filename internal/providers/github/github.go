package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/pantheonreview/pantheon/internal/diff"
	"github.com/pantheonreview/pantheon/internal/providers"
	"github.com/pantheonreview/pantheon/internal/retry"
	"github.com/pantheonreview/pantheon/pkg/models"
)

// DefaultAPIURL is the public GitHub REST endpoint
const DefaultAPIURL = "https://api.github.com"

// maxFilePages bounds pagination; the files endpoint stops at 3000 files
const (
	filesPerPage = 100
	maxFilePages = 30
)

// GitHubProvider talks to the GitHub REST API with a personal access token
type GitHubProvider struct {
	token      string
	apiURL     string
	httpClient *http.Client
	limiter    *rate.Limiter
	parser     *diff.Parser
	retry      retry.Config
	logger     zerolog.Logger
}

var _ providers.Provider = (*GitHubProvider)(nil)

// Option configures a GitHubProvider
type Option func(*GitHubProvider)

// WithAPIURL points the client at a GitHub Enterprise or test server
func WithAPIURL(apiURL string) Option {
	return func(p *GitHubProvider) {
		if apiURL != "" {
			p.apiURL = strings.TrimSuffix(apiURL, "/")
		}
	}
}

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(p *GitHubProvider) {
		p.httpClient = c
	}
}

// WithRateLimit caps the request rate. A non-positive rps disables the limit.
func WithRateLimit(rps float64, burst int) Option {
	return func(p *GitHubProvider) {
		if rps <= 0 {
			p.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		if burst < 1 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithParser sets the diff parser used for file patches
func WithParser(parser *diff.Parser) Option {
	return func(p *GitHubProvider) {
		p.parser = parser
	}
}

// WithRetry sets the retry policy for API calls
func WithRetry(cfg retry.Config) Option {
	return func(p *GitHubProvider) {
		p.retry = cfg
	}
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(p *GitHubProvider) {
		p.logger = logger
	}
}

// NewGitHubProvider creates a provider authenticated with a token
func NewGitHubProvider(token string, opts ...Option) *GitHubProvider {
	p := &GitHubProvider{
		token:      token,
		apiURL:     DefaultAPIURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(5), 5), // 5 requests per second
		parser:     diff.NewParser(),
		retry:      retry.DefaultConfig(),
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *GitHubProvider) Name() string {
	return "github"
}

// apiError is a non-2xx response
type apiError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("GitHub %s %s failed with status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// do sends one API request, throttled and retried. out may be nil.
func (p *GitHubProvider) do(ctx context.Context, method, path string, payload, out any) error {
	var data []byte
	if payload != nil {
		var err error
		data, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	result := retry.Do(ctx, p.retry, func(ctx context.Context) error {
		if err := p.limiter.Wait(ctx); err != nil {
			return retry.Permanent(err)
		}

		var body io.Reader
		if data != nil {
			body = bytes.NewReader(data)
		}
		req, err := http.NewRequestWithContext(ctx, method, p.apiURL+path, body)
		if err != nil {
			return retry.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Authorization", "token "+p.token)
		req.Header.Set("Accept", "application/vnd.github.v3+json")
		req.Header.Set("User-Agent", "pantheon-review")
		if data != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := p.httpClient.Do(req)
		if err != nil {
			if retry.IsRetryable(err) {
				return err
			}
			return retry.Permanent(fmt.Errorf("failed to execute request: %w", err))
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			apiErr := &apiError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
			if retryableStatus(resp.StatusCode) {
				return apiErr
			}
			return retry.Permanent(apiErr)
		}

		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return retry.Permanent(fmt.Errorf("failed to decode response: %w", err))
		}
		return nil
	}, p.logger)

	if !result.Success {
		return result.LastError
	}
	return nil
}

type pullRequest struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	State  string `json:"state"`
	User   struct {
		Login string `json:"login"`
	} `json:"user"`
	Head struct {
		SHA string `json:"sha"`
		Ref string `json:"ref"`
	} `json:"head"`
	Base struct {
		SHA string `json:"sha"`
		Ref string `json:"ref"`
	} `json:"base"`
	HTMLURL string `json:"html_url"`
}

// GetPullRequest fetches the pull request metadata
func (p *GitHubProvider) GetPullRequest(ctx context.Context, ref providers.PullRequestRef) (*providers.PullRequestDetails, error) {
	var pr pullRequest
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d", ref.Owner, ref.Repo, ref.Number)
	if err := p.do(ctx, http.MethodGet, path, nil, &pr); err != nil {
		return nil, fmt.Errorf("failed to fetch pull request %s: %w", ref.ID(), err)
	}

	return &providers.PullRequestDetails{
		Number:       pr.Number,
		Title:        pr.Title,
		Description:  pr.Body,
		Author:       pr.User.Login,
		State:        pr.State,
		SourceBranch: pr.Head.Ref,
		TargetBranch: pr.Base.Ref,
		WebURL:       pr.HTMLURL,
		DiffRefs: providers.DiffRefs{
			BaseSHA: pr.Base.SHA,
			HeadSHA: pr.Head.SHA,
		},
	}, nil
}

type pullRequestFile struct {
	Filename         string `json:"filename"`
	PreviousFilename string `json:"previous_filename"`
	Status           string `json:"status"`
	Additions        int    `json:"additions"`
	Deletions        int    `json:"deletions"`
	Patch            string `json:"patch"`
}

// GetPullRequestFiles lists the changed files and parses each patch into
// hunks and a line position map
func (p *GitHubProvider) GetPullRequestFiles(ctx context.Context, ref providers.PullRequestRef) ([]*models.CodeDiff, error) {
	var diffs []*models.CodeDiff

	for page := 1; page <= maxFilePages; page++ {
		var files []pullRequestFile
		path := fmt.Sprintf("/repos/%s/%s/pulls/%d/files?per_page=%d&page=%d", ref.Owner, ref.Repo, ref.Number, filesPerPage, page)
		if err := p.do(ctx, http.MethodGet, path, nil, &files); err != nil {
			return nil, fmt.Errorf("failed to list files of %s: %w", ref.ID(), err)
		}

		for _, f := range files {
			diffs = append(diffs, p.convertFile(f))
		}
		if len(files) < filesPerPage {
			break
		}
	}

	p.logger.Debug().
		Str("pull_request", ref.ID()).
		Int("files", len(diffs)).
		Msg("Fetched pull request files")
	return diffs, nil
}

func (p *GitHubProvider) convertFile(f pullRequestFile) *models.CodeDiff {
	codeDiff := p.parser.ParseFile(f.Filename, f.Patch)

	switch f.Status {
	case "added":
		codeDiff.Status = models.FileAdded
	case "removed":
		codeDiff.Status = models.FileRemoved
	case "renamed":
		codeDiff.Status = models.FileRenamed
		codeDiff.OldFilePath = f.PreviousFilename
	default:
		codeDiff.Status = models.FileModified
	}

	if f.Patch == "" {
		// Binary or oversized files come without a patch
		p.logger.Debug().Str("file", f.Filename).Msg("File has no patch; nothing can be positioned on it")
	}
	return codeDiff
}

type reviewRequest struct {
	CommitID string                    `json:"commit_id,omitempty"`
	Body     string                    `json:"body"`
	Event    string                    `json:"event"`
	Comments []providers.ReviewComment `json:"comments,omitempty"`
}

// SubmitReview posts one COMMENT review carrying the positioned comments.
// A 422 answer is reported as providers.ErrReviewRejected so the caller
// can resubmit without positions.
func (p *GitHubProvider) SubmitReview(ctx context.Context, ref providers.PullRequestRef, review providers.Review) error {
	payload := reviewRequest{
		CommitID: review.CommitID,
		Body:     review.Body,
		Event:    "COMMENT",
		Comments: review.Comments,
	}
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d/reviews", ref.Owner, ref.Repo, ref.Number)

	err := p.do(ctx, http.MethodPost, path, payload, nil)
	if err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnprocessableEntity {
			return fmt.Errorf("%w: %s", providers.ErrReviewRejected, apiErr.Body)
		}
		return fmt.Errorf("failed to submit review on %s: %w", ref.ID(), err)
	}

	p.logger.Info().
		Str("pull_request", ref.ID()).
		Int("comments", len(review.Comments)).
		Msg("Submitted review")
	return nil
}
