package review

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/pantheonreview/pantheon/internal/output"
	"github.com/pantheonreview/pantheon/internal/providers"
	"github.com/pantheonreview/pantheon/pkg/models"
)

// BuildReview converts a bundle into one review submission: resolved
// comments become positioned comments and everything else goes in the body
func BuildReview(commitID string, bundle *models.ReviewBundle) providers.Review {
	review := providers.Review{
		CommitID: commitID,
		Body:     output.ReviewBody(bundle, false),
	}
	for _, c := range bundle.Resolved {
		review.Comments = append(review.Comments, providers.ReviewComment{
			Path:     c.FilePath,
			Position: c.Position,
			Body:     c.Body,
		})
	}
	return review
}

// post submits the review. When the host rejects the positioned comments
// the whole bundle is resubmitted as a single body. It reports whether
// that fallback was used.
func (p *Pipeline) post(ctx context.Context, ref providers.PullRequestRef, pr *providers.PullRequestDetails, bundle *models.ReviewBundle, logger zerolog.Logger) (bool, error) {
	review := BuildReview(pr.DiffRefs.HeadSHA, bundle)

	logger.Info().Int("line_comments", len(review.Comments)).Msg("Submitting review")
	err := p.provider.SubmitReview(ctx, ref, review)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, providers.ErrReviewRejected) || len(review.Comments) == 0 {
		return false, err
	}

	logger.Warn().Err(err).Msg("Positioned comments rejected, resubmitting as a single review body")
	fallback := providers.Review{
		CommitID: review.CommitID,
		Body:     output.ReviewBody(bundle, true),
	}
	if err := p.provider.SubmitReview(ctx, ref, fallback); err != nil {
		return true, err
	}
	return true, nil
}
