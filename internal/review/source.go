package review

import (
	"context"

	"github.com/pantheonreview/pantheon/pkg/models"
)

// Source produces one freeform critique of a changeset. Every reviewer
// persona is a source; its text is mined by the feedback extractor.
type Source interface {
	ID() string
	Review(ctx context.Context, input models.ReviewInput) (string, error)
}

// TextSource is a source whose critique is already known, such as a saved
// reviewer response
type TextSource struct {
	SourceID string
	Text     string
}

// ID returns the source identifier
func (s TextSource) ID() string {
	return s.SourceID
}

// Review returns the stored text
func (s TextSource) Review(ctx context.Context, input models.ReviewInput) (string, error) {
	return s.Text, ctx.Err()
}
