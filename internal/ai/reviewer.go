package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/tmc/langchaingo/llms"

	"github.com/pantheonreview/pantheon/internal/retry"
	"github.com/pantheonreview/pantheon/pkg/models"
)

// Reviewer is a feedback source that asks a model to review the changeset
// in the voice of one persona
type Reviewer struct {
	model   llms.Model
	persona Persona
	config  ModelConfig
	retry   retry.Config
	logger  zerolog.Logger
}

// ReviewerOption configures a Reviewer
type ReviewerOption func(*Reviewer)

// WithModelConfig sets the generation settings
func WithModelConfig(cfg ModelConfig) ReviewerOption {
	return func(r *Reviewer) {
		r.config = cfg
	}
}

// WithRetry sets the retry policy for generation calls
func WithRetry(cfg retry.Config) ReviewerOption {
	return func(r *Reviewer) {
		r.retry = cfg
	}
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) ReviewerOption {
	return func(r *Reviewer) {
		r.logger = logger
	}
}

// NewReviewer creates a reviewer source for a persona
func NewReviewer(model llms.Model, persona Persona, opts ...ReviewerOption) *Reviewer {
	r := &Reviewer{
		model:   model,
		persona: persona,
		config:  ModelConfig{Temperature: 0.2},
		retry:   retry.SourceConfig(),
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ID returns the source identifier, the persona name
func (r *Reviewer) ID() string {
	return r.persona.Name
}

// Persona returns the reviewer persona
func (r *Reviewer) Persona() Persona {
	return r.persona
}

// Review generates the reviewer's freeform text for the changeset
func (r *Reviewer) Review(ctx context.Context, input models.ReviewInput) (string, error) {
	prompt := BuildPrompt(r.persona, input)
	logger := r.logger.With().Str("source", r.ID()).Logger()

	logger.Debug().Int("prompt_chars", len(prompt)).Msg("Requesting review")

	var response string
	result := retry.Do(ctx, r.retry, func(ctx context.Context) error {
		out, err := llms.GenerateFromSinglePrompt(ctx, r.model, prompt, r.config.CallOptions()...)
		if err != nil {
			if retry.IsRetryable(err) {
				return err
			}
			return retry.Permanent(err)
		}
		response = out
		return nil
	}, logger)
	if !result.Success {
		return "", fmt.Errorf("reviewer %s failed after %d attempts: %w", r.ID(), result.Attempts, result.LastError)
	}

	logger.Debug().
		Int("response_chars", len(response)).
		Int("attempts", result.Attempts).
		Msg("Received review")
	return strings.TrimSpace(response), nil
}
