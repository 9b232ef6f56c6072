package redact

import (
	"context"

	"github.com/mdombrov-33/go-promptguard/detector"

	"github.com/pantheonreview/pantheon/pkg/models"
)

// InjectionMask replaces text flagged as a prompt injection attempt
const InjectionMask = "[REMOVED: possible prompt injection]"

// InjectionRule is the rule ID reported for prompt injection findings
const InjectionRule = "prompt-injection"

// InjectionCheck reports whether text looks like a prompt injection
// attempt, with its risk score
type InjectionCheck func(ctx context.Context, text string) (bool, float64)

// PromptGuard returns an InjectionCheck backed by go-promptguard's
// default detectors
func PromptGuard() InjectionCheck {
	guard := detector.New()
	return func(ctx context.Context, text string) (bool, float64) {
		result := guard.Detect(ctx, text)
		return !result.Safe, result.RiskScore
	}
}

// Injections returns a copy of input with every flagged title, description
// or added line replaced. Pull request text is untrusted and ends up in
// reviewer prompts. Removed and context lines are left alone since they
// are already part of the target branch.
func (r *Redactor) Injections(ctx context.Context, input models.ReviewInput) (models.ReviewInput, []Finding) {
	if r == nil || r.injection == nil {
		return input, nil
	}

	out := input
	var all []Finding
	if r.flagged(ctx, "title", input.Title) {
		out.Title = InjectionMask
		all = append(all, Finding{FilePath: "(title)", RuleID: InjectionRule})
	}
	if r.flagged(ctx, "description", input.Description) {
		out.Description = InjectionMask
		all = append(all, Finding{FilePath: "(description)", RuleID: InjectionRule})
	}

	out.Files = make([]*models.CodeDiff, len(input.Files))
	for i, f := range input.Files {
		out.Files[i] = f
		if f == nil {
			continue
		}

		var contents []string
		for _, h := range f.Hunks {
			for _, l := range h.Lines {
				if l.Kind != models.LineAdded || !r.flagged(ctx, f.FilePath, l.Content) {
					continue
				}
				contents = append(contents, l.Content)
				all = append(all, Finding{FilePath: f.FilePath, RuleID: InjectionRule, Line: l.TargetLine})
			}
		}
		if len(contents) > 0 {
			out.Files[i] = maskFile(f, contents, InjectionMask)
		}
	}
	return out, all
}

func (r *Redactor) flagged(ctx context.Context, where, text string) bool {
	if len(text) < minSegment {
		return false
	}
	unsafe, risk := r.injection(ctx, text)
	if unsafe {
		r.logger.Warn().
			Str("where", where).
			Float64("risk", risk).
			Msg("Possible prompt injection removed before review")
	}
	return unsafe
}
