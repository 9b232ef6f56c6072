// Package redact cleans review input before it is sent to reviewer models:
// secrets are masked and prompt injection attempts are removed.
package redact

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/zricethezav/gitleaks/v8/detect"

	"github.com/pantheonreview/pantheon/pkg/models"
)

// Mask replaces every detected secret
const Mask = "[REDACTED]"

// minSegment is the shortest secret fragment that is masked on its own.
// Multi-line secrets are masked line by line.
const minSegment = 4

// Finding describes one masked secret
type Finding struct {
	FilePath string
	RuleID   string
	Line     int
}

// Redactor detects secrets with the gitleaks default rule set and, when
// enabled, prompt injection attempts
type Redactor struct {
	detector    *detect.Detector
	skipSecrets bool
	injection   InjectionCheck
	logger      zerolog.Logger
}

// Option configures a Redactor
type Option func(*Redactor)

// WithInjectionCheck enables prompt injection screening with check
func WithInjectionCheck(check InjectionCheck) Option {
	return func(r *Redactor) {
		r.injection = check
	}
}

// WithoutSecretScan turns off secret masking, leaving only the injection
// check
func WithoutSecretScan() Option {
	return func(r *Redactor) {
		r.skipSecrets = true
	}
}

// New creates a redactor using gitleaks' built-in rules
func New(logger zerolog.Logger, opts ...Option) (*Redactor, error) {
	r := &Redactor{logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	if r.skipSecrets {
		return r, nil
	}

	detector, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load secret detection rules: %w", err)
	}
	r.detector = detector
	return r, nil
}

// Text masks the secrets in text and returns the rule IDs that fired
func (r *Redactor) Text(text string) (string, []string) {
	if r == nil || r.detector == nil || text == "" {
		return text, nil
	}
	findings := r.detector.DetectString(text)
	if len(findings) == 0 {
		return text, nil
	}

	var secrets, rules []string
	for _, f := range findings {
		secrets = append(secrets, f.Secret)
		rules = append(rules, f.RuleID)
	}
	return maskAll(text, secrets, Mask), rules
}

// Input returns a copy of input with secrets masked in every file's patch
// and hunk lines. Line counts are never changed, so positions stay valid.
func (r *Redactor) Input(input models.ReviewInput) (models.ReviewInput, []Finding) {
	if r == nil || r.detector == nil {
		return input, nil
	}

	out := input
	out.Description, _ = r.Text(input.Description)
	out.Files = make([]*models.CodeDiff, len(input.Files))

	var all []Finding
	for i, f := range input.Files {
		if f == nil || f.Patch == "" {
			out.Files[i] = f
			continue
		}
		findings := r.detector.DetectString(f.Patch)
		if len(findings) == 0 {
			out.Files[i] = f
			continue
		}

		secrets := make([]string, 0, len(findings))
		for _, finding := range findings {
			secrets = append(secrets, finding.Secret)
			all = append(all, Finding{FilePath: f.FilePath, RuleID: finding.RuleID, Line: finding.StartLine})
		}
		out.Files[i] = maskFile(f, secrets, Mask)

		r.logger.Warn().
			Str("file", f.FilePath).
			Int("secrets", len(findings)).
			Msg("Masked secrets in diff before review")
	}
	return out, all
}

func maskFile(f *models.CodeDiff, secrets []string, mask string) *models.CodeDiff {
	masked := *f
	masked.Patch = maskAll(f.Patch, secrets, mask)
	masked.Hunks = make([]models.DiffHunk, len(f.Hunks))
	for i, h := range f.Hunks {
		h.Lines = append([]models.DiffLine(nil), h.Lines...)
		for j := range h.Lines {
			h.Lines[j].Content = maskAll(h.Lines[j].Content, secrets, mask)
		}
		masked.Hunks[i] = h
	}
	return &masked
}

// maskAll replaces each secret, longest first, one line segment at a time
func maskAll(text string, secrets []string, mask string) string {
	var segments []string
	for _, s := range secrets {
		for _, seg := range strings.Split(s, "\n") {
			seg = strings.TrimSpace(seg)
			if len(seg) >= minSegment {
				segments = append(segments, seg)
			}
		}
	}
	sort.SliceStable(segments, func(i, j int) bool {
		return len(segments[i]) > len(segments[j])
	})
	for _, seg := range segments {
		text = strings.ReplaceAll(text, seg, mask)
	}
	return text
}
