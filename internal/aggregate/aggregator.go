package aggregate

import (
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pantheonreview/pantheon/internal/diff"
	"github.com/pantheonreview/pantheon/pkg/models"
)

// ContributionSeparator joins the per-source parts of a combined comment
const ContributionSeparator = "\n\n---\n\n"

// Aggregator combines candidates from every source into positioned and
// unresolved comments. It owns no state between calls.
type Aggregator struct {
	logger zerolog.Logger
}

// Option configures an Aggregator
type Option func(*Aggregator)

// WithLogger sets the logger used for resolution details
func WithLogger(logger zerolog.Logger) Option {
	return func(a *Aggregator) {
		a.logger = logger
	}
}

// New creates an aggregator
func New(opts ...Option) *Aggregator {
	a := &Aggregator{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type groupKey struct {
	file string
	line int
}

type contribution struct {
	sourceIdx int
	models.Contribution
}

type group struct {
	key           groupKey
	contributions []contribution
	seen          map[[2]string]bool
}

func (g *group) add(sourceIdx int, c models.FeedbackCandidate) bool {
	body := c.Body()
	k := [2]string{c.SourceID, body}
	if g.seen[k] {
		return false
	}
	g.seen[k] = true
	g.contributions = append(g.contributions, contribution{
		sourceIdx: sourceIdx,
		Contribution: models.Contribution{
			SourceID:    c.SourceID,
			Attribution: c.Attribution,
			Text:        body,
		},
	})
	return true
}

// groups keeps key groups in order of first appearance
type groups struct {
	order []*group
	byKey map[groupKey]*group
}

func (gs *groups) get(key groupKey) *group {
	if g, ok := gs.byKey[key]; ok {
		return g
	}
	g := &group{key: key, seen: make(map[[2]string]bool)}
	gs.byKey[key] = g
	gs.order = append(gs.order, g)
	return g
}

// Aggregate resolves every candidate against the model. Candidates that
// name a file are grouped first, then file-less candidates probe the
// changed files in lexicographic order and join the group of the first
// file whose map holds their line. The output order depends only on the
// input order, so repeated calls produce identical bundles.
func (a *Aggregator) Aggregate(model *diff.Model, sources []models.SourceFeedback) *models.ReviewBundle {
	gs := &groups{byKey: make(map[groupKey]*group)}
	duplicates := 0

	for idx, src := range sources {
		for _, c := range src.Candidates {
			if !c.HasFile() {
				continue
			}
			c.SourceID = src.SourceID
			file := c.FilePath
			if resolved, ok := model.ResolvePath(file); ok {
				file = resolved
			}
			if !gs.get(groupKey{file: file, line: c.Line}).add(idx, c) {
				duplicates++
			}
		}
	}

	for idx, src := range sources {
		for _, c := range src.Candidates {
			if c.HasFile() {
				continue
			}
			c.SourceID = src.SourceID
			key := groupKey{line: c.Line}
			if file, _, ok := model.ProbeLine(c.Line); ok {
				key.file = file
				a.logger.Debug().
					Str("source", src.SourceID).
					Int("line", c.Line).
					Str("file", file).
					Msg("Probed file-less feedback onto changed file")
			}
			if !gs.get(key).add(idx, c) {
				duplicates++
			}
		}
	}

	bySource := make(map[string]models.SourceFeedback, len(sources))
	for _, src := range sources {
		if _, ok := bySource[src.SourceID]; !ok {
			bySource[src.SourceID] = src
		}
	}

	bundle := &models.ReviewBundle{
		Resolved:   []models.ResolvedComment{},
		Unresolved: []models.UnresolvedComment{},
		Scores:     RollupScores(sources),
	}

	for _, g := range gs.order {
		sort.SliceStable(g.contributions, func(i, j int) bool {
			return g.contributions[i].sourceIdx < g.contributions[j].sourceIdx
		})

		contributions := make([]models.Contribution, len(g.contributions))
		var sourceIDs []string
		seenSource := make(map[string]bool)
		var contributing []models.SourceFeedback
		for i, c := range g.contributions {
			contributions[i] = c.Contribution
			if !seenSource[c.SourceID] {
				seenSource[c.SourceID] = true
				sourceIDs = append(sourceIDs, c.SourceID)
				contributing = append(contributing, bySource[c.SourceID])
			}
		}
		body := ComposeBody(contributions)
		scores := RollupScores(contributing)

		if g.key.file != "" {
			if pos, ok := model.Position(g.key.file, g.key.line); ok {
				bundle.Resolved = append(bundle.Resolved, models.ResolvedComment{
					FilePath:      g.key.file,
					Line:          g.key.line,
					Position:      pos,
					Body:          body,
					Sources:       sourceIDs,
					Contributions: contributions,
					Scores:        scores,
				})
				continue
			}
		}

		a.logger.Debug().
			Str("file", g.key.file).
			Int("line", g.key.line).
			Strs("sources", sourceIDs).
			Msg("Feedback has no diff position")
		bundle.Unresolved = append(bundle.Unresolved, models.UnresolvedComment{
			FilePath:      g.key.file,
			Line:          g.key.line,
			Body:          body,
			Sources:       sourceIDs,
			Contributions: contributions,
			Scores:        scores,
		})
	}

	a.logger.Debug().
		Int("resolved", len(bundle.Resolved)).
		Int("unresolved", len(bundle.Unresolved)).
		Int("duplicates", duplicates).
		Msg("Aggregated feedback")

	return bundle
}

// ComposeBody renders contributions as one comment, each part headed by
// its source
func ComposeBody(contributions []models.Contribution) string {
	parts := make([]string, 0, len(contributions))
	for _, c := range contributions {
		header := "**" + c.SourceID + "**"
		if c.Attribution != "" {
			header += " - " + c.Attribution
		}
		parts = append(parts, header+"\n\n"+c.Text)
	}
	return strings.Join(parts, ContributionSeparator)
}
