package feedback

import (
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pantheonreview/pantheon/pkg/models"
)

// Extractor recovers feedback candidates from the freeform text of one
// reviewer source. It holds no mutable state and is safe for concurrent use.
type Extractor struct {
	rules        ruleSet
	window       int
	minParagraph int
	placeholder  string
	logger       zerolog.Logger
}

// Option configures an Extractor
type Option func(*Extractor)

// WithRules replaces the extraction cascade
func WithRules(rules []Rule) Option {
	return func(e *Extractor) {
		e.rules = newRuleSet(rules)
	}
}

// WithWindow overrides the forward scan distance of every rule
func WithWindow(window int) Option {
	return func(e *Extractor) {
		if window > 0 {
			e.window = window
		}
	}
}

// WithMinParagraph sets the minimum length of a fallback paragraph
func WithMinParagraph(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.minParagraph = n
		}
	}
}

// WithPlaceholder sets the comment used when nothing else can be recovered
func WithPlaceholder(text string) Option {
	return func(e *Extractor) {
		if strings.TrimSpace(text) != "" {
			e.placeholder = text
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Extractor) {
		e.logger = logger
	}
}

// NewExtractor creates an extractor using DefaultRules unless overridden
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		rules:        newRuleSet(DefaultRules()),
		minParagraph: DefaultMinParagraph,
		placeholder:  Placeholder,
		logger:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract scans one source's text. Passes run in priority order and each
// pass ignores text already claimed by an earlier one:
//
//  1. [SECTION: path:line] blocks
//  2. a {"reviews": [...]} JSON payload
//  3. file anchors followed by line references
//  4. line references with no file anchor
//
// The score marker is looked up once and copied to every candidate.
func (e *Extractor) Extract(sourceID, text string) models.SourceFeedback {
	out := models.SourceFeedback{SourceID: sourceID}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	if strings.TrimSpace(text) == "" {
		return out
	}

	out.Score = e.Score(text)

	var claimed spans
	var candidates []models.FeedbackCandidate
	candidates = append(candidates, e.sectionPass(text, &claimed)...)
	candidates = append(candidates, e.jsonPass(text, &claimed)...)

	labels := e.labelSpans(text)
	refs := e.lineRefs(text, claimed, labels)
	var covered spans
	fileCandidates, used := e.fileAnchorPass(text, refs, labels, &claimed, &covered)
	candidates = append(candidates, fileCandidates...)
	candidates = append(candidates, e.lineOnlyPass(text, refs, used, &covered)...)

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].SpanStart < candidates[j].SpanStart
	})
	for i := range candidates {
		candidates[i].SourceID = sourceID
		candidates[i].Score = out.Score
	}
	out.Candidates = candidates

	e.logger.Debug().
		Str("source", sourceID).
		Int("candidates", len(candidates)).
		Str("score", out.Score).
		Msg("Extracted feedback candidates")

	return out
}

// Score returns the first score marker value in text: a number, "N/A",
// or "" when the text has no marker
func (e *Extractor) Score(text string) string {
	m, ok := e.rules.first(RoleScore, text, 0, len(text))
	if !ok {
		return ""
	}
	value := strings.ToUpper(strings.TrimSpace(m.value))
	if value == "NA" {
		value = "N/A"
	}
	return value
}

// ParseScore extracts the score marker with the default rules
func ParseScore(text string) string {
	return defaultExtractor.Score(text)
}

var defaultExtractor = NewExtractor()

func (e *Extractor) windowFor(r Rule) int {
	if e.window > 0 {
		return e.window
	}
	if r.Window > 0 {
		return r.Window
	}
	return DefaultWindow
}

// labelSpans returns the ranges of every labeled issue and suggestion.
// References inside a label's value are part of the comment, not anchors.
func (e *Extractor) labelSpans(text string) spans {
	var out spans
	for _, role := range []Role{RoleIssue, RoleSuggestion} {
		for _, m := range e.rules.all(role, text, 0, len(text)) {
			out.add(m.start, m.end)
		}
	}
	return out
}

// lineRef is a line reference. Strong references start a line or carry a
// label ("Line 4:"); weak ones are mentions inside prose, which neither
// bound another reference's comment nor start a comment inside one.
type lineRef struct {
	match
	strong bool
}

func (e *Extractor) lineRefs(text string, claimed, labels spans) []lineRef {
	var refs []lineRef
	for _, m := range e.rules.all(RoleLine, text, 0, len(text)) {
		if claimed.contains(m.start) {
			continue
		}
		if n, err := strconv.Atoi(m.value); err != nil || n <= 0 {
			continue
		}
		lineStart := atLineStart(text, m.start)
		if labels.contains(m.start) && !lineStart {
			continue
		}
		refs = append(refs, lineRef{match: m, strong: lineStart || labeledAfter(text, m.end)})
	}
	return refs
}

// fileAnchor is a file reference. Only boundary anchors end the window of
// the anchor before them: a labeled or heading-like reference at the start
// of a line, or one with its own line suffix (path:42).
type fileAnchor struct {
	match
	suffix   *match
	boundary bool
}

func (e *Extractor) fileAnchors(text string, labels, claimed spans) []fileAnchor {
	var anchors []fileAnchor
	for _, m := range e.rules.all(RoleFile, text, 0, len(text)) {
		if claimed.contains(m.start) || cleanPath(m.value) == "" {
			continue
		}
		lineStart := atLineStart(text, m.start)
		if labels.contains(m.start) && !lineStart {
			continue
		}
		a := fileAnchor{match: m}
		if s, ok := e.rules.first(RoleLineSuffix, text, m.end, m.end+e.windowFor(m.rule)); ok && s.start == m.end {
			a.suffix = &s
		}
		a.boundary = a.suffix != nil || (lineStart && (m.rule.Tier <= 1 || restOfLineEmpty(text, m.end)))
		anchors = append(anchors, a)
	}
	return anchors
}

// owner returns the anchor a line reference belongs to, or -1. The last
// boundary anchor wins when the reference is inside its window; otherwise
// the last weak anchor after it that still reaches the reference.
func (e *Extractor) owner(anchors []fileAnchor, ref lineRef) int {
	best := -1
	for i, a := range anchors {
		if a.end > ref.start {
			break
		}
		inWindow := ref.start < a.end+e.windowFor(a.rule)
		switch {
		case a.boundary:
			best = -1
			if inWindow {
				best = i
			}
		case inWindow && (best < 0 || !anchors[best].boundary):
			best = i
		}
	}
	return best
}

// fileAnchorPass pairs file anchors with the line references that follow
// them within the rule window. It returns the start offsets of the line
// references it used.
func (e *Extractor) fileAnchorPass(text string, refs []lineRef, labels spans, claimed, covered *spans) ([]models.FeedbackCandidate, map[int]bool) {
	used := make(map[int]bool)
	anchors := e.fileAnchors(text, labels, *claimed)

	owned := make([][]lineRef, len(anchors))
	for _, ref := range refs {
		if i := e.owner(anchors, ref); i >= 0 {
			owned[i] = append(owned[i], ref)
		}
	}

	var out []models.FeedbackCandidate
	for i, anchor := range anchors {
		path := cleanPath(anchor.value)
		nextAnchor := len(text)
		for _, a := range anchors[i+1:] {
			if a.boundary {
				nextAnchor = a.start
				break
			}
		}

		var anchorRefs []lineRef
		if anchor.suffix != nil {
			anchorRefs = append(anchorRefs, lineRef{match: *anchor.suffix, strong: true})
		}
		anchorRefs = append(anchorRefs, owned[i]...)

		for _, ref := range anchorRefs {
			if !ref.strong && covered.contains(ref.start) {
				used[ref.start] = true
				continue
			}
			line, err := strconv.Atoi(ref.value)
			if err != nil || line <= 0 {
				continue
			}
			issueEnd := min(ref.end+e.windowFor(ref.rule), nextAnchor, nextStrong(refs, ref.end))

			c := models.FeedbackCandidate{
				FilePath:  path,
				Line:      line,
				Rule:      anchor.rule.Name + "+" + ref.rule.Name,
				SpanStart: anchor.start,
			}
			c.SpanEnd = e.fillComment(&c, text, ref.end, issueEnd)
			covered.add(ref.start, c.SpanEnd)
			out = append(out, c)
			used[ref.start] = true
		}
		claimed.add(anchor.start, anchor.end)
	}

	return out, used
}

// lineOnlyPass handles line references that no file anchor claimed. The
// quoted snippet near the reference locates the comment text.
func (e *Extractor) lineOnlyPass(text string, refs []lineRef, used map[int]bool, covered *spans) []models.FeedbackCandidate {
	var out []models.FeedbackCandidate
	for _, ref := range refs {
		if used[ref.start] || (!ref.strong && covered.contains(ref.start)) {
			continue
		}
		line, err := strconv.Atoi(ref.value)
		if err != nil || line <= 0 {
			continue
		}
		bound := nextStrong(refs, ref.end)

		c := models.FeedbackCandidate{
			Line:      line,
			Rule:      ref.rule.Name,
			SpanStart: ref.start,
		}

		anchor := ref.end
		window := e.windowFor(ref.rule)
		if q, ok := e.rules.first(RoleQuote, text, ref.end, min(ref.end+window, bound)); ok {
			c.Quote = cleanValue(trimQuotes(q.value))
			c.Rule += "+" + q.rule.Name
			anchor = q.start
			window = e.windowFor(q.rule)
		}

		c.SpanEnd = e.fillComment(&c, text, anchor, min(anchor+window, bound))
		covered.add(ref.start, c.SpanEnd)
		out = append(out, c)
	}
	return out
}

// fillComment runs the issue/recommendation cascade over text[from:to]
// and always leaves non-empty comment text on c. It returns the end of
// the text it used.
func (e *Extractor) fillComment(c *models.FeedbackCandidate, text string, from, to int) int {
	from, to = clampRange(text, from, to)
	end := from

	if m, ok := e.rules.first(RoleIssue, text, from, to); ok {
		c.Issue = cleanValue(m.value)
		end = max(end, m.end)
	}
	if m, ok := e.rules.first(RoleSuggestion, text, from, to); ok {
		c.Suggestion = cleanValue(m.value)
		end = max(end, m.end)
	}
	if c.Issue != "" || c.Suggestion != "" {
		return end
	}

	if m, ok := e.rules.first(RoleKeyword, text, from, to); ok {
		if p, pEnd := paragraphAt(text, from, m.start, to); p != "" {
			c.Text = p
			return pEnd
		}
	}

	if p, pEnd := e.firstParagraph(text, from, to); p != "" {
		c.Text = p
		return pEnd
	}

	c.Text = e.placeholder
	return to
}

// firstParagraph returns the first paragraph in text[from:to] longer than
// the minimum length that is neither a heading nor a list bullet
func (e *Extractor) firstParagraph(text string, from, to int) (string, int) {
	offset := from
	for _, para := range strings.Split(text[from:to], "\n\n") {
		paraEnd := offset + len(para)
		offset = paraEnd + 2

		trimmed := strings.TrimLeft(strings.TrimSpace(para), ":-–—).,; \t")
		if trimmed == "" || isHeading(trimmed) || isBullet(trimmed) {
			continue
		}
		cleaned := cleanValue(trimmed)
		if len(cleaned) > e.minParagraph {
			return cleaned, paraEnd
		}
	}
	return "", from
}
