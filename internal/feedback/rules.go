package feedback

import (
	"regexp"
	"sort"
	"unicode/utf8"
)

// Role is what a rule's match means to the extractor
type Role string

const (
	// RoleSection marks a "[SECTION: path:line]" block header
	RoleSection Role = "section"
	// RoleFile anchors a file reference
	RoleFile Role = "file"
	// RoleLineSuffix is matched directly after a file reference (path:42)
	RoleLineSuffix Role = "line_suffix"
	// RoleLine is a "Line <N>" reference
	RoleLine Role = "line"
	// RoleIssue is a labeled issue ("Issue:", "Concern:")
	RoleIssue Role = "issue"
	// RoleSuggestion is a labeled recommendation ("Suggestion:", "Fix:")
	RoleSuggestion Role = "suggestion"
	// RoleKeyword is a bare issue keyword used as the first fallback
	RoleKeyword Role = "keyword"
	// RoleQuote identifies the snippet under discussion
	RoleQuote Role = "quote"
	// RoleAttribution names the persona inside a section block
	RoleAttribution Role = "attribution"
	// RoleScore is the per-source score marker
	RoleScore Role = "score"
)

// Rule is one entry of the extraction cascade. Rules of a role are tried
// tier by tier; inside a tier the first positional match wins. Window is
// how many characters after the match are scanned for the next stage.
// Pattern must capture the extracted text in a group named "value".
type Rule struct {
	Name    string
	Role    Role
	Tier    int
	Window  int
	Pattern *regexp.Regexp
}

// DefaultWindow is the forward scan distance between cascade stages
const DefaultWindow = 300

// DefaultMinParagraph is the minimum length of a fallback paragraph
const DefaultMinParagraph = 30

// Placeholder is used when no comment text can be recovered for a location
const Placeholder = "Reviewer flagged this line, but the feedback text could not be extracted."

const pathValue = `(?P<value>[\w.][\w./-]*\.[A-Za-z0-9]+)`

const knownExtensions = `go|py|pyi|js|jsx|mjs|ts|tsx|java|kt|kts|scala|rb|rs|c|h|cc|cpp|hpp|cs|php|swift|sh|bash|ps1|sql|proto|tf|hcl|yaml|yml|json|toml|ini|xml|html|htm|css|scss|vue|svelte|md|mdx|rst|adoc|txt|dockerfile|gradle|lua|dart|ex|exs|erl|hs|clj|pl`

// DefaultRules returns the extraction cascade in priority order
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:    "section-marker",
			Role:    RoleSection,
			Pattern: regexp.MustCompile(`(?i)\[SECTION:\s*(?P<value>[^\]\n]+?):(?P<line>\d+)\s*\]`),
		},
		{
			Name:    "deity-marker",
			Role:    RoleAttribution,
			Pattern: regexp.MustCompile(`(?i)\[(?:DEITY|REVIEWER|PERSONA):\s*(?P<value>[^\]\n]+?)\s*\]`),
		},

		{
			Name:    "file-label",
			Role:    RoleFile,
			Tier:    0,
			Window:  DefaultWindow,
			Pattern: regexp.MustCompile(`(?i)\bfile\s*:[\s*_` + "`" + `"']*(?P<value>[\w.][\w./-]*)`),
		},
		{
			Name:    "file-word",
			Role:    RoleFile,
			Tier:    1,
			Window:  DefaultWindow,
			Pattern: regexp.MustCompile(`(?i)\bfile\s+[*_` + "`" + `"']*` + pathValue),
		},
		{
			Name:    "file-path",
			Role:    RoleFile,
			Tier:    2,
			Window:  DefaultWindow,
			Pattern: regexp.MustCompile(`(?i)(?P<value>(?:[\w.-]+/)*[\w-][\w.-]*\.(?:` + knownExtensions + `))\b`),
		},
		{
			Name:    "path-line",
			Role:    RoleLineSuffix,
			Window:  DefaultWindow,
			Pattern: regexp.MustCompile(`^[` + "`" + `*_"']*(?:#L|:)(?P<value>\d+)[` + "`" + `*_"']*`),
		},

		{
			Name:    "line-ref",
			Role:    RoleLine,
			Tier:    0,
			Window:  DefaultWindow,
			Pattern: regexp.MustCompile(`(?i)\blines?\s*[:#]?\s*(?P<value>\d+)(?:\s*[-–]\s*\d+)?`),
		},

		{
			Name:    "issue-label",
			Role:    RoleIssue,
			Tier:    0,
			Pattern: regexp.MustCompile(`(?i)\b(?:issue|concern|problem|observation|finding)s?[ \t*_]*:[ \t*_]*\n?[ \t]*(?P<value>[^\n]+)`),
		},
		{
			Name:    "suggestion-label",
			Role:    RoleSuggestion,
			Tier:    0,
			Pattern: regexp.MustCompile(`(?i)\b(?:recommendation|suggestion|suggested fix|recommended change|proposed change|fix)s?[ \t*_]*:[ \t*_]*\n?[ \t]*(?P<value>[^\n]+)`),
		},
		{
			Name:    "issue-keyword",
			Role:    RoleKeyword,
			Tier:    0,
			Pattern: regexp.MustCompile(`(?i)\b(?P<value>(?:issue|problem|error|concern|challenge)s?)\b`),
		},

		{
			Name:    "quote-double",
			Role:    RoleQuote,
			Tier:    0,
			Window:  DefaultWindow,
			Pattern: regexp.MustCompile(`"(?P<value>[^"\n]{1,200})"`),
		},
		{
			Name:    "quote-single",
			Role:    RoleQuote,
			Tier:    0,
			Window:  DefaultWindow,
			Pattern: regexp.MustCompile(`(?:^|[^\w])'(?P<value>[^'\n]{1,200})'`),
		},
		{
			Name:    "quote-backtick",
			Role:    RoleQuote,
			Tier:    0,
			Window:  DefaultWindow,
			Pattern: regexp.MustCompile("`+(?P<value>[^`\n]{1,200})`+"),
		},
		{
			Name:    "quote-label",
			Role:    RoleQuote,
			Tier:    0,
			Window:  DefaultWindow,
			Pattern: regexp.MustCompile(`(?i)\b(?:content|text|current)\s*:\s*(?P<value>[^\n]+)`),
		},

		{
			Name:    "score-marker",
			Role:    RoleScore,
			Pattern: regexp.MustCompile(`(?i)\bSCORE\s*:\s*\[?\s*(?P<value>\d{1,3}|N/?A)(?:\s*/\s*100)?(?:\s*\]|[^\w\-/]|$)`),
		},
	}
}

// ruleSet indexes rules by role while keeping their declared order
type ruleSet struct {
	byRole map[Role][]Rule
}

func newRuleSet(rules []Rule) ruleSet {
	rs := ruleSet{byRole: make(map[Role][]Rule)}
	for _, r := range rules {
		if r.Pattern == nil {
			continue
		}
		rs.byRole[r.Role] = append(rs.byRole[r.Role], r)
	}
	for role := range rs.byRole {
		sort.SliceStable(rs.byRole[role], func(i, j int) bool {
			return rs.byRole[role][i].Tier < rs.byRole[role][j].Tier
		})
	}
	return rs
}

func (rs ruleSet) get(role Role) []Rule {
	return rs.byRole[role]
}

// match is one rule hit. Offsets are absolute within the source text.
type match struct {
	rule   Rule
	start  int
	end    int
	value  string
	groups map[string]string
}

func newMatch(r Rule, text string, loc []int, base int) match {
	m := match{
		rule:   r,
		start:  base + loc[0],
		end:    base + loc[1],
		groups: make(map[string]string),
	}
	for i, name := range r.Pattern.SubexpNames() {
		if name == "" || loc[2*i] < 0 {
			continue
		}
		m.groups[name] = text[loc[2*i]:loc[2*i+1]]
	}
	m.value = m.groups["value"]
	return m
}

// first returns the winning match of a role inside text[from:to]: the
// lowest tier that matches, and within it the earliest match.
func (rs ruleSet) first(role Role, text string, from, to int) (match, bool) {
	from, to = clampRange(text, from, to)
	window := text[from:to]

	var best match
	found := false
	tier := 0
	for _, r := range rs.get(role) {
		if found && r.Tier != tier {
			break
		}
		loc := r.Pattern.FindStringSubmatchIndex(window)
		if loc == nil {
			continue
		}
		m := newMatch(r, window, loc, from)
		if !found || m.start < best.start {
			best = m
			found = true
			tier = r.Tier
		}
	}
	return best, found
}

// all returns every match of a role in text[from:to], ordered by position.
// Overlapping matches are resolved in favor of the lower tier, then the
// earlier start, then the earlier rule.
func (rs ruleSet) all(role Role, text string, from, to int) []match {
	from, to = clampRange(text, from, to)
	window := text[from:to]

	var candidates []match
	for _, r := range rs.get(role) {
		for _, loc := range r.Pattern.FindAllStringSubmatchIndex(window, -1) {
			candidates = append(candidates, newMatch(r, window, loc, from))
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].rule.Tier != candidates[j].rule.Tier {
			return candidates[i].rule.Tier < candidates[j].rule.Tier
		}
		return candidates[i].start < candidates[j].start
	})

	var kept []match
	for _, c := range candidates {
		overlaps := false
		for _, k := range kept {
			if c.start < k.end && k.start < c.end {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, c)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].start < kept[j].start
	})
	return kept
}

func clampRange(text string, from, to int) (int, int) {
	if from < 0 {
		from = 0
	}
	if to > len(text) || to < 0 {
		to = len(text)
	}
	if from > to {
		from = to
	}
	for to < len(text) && to > from && !utf8.RuneStart(text[to]) {
		to--
	}
	for from < to && !utf8.RuneStart(text[from]) {
		from++
	}
	return from, to
}
