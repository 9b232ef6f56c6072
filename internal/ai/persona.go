package ai

// OutputFormat is the response layout a persona is asked for
type OutputFormat string

const (
	// FormatSections asks for /* [SECTION: path:line] [DEITY: ...] */ blocks
	FormatSections OutputFormat = "sections"
	// FormatJSON asks for {"reviews": [{"lineNumber", "reviewComment"}]}
	FormatJSON OutputFormat = "json"
)

// Persona is one reviewer voice. Each persona becomes an independent
// feedback source.
type Persona struct {
	Name         string       `koanf:"name"`
	Domain       string       `koanf:"domain"`
	SystemPrompt string       `koanf:"system_prompt"`
	Format       OutputFormat `koanf:"format"`
}

// Attribution returns "Name (Domain)"
func (p Persona) Attribution() string {
	if p.Domain == "" {
		return p.Name
	}
	return p.Name + " (" + p.Domain + ")"
}

// DefaultPersonas is the reviewer panel used when none is configured
func DefaultPersonas() []Persona {
	return []Persona{
		{
			Name:   "Apollo",
			Domain: "Style Guide Adherence",
			SystemPrompt: "You review changes for consistency in tone, naming conventions, punctuation, " +
				"formatting and indentation. Quote the problematic content and offer a corrected alternative.",
		},
		{
			Name:   "Hermes",
			Domain: "Readability",
			SystemPrompt: "You review changes for readability: unclear names, long sentences or functions, " +
				"missing transitions and jargon that a newcomer would stumble over.",
		},
		{
			Name:   "Athena",
			Domain: "Cognitive Load",
			SystemPrompt: "You look for code and prose that asks the reader to hold too much in their head: " +
				"deep nesting, hidden state, surprising control flow and overloaded abstractions.",
		},
		{
			Name:   "Hephaestus",
			Domain: "Code Accuracy",
			SystemPrompt: "You verify that the code is correct: logic errors, unhandled errors, resource leaks, " +
				"race conditions and examples that would not compile or run.",
		},
		{
			Name:   "Demeter",
			Domain: "Terminology Consistency",
			SystemPrompt: "You check that the same concept is always named the same way across the change " +
				"and that new terms are introduced before they are used.",
		},
		{
			Name:   "Chronos",
			Domain: "Knowledge Decay",
			SystemPrompt: "You flag content that will age badly: hard-coded versions, dates, deprecated APIs " +
				"and references to behavior that is likely to change.",
		},
		{
			Name:   "Style",
			Domain: "Formatting",
			SystemPrompt: "Focus only on style issues such as naming conventions, formatting and indentation. " +
				"Do not give positive comments or compliments and never suggest adding comments to the code.",
			Format: FormatJSON,
		},
	}
}
