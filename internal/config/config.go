package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/pantheonreview/pantheon/internal/ai"
	"github.com/pantheonreview/pantheon/internal/diff"
)

// EnvPrefix is the prefix of environment overrides, e.g. PANTHEON_AI_API_KEY
const EnvPrefix = "PANTHEON_"

var (
	// ErrMissingToken is returned when no GitHub token is configured
	ErrMissingToken = errors.New("github token is required")
	// ErrMissingAPIKey is returned when the AI provider needs a key and has none
	ErrMissingAPIKey = errors.New("ai api_key is required")
)

// Config represents the application configuration
type Config struct {
	General   GeneralConfig `koanf:"general"`
	GitHub    GitHubConfig  `koanf:"github"`
	AI        AIConfig      `koanf:"ai"`
	Extract   ExtractConfig `koanf:"extract"`
	Reviewers []ai.Persona  `koanf:"reviewers"`
}

// GeneralConfig holds pipeline-wide settings
type GeneralConfig struct {
	PositionMode  string        `koanf:"position_mode"`
	Concurrency   int           `koanf:"concurrency"`
	LogLevel      string        `koanf:"log_level"`
	LogPretty     bool          `koanf:"log_pretty"`
	Exclude       []string      `koanf:"exclude"`
	ReviewTimeout time.Duration `koanf:"review_timeout"`
	RedactSecrets bool          `koanf:"redact_secrets"`
	GuardPrompts  bool          `koanf:"guard_prompts"`
}

// GitHubConfig holds the hosting API settings
type GitHubConfig struct {
	Token             string  `koanf:"token"`
	APIURL            string  `koanf:"api_url"`
	RequestsPerSecond float64 `koanf:"requests_per_second"`
}

// AIConfig holds the model settings shared by every reviewer
type AIConfig struct {
	Provider    string  `koanf:"provider"`
	Model       string  `koanf:"model"`
	APIKey      string  `koanf:"api_key"`
	BaseURL     string  `koanf:"base_url"`
	Temperature float64 `koanf:"temperature"`
	MaxTokens   int     `koanf:"max_tokens"`
}

// ExtractConfig tunes the feedback extractor
type ExtractConfig struct {
	Window       int    `koanf:"window"`
	MinParagraph int    `koanf:"min_paragraph"`
	Placeholder  string `koanf:"placeholder"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"general.position_mode":      string(diff.PositionGitHub),
		"general.concurrency":        4,
		"general.log_level":          "info",
		"general.log_pretty":         true,
		"general.review_timeout":     "10m",
		"general.redact_secrets":     true,
		"general.guard_prompts":      true,
		"github.api_url":             "https://api.github.com",
		"github.requests_per_second": 1.0,
		"ai.provider":                string(ai.ProviderOpenAI),
		"ai.temperature":             0.2,
		"extract.window":             300,
		"extract.min_paragraph":      30,
	}
}

// LoadConfig loads the configuration from a file, the default locations
// and the environment
func LoadConfig(configPath string) (*Config, error) {
	var k = koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("error loading defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	} else {
		defaultPaths := []string{"./pantheon.toml", "./.github/pantheon.toml", "$HOME/.pantheon.toml"}
		for _, path := range defaultPaths {
			path = os.ExpandEnv(path)
			if _, err := os.Stat(path); err == nil {
				if err := k.Load(file.Provider(path), toml.Parser()); err == nil {
					break
				}
			}
		}
	}

	// PANTHEON_AI_API_KEY -> ai.api_key
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("error loading environment: %w", err)
	}

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	// The Actions token is the usual source when nothing else is set
	if config.GitHub.Token == "" {
		config.GitHub.Token = os.Getenv("GITHUB_TOKEN")
	}

	return &config, nil
}

func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.Replace(key, "_", ".", 1)
}

// Personas returns the configured reviewer panel, or the default one
func (c *Config) Personas() []ai.Persona {
	if len(c.Reviewers) == 0 {
		return ai.DefaultPersonas()
	}
	personas := make([]ai.Persona, len(c.Reviewers))
	for i, p := range c.Reviewers {
		if p.Format == "" {
			p.Format = ai.FormatSections
		}
		personas[i] = p
	}
	return personas
}

// ModelConfig returns the generation settings for reviewers
func (c *Config) ModelConfig() ai.ModelConfig {
	return ai.ModelConfig{
		Model:       c.AI.Model,
		Temperature: c.AI.Temperature,
		MaxTokens:   c.AI.MaxTokens,
	}
}

// InitConfig initializes a new configuration file
func InitConfig(configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists at %s", configPath)
	}

	sampleConfig := `# Pantheon Configuration

[general]
# "github" counts every diff line after the first hunk header,
# "skip-removed" does not advance the position on removed lines
position_mode = "github"
concurrency = 4
log_level = "info"
exclude = ["*.lock", "vendor/*"]
redact_secrets = true
# drop pull request text that looks like a prompt injection attempt
guard_prompts = true

[github]
# token = "" # defaults to $GITHUB_TOKEN
api_url = "https://api.github.com"
requests_per_second = 1.0

[ai]
provider = "openai"
model = "gpt-4o-2024-08-06"
api_key = "your-api-key"
temperature = 0.2

[extract]
window = 300
min_paragraph = 30

[[reviewers]]
name = "Hephaestus"
domain = "Code Accuracy"
system_prompt = "You verify that the code is correct."

[[reviewers]]
name = "Style"
domain = "Formatting"
format = "json"
system_prompt = "Focus only on style issues."
`

	return os.WriteFile(configPath, []byte(sampleConfig), 0644)
}

// Validate checks everything needed for a review run
func Validate(config *Config) error {
	if err := ValidateOffline(config); err != nil {
		return err
	}

	if config.GitHub.Token == "" {
		return ErrMissingToken
	}

	provider, err := ai.ParseProvider(config.AI.Provider)
	if err != nil {
		return err
	}
	if provider != ai.ProviderOllama && config.AI.APIKey == "" {
		return fmt.Errorf("%w for provider %s", ErrMissingAPIKey, provider)
	}
	return nil
}

// ValidateOffline checks the settings used without network access
func ValidateOffline(config *Config) error {
	if _, ok := diff.ParsePositionMode(config.General.PositionMode); !ok {
		return fmt.Errorf("invalid position_mode %q", config.General.PositionMode)
	}
	if config.General.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", config.General.Concurrency)
	}
	if config.Extract.Window <= 0 {
		return fmt.Errorf("extract window must be positive, got %d", config.Extract.Window)
	}
	if config.Extract.MinParagraph < 0 {
		return fmt.Errorf("extract min_paragraph must not be negative, got %d", config.Extract.MinParagraph)
	}

	seen := make(map[string]bool)
	for i, r := range config.Reviewers {
		if strings.TrimSpace(r.Name) == "" {
			return fmt.Errorf("reviewer %d has no name", i+1)
		}
		if seen[r.Name] {
			return fmt.Errorf("duplicate reviewer %s", r.Name)
		}
		seen[r.Name] = true
		switch r.Format {
		case "", ai.FormatSections, ai.FormatJSON:
		default:
			return fmt.Errorf("reviewer %s has unknown format %q", r.Name, r.Format)
		}
	}
	return nil
}
