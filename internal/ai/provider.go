package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/cohere"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// ErrProviderNotFound is returned for an unknown provider name
var ErrProviderNotFound = errors.New("unsupported AI provider")

// Provider represents an AI provider type
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderGoogleAI  Provider = "googleai"
	ProviderAnthropic Provider = "anthropic"
	ProviderCohere    Provider = "cohere"
	ProviderOllama    Provider = "ollama"
)

// ParseProvider accepts the configured provider name and its common aliases
func ParseProvider(name string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "openai", "":
		return ProviderOpenAI, nil
	case "googleai", "gemini", "google":
		return ProviderGoogleAI, nil
	case "anthropic", "claude":
		return ProviderAnthropic, nil
	case "cohere":
		return ProviderCohere, nil
	case "ollama", "local":
		return ProviderOllama, nil
	}
	return "", fmt.Errorf("%w: %s", ErrProviderNotFound, name)
}

// defaultModels is used when no model is configured
var defaultModels = map[Provider]string{
	ProviderOpenAI:    "gpt-4o-2024-08-06",
	ProviderGoogleAI:  "gemini-2.5-flash",
	ProviderAnthropic: "claude-3-5-sonnet-latest",
	ProviderCohere:    "command-r",
	ProviderOllama:    "llama3",
}

// ModelConfig contains the generation settings for a model
type ModelConfig struct {
	Model       string  `koanf:"model"`
	Temperature float64 `koanf:"temperature"`
	MaxTokens   int     `koanf:"max_tokens"`
	TopP        float64 `koanf:"top_p"`
}

// CallOptions converts the generation settings to langchaingo call options
func (c ModelConfig) CallOptions() []llms.CallOption {
	opts := []llms.CallOption{llms.WithTemperature(c.Temperature)}
	if c.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(c.MaxTokens))
	}
	if c.TopP > 0 {
		opts = append(opts, llms.WithTopP(c.TopP))
	}
	return opts
}

// ConnectorOptions contains options for creating a model
type ConnectorOptions struct {
	Provider    Provider
	APIKey      string
	BaseURL     string
	ModelConfig ModelConfig
}

// NewModel creates the langchaingo model for the configured provider
func NewModel(ctx context.Context, options ConnectorOptions) (llms.Model, error) {
	if options.ModelConfig.Model == "" {
		options.ModelConfig.Model = defaultModels[options.Provider]
	}

	log.Debug().
		Str("provider", string(options.Provider)).
		Str("model", options.ModelConfig.Model).
		Float64("temperature", options.ModelConfig.Temperature).
		Msg("Creating model")

	var model llms.Model
	var err error
	switch options.Provider {
	case ProviderOpenAI:
		model, err = createOpenAIModel(options)
	case ProviderGoogleAI:
		model, err = createGoogleAIModel(ctx, options)
	case ProviderAnthropic:
		model, err = createAnthropicModel(options)
	case ProviderCohere:
		model, err = createCohereModel(options)
	case ProviderOllama:
		model, err = createOllamaModel(options)
	default:
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, options.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create model for provider %s: %w", options.Provider, err)
	}
	return model, nil
}

func createOpenAIModel(options ConnectorOptions) (llms.Model, error) {
	opts := []openai.Option{
		openai.WithModel(options.ModelConfig.Model),
		openai.WithToken(options.APIKey),
	}
	if options.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(options.BaseURL))
	}
	return openai.New(opts...)
}

func createGoogleAIModel(ctx context.Context, options ConnectorOptions) (llms.Model, error) {
	opts := []googleai.Option{
		googleai.WithAPIKey(options.APIKey),
		googleai.WithDefaultModel(options.ModelConfig.Model),
	}
	return googleai.New(ctx, opts...)
}

func createAnthropicModel(options ConnectorOptions) (llms.Model, error) {
	opts := []anthropic.Option{
		anthropic.WithToken(options.APIKey),
		anthropic.WithModel(options.ModelConfig.Model),
	}
	if options.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(options.BaseURL))
	}
	return anthropic.New(opts...)
}

func createCohereModel(options ConnectorOptions) (llms.Model, error) {
	opts := []cohere.Option{
		cohere.WithToken(options.APIKey),
		cohere.WithModel(options.ModelConfig.Model),
	}
	if options.BaseURL != "" {
		opts = append(opts, cohere.WithBaseURL(options.BaseURL))
	}
	return cohere.New(opts...)
}

func createOllamaModel(options ConnectorOptions) (llms.Model, error) {
	if options.BaseURL == "" {
		options.BaseURL = "http://localhost:11434"
	}
	// Ollama takes temperature and token limits per call, not at construction
	return ollama.New(
		ollama.WithServerURL(options.BaseURL),
		ollama.WithModel(options.ModelConfig.Model),
	)
}
