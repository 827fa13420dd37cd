// Package provider wraps the external text and image generation APIs and
// normalizes their responses into text/images, token counts and USD cost.
package provider

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Name identifies an upstream provider
type Name string

const (
	OpenAIName    Name = "openai"
	AnthropicName Name = "anthropic"
)

// ErrNotConfigured is returned when a provider has no API key
var ErrNotConfigured = errors.New("API key not configured")

// ProviderError is returned for every failed upstream call. Message keeps the
// upstream error text verbatim where the provider supplied one.
type ProviderError struct {
	Provider   Name
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s API error: %s", displayName(e.Provider), e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func displayName(n Name) string {
	switch n {
	case OpenAIName:
		return "OpenAI"
	case AnthropicName:
		return "Anthropic"
	default:
		return string(n)
	}
}

// NotConfigured builds the error returned for calls on a provider without an API key
func NotConfigured(n Name) *ProviderError {
	return &ProviderError{
		Provider: n,
		Message:  displayName(n) + " API key not configured",
		Err:      ErrNotConfigured,
	}
}

// TextOptions tunes a single text generation call. Zero values fall back to
// the adapter defaults.
type TextOptions struct {
	Model       string
	MaxTokens   int
	Temperature float64
	TopP        float64
}

// TextResult is the normalized outcome of a text generation call
type TextResult struct {
	Text         string
	Model        string
	TokensUsed   int
	InputTokens  int
	OutputTokens int
	Cost         float64
}

// ImageOptions tunes a single image generation call
type ImageOptions struct {
	Prompt  string
	Size    string
	N       int
	Quality string
}

// Image is one generated image
type Image struct {
	URL           string `json:"url"`
	RevisedPrompt string `json:"revisedPrompt,omitempty"`
}

// ImageResult is the normalized outcome of an image generation call
type ImageResult struct {
	Images []Image
	Model  string
	Cost   float64
}

// Config holds credentials and endpoints for both providers
type Config struct {
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	AnthropicAPIKey  string
	AnthropicBaseURL string
	Timeout          time.Duration
	PricingFile      string
}

// ConfigFromEnv reads provider configuration from the environment. Missing
// API keys are not an error: the affected provider reports IsConfigured false.
func ConfigFromEnv() (Config, error) {
	cfg := Config{
		OpenAIAPIKey:     strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIBaseURL:    getEnvOrDefault("OPENAI_BASE_URL", DefaultOpenAIBaseURL),
		AnthropicAPIKey:  strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")),
		AnthropicBaseURL: getEnvOrDefault("ANTHROPIC_BASE_URL", DefaultAnthropicBaseURL),
		PricingFile:      os.Getenv("PRICING_FILE"),
	}

	timeout, err := time.ParseDuration(getEnvOrDefault("PROVIDER_TIMEOUT", "60s"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid PROVIDER_TIMEOUT: %w", err)
	}
	if timeout <= 0 {
		return Config{}, fmt.Errorf("PROVIDER_TIMEOUT must be positive, got %s", timeout)
	}
	cfg.Timeout = timeout

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}
