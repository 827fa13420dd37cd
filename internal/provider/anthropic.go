package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
)

const (
	DefaultAnthropicBaseURL = "https://api.anthropic.com/v1"

	defaultAnthropicMaxTokens   = 1024
	defaultAnthropicTemperature = 0.7
)

// AnthropicOptions configures the Anthropic adapter
type AnthropicOptions struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Pricing    *PriceTable
	Logger     *zerolog.Logger

	// LLM replaces the langchaingo messages client; tests inject fakes here.
	LLM llms.Model
}

// Anthropic is the Anthropic-style adapter over the messages API
type Anthropic struct {
	apiKey  string
	llm     llms.Model
	pricing *PriceTable
	logger  zerolog.Logger
}

// NewAnthropic builds the adapter. A missing API key leaves it unconfigured.
func NewAnthropic(opts AnthropicOptions) (*Anthropic, error) {
	pricing := opts.Pricing
	if pricing == nil {
		pricing = DefaultPricing()
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = opts.Logger.With().Str("provider", string(AnthropicName)).Logger()
	}

	a := &Anthropic{
		apiKey:  strings.TrimSpace(opts.APIKey),
		llm:     opts.LLM,
		pricing: pricing,
		logger:  logger,
	}

	if a.apiKey == "" {
		logger.Warn().Msg("Anthropic API key not configured")
		return a, nil
	}

	if a.llm == nil {
		httpClient := opts.HTTPClient
		if httpClient == nil {
			httpClient = &http.Client{Timeout: 60 * time.Second}
		}
		llm, err := anthropic.New(
			anthropic.WithToken(a.apiKey),
			anthropic.WithBaseURL(strings.TrimRight(orDefault(opts.BaseURL, DefaultAnthropicBaseURL), "/")),
			anthropic.WithModel(DefaultAnthropicTextModel),
			anthropic.WithHTTPClient(httpClient),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create anthropic client: %w", err)
		}
		a.llm = llm
	}

	return a, nil
}

// Name returns the provider identifier
func (a *Anthropic) Name() Name {
	return AnthropicName
}

// IsConfigured reports whether an API key is present. No network call is made.
func (a *Anthropic) IsConfigured() bool {
	return a != nil && a.apiKey != ""
}

// GenerateText sends one messages request and prices the reported usage
func (a *Anthropic) GenerateText(ctx context.Context, prompt string, opts TextOptions) (*TextResult, error) {
	return a.generate(ctx, prompt, opts, nil)
}

// GenerateTextStream delivers text through onChunk as it arrives and returns
// the accumulated result once the stream ends. Token counts come from the
// usage reported at message start (input) and message delta (output).
func (a *Anthropic) GenerateTextStream(ctx context.Context, prompt string, opts TextOptions, onChunk func(chunk string) error) (*TextResult, error) {
	if onChunk == nil {
		onChunk = func(string) error { return nil }
	}
	return a.generate(ctx, prompt, opts, onChunk)
}

func (a *Anthropic) generate(ctx context.Context, prompt string, opts TextOptions, onChunk func(string) error) (*TextResult, error) {
	if !a.IsConfigured() {
		return nil, NotConfigured(AnthropicName)
	}

	model := orDefault(opts.Model, DefaultAnthropicTextModel)
	callOpts := callOptions(
		model,
		intOrDefault(opts.MaxTokens, defaultAnthropicMaxTokens),
		floatOrDefault(opts.Temperature, defaultAnthropicTemperature),
		opts.TopP,
	)

	var streamed strings.Builder
	if onChunk != nil {
		callOpts = append(callOpts, llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			streamed.Write(chunk)
			return onChunk(string(chunk))
		}))
	}

	resp, err := a.llm.GenerateContent(ctx, userMessage(prompt), callOpts...)
	if err != nil {
		a.logger.Error().Err(err).Str("model", model).Bool("stream", onChunk != nil).Msg("Anthropic text generation failed")
		return nil, &ProviderError{Provider: AnthropicName, Message: err.Error(), Err: err}
	}

	text, info, err := firstChoice(resp)
	if err != nil {
		return nil, &ProviderError{Provider: AnthropicName, Message: err.Error(), Err: err}
	}
	if text == "" && streamed.Len() > 0 {
		text = streamed.String()
	}

	inputTokens := usageInt(info, "InputTokens")
	outputTokens := usageInt(info, "OutputTokens")

	return &TextResult{
		Text:         text,
		Model:        model,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		TokensUsed:   inputTokens + outputTokens,
		Cost:         a.pricing.TextCost(AnthropicName, model, inputTokens, outputTokens),
	}, nil
}
