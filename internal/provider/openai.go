package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"

	defaultOpenAIMaxTokens   = 1000
	defaultOpenAITemperature = 0.7
	defaultOpenAITopP        = 1
)

// OpenAIOptions configures the OpenAI adapter
type OpenAIOptions struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Pricing    *PriceTable
	Logger     *zerolog.Logger

	// LLM replaces the langchaingo chat client; tests inject fakes here.
	LLM llms.Model
}

// OpenAI is the OpenAI-style adapter: chat completions through langchaingo
// and DALL-E image generation through a direct HTTPS call.
type OpenAI struct {
	apiKey     string
	baseURL    string
	llm        llms.Model
	httpClient *http.Client
	pricing    *PriceTable
	logger     zerolog.Logger
}

// NewOpenAI builds the adapter. A missing API key is not an error; the adapter
// is returned unconfigured and every call fails with a ProviderError.
func NewOpenAI(opts OpenAIOptions) (*OpenAI, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	pricing := opts.Pricing
	if pricing == nil {
		pricing = DefaultPricing()
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = opts.Logger.With().Str("provider", string(OpenAIName)).Logger()
	}

	o := &OpenAI{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    strings.TrimRight(orDefault(opts.BaseURL, DefaultOpenAIBaseURL), "/"),
		llm:        opts.LLM,
		httpClient: httpClient,
		pricing:    pricing,
		logger:     logger,
	}

	if o.apiKey == "" {
		logger.Warn().Msg("OpenAI API key not configured")
		return o, nil
	}

	if o.llm == nil {
		llm, err := openai.New(
			openai.WithToken(o.apiKey),
			openai.WithBaseURL(o.baseURL),
			openai.WithModel(DefaultOpenAITextModel),
			openai.WithHTTPClient(httpClient),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create openai client: %w", err)
		}
		o.llm = llm
	}

	return o, nil
}

// Name returns the provider identifier
func (o *OpenAI) Name() Name {
	return OpenAIName
}

// IsConfigured reports whether an API key is present. No network call is made.
func (o *OpenAI) IsConfigured() bool {
	return o != nil && o.apiKey != ""
}

// GenerateText sends one chat completion request and prices the result
func (o *OpenAI) GenerateText(ctx context.Context, prompt string, opts TextOptions) (*TextResult, error) {
	if !o.IsConfigured() {
		return nil, NotConfigured(OpenAIName)
	}

	model := orDefault(opts.Model, DefaultOpenAITextModel)
	resp, err := o.llm.GenerateContent(ctx, userMessage(prompt), callOptions(
		model,
		intOrDefault(opts.MaxTokens, defaultOpenAIMaxTokens),
		floatOrDefault(opts.Temperature, defaultOpenAITemperature),
		floatOrDefault(opts.TopP, defaultOpenAITopP),
	)...)
	if err != nil {
		o.logger.Error().Err(err).Str("model", model).Msg("OpenAI text generation failed")
		return nil, &ProviderError{Provider: OpenAIName, Message: err.Error(), Err: err}
	}

	text, info, err := firstChoice(resp)
	if err != nil {
		return nil, &ProviderError{Provider: OpenAIName, Message: err.Error(), Err: err}
	}

	result := &TextResult{
		Text:         text,
		Model:        model,
		InputTokens:  usageInt(info, "PromptTokens"),
		OutputTokens: usageInt(info, "CompletionTokens"),
		TokensUsed:   usageInt(info, "TotalTokens"),
	}
	if result.TokensUsed == 0 {
		result.TokensUsed = result.InputTokens + result.OutputTokens
	}

	if result.InputTokens+result.OutputTokens > 0 {
		result.Cost = o.pricing.TextCost(OpenAIName, model, result.InputTokens, result.OutputTokens)
	} else {
		result.Cost = o.pricing.EstimateTextCost(OpenAIName, model, result.TokensUsed)
	}

	return result, nil
}

type imageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	Size           string `json:"size"`
	N              int    `json:"n"`
	Quality        string `json:"quality"`
	ResponseFormat string `json:"response_format"`
}

type imageResponse struct {
	Data []struct {
		URL           string `json:"url"`
		RevisedPrompt string `json:"revised_prompt"`
	} `json:"data"`
}

type openAIErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// GenerateImage generates opts.N images. The image model accepts one image
// per request, so each image is its own upstream call; the calls run
// concurrently and the first failure cancels the rest. Images are billed per
// image, so no tokens are reported.
func (o *OpenAI) GenerateImage(ctx context.Context, opts ImageOptions) (*ImageResult, error) {
	if !o.IsConfigured() {
		return nil, NotConfigured(OpenAIName)
	}

	size := orDefault(opts.Size, DefaultImageSize)
	quality := orDefault(opts.Quality, DefaultImageQuality)
	n := intOrDefault(opts.N, 1)

	body, err := json.Marshal(imageRequest{
		Model:          DefaultOpenAIImageModel,
		Prompt:         opts.Prompt,
		Size:           size,
		N:              1,
		Quality:        quality,
		ResponseFormat: "url",
	})
	if err != nil {
		return nil, fmt.Errorf("openai: encode image request: %w", err)
	}

	batches := make([][]Image, n)
	g, gctx := errgroup.WithContext(ctx)
	for i := range batches {
		g.Go(func() error {
			images, err := o.requestImages(gctx, body)
			if err != nil {
				return err
			}
			batches[i] = images
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	images := make([]Image, 0, n)
	for _, batch := range batches {
		images = append(images, batch...)
	}

	return &ImageResult{
		Images: images,
		Model:  DefaultOpenAIImageModel,
		Cost:   o.pricing.ImageCost(size, quality, n),
	}, nil
}

// requestImages sends one encoded image request
func (o *OpenAI) requestImages(ctx context.Context, body []byte) ([]Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/images/generations", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openai: build image request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		o.logger.Error().Err(err).Msg("OpenAI image generation failed")
		return nil, &ProviderError{Provider: OpenAIName, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Provider: OpenAIName, StatusCode: resp.StatusCode, Message: err.Error(), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
		var detail openAIErrorResponse
		if err := json.Unmarshal(raw, &detail); err == nil && detail.Error.Message != "" {
			message = detail.Error.Message
		}
		o.logger.Error().Int("status", resp.StatusCode).Str("error", message).Msg("OpenAI image generation failed")
		return nil, &ProviderError{Provider: OpenAIName, StatusCode: resp.StatusCode, Message: message}
	}

	var decoded imageResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, &ProviderError{Provider: OpenAIName, StatusCode: resp.StatusCode, Message: "decode response: " + err.Error(), Err: err}
	}

	images := make([]Image, 0, len(decoded.Data))
	for _, img := range decoded.Data {
		images = append(images, Image{URL: img.URL, RevisedPrompt: img.RevisedPrompt})
	}
	return images, nil
}
