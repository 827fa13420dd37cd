package provider

import (
	"errors"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

// ErrEmptyResponse is returned when the model produced no choices
var ErrEmptyResponse = errors.New("provider returned empty response")

// usageInt reads an integer usage counter from langchaingo GenerationInfo.
// Clients populate these with different numeric types.
func usageInt(info map[string]any, key string) int {
	if info == nil {
		return 0
	}
	switch v := info[key].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	case float32:
		return int(v)
	default:
		return 0
	}
}

// firstChoice returns the text and generation info of the first choice
func firstChoice(resp *llms.ContentResponse) (string, map[string]any, error) {
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return "", nil, ErrEmptyResponse
	}
	choice := resp.Choices[0]
	return choice.Content, choice.GenerationInfo, nil
}

// callOptions translates TextOptions into langchaingo call options
func callOptions(model string, maxTokens int, temperature, topP float64) []llms.CallOption {
	opts := []llms.CallOption{
		llms.WithModel(model),
		llms.WithMaxTokens(maxTokens),
		llms.WithTemperature(temperature),
	}
	if topP > 0 {
		opts = append(opts, llms.WithTopP(topP))
	}
	return opts
}

func userMessage(prompt string) []llms.MessageContent {
	return []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}
}

func orDefault(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}

func intOrDefault(value, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}

func floatOrDefault(value, fallback float64) float64 {
	if value > 0 {
		return value
	}
	return fallback
}
