package provider

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultOpenAITextModel    = "gpt-4-turbo-preview"
	DefaultOpenAIImageModel   = "dall-e-3"
	DefaultAnthropicTextModel = "claude-3-5-sonnet-20241022"

	DefaultImageSize    = "1024x1024"
	DefaultImageQuality = "standard"
)

// ModelPrice is USD per 1M tokens
type ModelPrice struct {
	Input  float64 `yaml:"input"`
	Output float64 `yaml:"output"`
}

// PriceTable is the static pricing used to compute cost at response time.
// Image prices are USD per image keyed by size then quality tier.
type PriceTable struct {
	OpenAI    map[string]ModelPrice         `yaml:"openai"`
	Anthropic map[string]ModelPrice         `yaml:"anthropic"`
	Images    map[string]map[string]float64 `yaml:"images"`
}

// DefaultPricing returns the built-in price table (2024 list prices)
func DefaultPricing() *PriceTable {
	return &PriceTable{
		OpenAI: map[string]ModelPrice{
			"gpt-4-turbo-preview": {Input: 10, Output: 30},
			"gpt-4":               {Input: 30, Output: 60},
			"gpt-3.5-turbo":       {Input: 0.5, Output: 1.5},
			"gpt-4o":              {Input: 5, Output: 15},
		},
		Anthropic: map[string]ModelPrice{
			"claude-3-5-sonnet-20241022": {Input: 3, Output: 15},
			"claude-3-opus-20240229":     {Input: 15, Output: 75},
			"claude-3-sonnet-20240229":   {Input: 3, Output: 15},
			"claude-3-haiku-20240307":    {Input: 0.25, Output: 1.25},
		},
		Images: map[string]map[string]float64{
			"1024x1024": {"standard": 0.04, "hd": 0.08},
			"1024x1792": {"standard": 0.08, "hd": 0.12},
			"1792x1024": {"standard": 0.08, "hd": 0.12},
		},
	}
}

// LoadPricingFile reads a YAML price table and merges it over the defaults.
// Entries present in the file replace the built-in ones; everything else is kept.
func LoadPricingFile(path string) (*PriceTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pricing file: %w", err)
	}

	var override PriceTable
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("failed to parse pricing file: %w", err)
	}

	table := DefaultPricing()
	for model, price := range override.OpenAI {
		if price.Input < 0 || price.Output < 0 {
			return nil, fmt.Errorf("negative price for openai model %q", model)
		}
		table.OpenAI[model] = price
	}
	for model, price := range override.Anthropic {
		if price.Input < 0 || price.Output < 0 {
			return nil, fmt.Errorf("negative price for anthropic model %q", model)
		}
		table.Anthropic[model] = price
	}
	for size, tiers := range override.Images {
		if table.Images[size] == nil {
			table.Images[size] = make(map[string]float64, len(tiers))
		}
		for quality, price := range tiers {
			if price < 0 {
				return nil, fmt.Errorf("negative price for image %s/%s", size, quality)
			}
			table.Images[size][quality] = price
		}
	}

	return table, nil
}

// textPrice returns the price for model, falling back to the provider's
// default model when the model is not listed.
func (p *PriceTable) textPrice(provider Name, model string) ModelPrice {
	var (
		prices   map[string]ModelPrice
		fallback string
	)
	switch provider {
	case AnthropicName:
		prices, fallback = p.Anthropic, DefaultAnthropicTextModel
	default:
		prices, fallback = p.OpenAI, DefaultOpenAITextModel
	}
	if price, ok := prices[model]; ok {
		return price
	}
	return prices[fallback]
}

// TextCost computes cost from a known input/output split
func (p *PriceTable) TextCost(provider Name, model string, inputTokens, outputTokens int) float64 {
	price := p.textPrice(provider, model)
	inputCost := float64(inputTokens) * price.Input / 1_000_000
	outputCost := float64(outputTokens) * price.Output / 1_000_000
	return inputCost + outputCost
}

// EstimateTextCost prices a total token count when the provider does not
// report the input/output split. The total is assumed to be half input and
// half output; this is an approximation, not a measured split.
func (p *PriceTable) EstimateTextCost(provider Name, model string, totalTokens int) float64 {
	price := p.textPrice(provider, model)
	half := float64(totalTokens) / 2
	return (half*price.Input + half*price.Output) / 1_000_000
}

// ImageCost prices n images, falling back to 1024x1024 and the standard tier
func (p *PriceTable) ImageCost(size, quality string, n int) float64 {
	tiers, ok := p.Images[size]
	if !ok {
		tiers = p.Images[DefaultImageSize]
	}
	perImage, ok := tiers[quality]
	if !ok {
		perImage = tiers[DefaultImageQuality]
	}
	return perImage * float64(n)
}
