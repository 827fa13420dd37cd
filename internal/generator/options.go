package generator

import (
	"github.com/contentdeck/aigen/internal/provider"
	"github.com/google/uuid"
)

const (
	DefaultCaptionTone       = "professional"
	DefaultCaptionVariations = 3
	DefaultCaptionMaxLength  = 200
	DefaultContentVariations = 1
	DefaultHashtagCount      = 10
	DefaultImprovementType   = "general"
	DefaultImageCount        = 1
)

// CaptionOptions are the caller parameters for GenerateCaption
type CaptionOptions struct {
	Topic      string         `json:"topic"`
	Tone       string         `json:"tone"`
	Platform   string         `json:"platform,omitempty"`
	Variations int            `json:"variations"`
	Keywords   []string       `json:"keywords,omitempty"`
	MaxLength  int            `json:"maxLength"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func (o CaptionOptions) withDefaults() CaptionOptions {
	if o.Tone == "" {
		o.Tone = DefaultCaptionTone
	}
	if o.Variations <= 0 {
		o.Variations = DefaultCaptionVariations
	}
	if o.MaxLength <= 0 {
		o.MaxLength = DefaultCaptionMaxLength
	}
	return o
}

// ContentOptions are the caller parameters for GenerateContent and StreamContent
type ContentOptions struct {
	Prompt         string         `json:"prompt"`
	ContentType    string         `json:"contentType,omitempty"`
	Tone           string         `json:"tone,omitempty"`
	TargetAudience string         `json:"targetAudience,omitempty"`
	Variations     int            `json:"variations"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

func (o ContentOptions) withDefaults() ContentOptions {
	if o.Variations <= 0 {
		o.Variations = DefaultContentVariations
	}
	return o
}

// ImageOptions are the caller parameters for GenerateImage
type ImageOptions struct {
	Prompt   string         `json:"prompt"`
	Style    string         `json:"style,omitempty"`
	Size     string         `json:"size"`
	N        int            `json:"n"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (o ImageOptions) withDefaults() ImageOptions {
	if o.Size == "" {
		o.Size = provider.DefaultImageSize
	}
	if o.N <= 0 {
		o.N = DefaultImageCount
	}
	return o
}

// HashtagOptions are the caller parameters for GenerateHashtags
type HashtagOptions struct {
	Content  string         `json:"content"`
	Platform string         `json:"platform,omitempty"`
	Count    int            `json:"count"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (o HashtagOptions) withDefaults() HashtagOptions {
	if o.Count <= 0 {
		o.Count = DefaultHashtagCount
	}
	return o
}

// ImprovementOptions are the caller parameters for ImproveContent
type ImprovementOptions struct {
	Content         string         `json:"content"`
	ImprovementType string         `json:"improvementType"`
	Tone            string         `json:"tone,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

func (o ImprovementOptions) withDefaults() ImprovementOptions {
	if o.ImprovementType == "" {
		o.ImprovementType = DefaultImprovementType
	}
	return o
}

// CaptionResult is returned by GenerateCaption
type CaptionResult struct {
	Captions  []string  `json:"captions"`
	RequestID uuid.UUID `json:"requestId"`
}

// ContentResult is returned by GenerateContent and StreamContent
type ContentResult struct {
	Content   []string  `json:"content"`
	RequestID uuid.UUID `json:"requestId"`
}

// ImageResult is returned by GenerateImage
type ImageResult struct {
	Images    []provider.Image `json:"images"`
	RequestID uuid.UUID        `json:"requestId"`
}

// HashtagResult is returned by GenerateHashtags
type HashtagResult struct {
	Hashtags  []string  `json:"hashtags"`
	RequestID uuid.UUID `json:"requestId"`
}

// ImprovementResult is returned by ImproveContent
type ImprovementResult struct {
	ImprovedContent string    `json:"improvedContent"`
	Suggestions     []string  `json:"suggestions"`
	RequestID       uuid.UUID `json:"requestId"`
}
