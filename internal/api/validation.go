package api

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/contentdeck/aigen/internal/generator"
)

const (
	// MaxInputLength is the maximum allowed length for a generation text field
	MaxInputLength = 5000

	// MaxOptionLength bounds short free-text options such as tone or platform
	MaxOptionLength = 200

	MaxVariations    = 10
	MaxImages        = 4
	MaxHashtags      = 30
	MaxCaptionLength = 5000
)

var (
	// ErrEmptyInput is returned when input is empty or whitespace only
	ErrEmptyInput = errors.New("input cannot be empty")

	// ErrInputTooLong is returned when input exceeds max length
	ErrInputTooLong = errors.New("input too long")

	// ErrBlockedPattern is returned when input contains dangerous patterns
	ErrBlockedPattern = errors.New("input contains blocked pattern")

	// ErrOutOfRange is returned for numeric options outside their bounds
	ErrOutOfRange = errors.New("value out of range")

	// ErrInvalidIdentifier is returned when an identity header is not a UUID
	ErrInvalidIdentifier = errors.New("must be a UUID")
)

// supportedImageSizes are the sizes the image endpoint accepts
var supportedImageSizes = map[string]bool{
	"1024x1024": true,
	"1024x1792": true,
	"1792x1024": true,
}

// FieldError ties a validation failure to the request field that caused it
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// InputValidator validates generation requests before they reach the orchestrator
type InputValidator struct {
	blockedPatterns []*regexp.Regexp
}

// NewInputValidator creates a new input validator with predefined blocked patterns
func NewInputValidator() *InputValidator {
	return &InputValidator{
		blockedPatterns: compileBlockedPatterns(),
	}
}

// ValidateText checks a required text field is present, bounded and free of
// blocked patterns
func (v *InputValidator) ValidateText(field, input string) error {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return &FieldError{Field: field, Err: ErrEmptyInput}
	}
	if utf8.RuneCountInString(trimmed) > MaxInputLength {
		return &FieldError{Field: field, Err: fmt.Errorf("%w: maximum %d characters allowed", ErrInputTooLong, MaxInputLength)}
	}
	if v.blocked(trimmed) {
		return &FieldError{Field: field, Err: ErrBlockedPattern}
	}
	return nil
}

// Caption validates a caption request
func (v *InputValidator) Caption(o generator.CaptionOptions) error {
	if err := v.ValidateText("topic", o.Topic); err != nil {
		return err
	}
	if err := v.options("tone", o.Tone, "platform", o.Platform); err != nil {
		return err
	}
	for _, k := range o.Keywords {
		if err := v.option("keywords", k); err != nil {
			return err
		}
	}
	if err := inRange("variations", o.Variations, MaxVariations); err != nil {
		return err
	}
	return inRange("maxLength", o.MaxLength, MaxCaptionLength)
}

// Content validates a content request
func (v *InputValidator) Content(o generator.ContentOptions) error {
	if err := v.ValidateText("prompt", o.Prompt); err != nil {
		return err
	}
	if err := v.options("contentType", o.ContentType, "tone", o.Tone, "targetAudience", o.TargetAudience); err != nil {
		return err
	}
	return inRange("variations", o.Variations, MaxVariations)
}

// Image validates an image request
func (v *InputValidator) Image(o generator.ImageOptions) error {
	if err := v.ValidateText("prompt", o.Prompt); err != nil {
		return err
	}
	if err := v.option("style", o.Style); err != nil {
		return err
	}
	if o.Size != "" && !supportedImageSizes[o.Size] {
		return &FieldError{Field: "size", Err: fmt.Errorf("%w: unsupported size %q", ErrOutOfRange, o.Size)}
	}
	return inRange("n", o.N, MaxImages)
}

// Hashtags validates a hashtag request
func (v *InputValidator) Hashtags(o generator.HashtagOptions) error {
	if err := v.ValidateText("content", o.Content); err != nil {
		return err
	}
	if err := v.option("platform", o.Platform); err != nil {
		return err
	}
	return inRange("count", o.Count, MaxHashtags)
}

// Improvement validates a content improvement request
func (v *InputValidator) Improvement(o generator.ImprovementOptions) error {
	if err := v.ValidateText("content", o.Content); err != nil {
		return err
	}
	return v.options("improvementType", o.ImprovementType, "tone", o.Tone)
}

// options takes field/value pairs
func (v *InputValidator) options(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if err := v.option(pairs[i], pairs[i+1]); err != nil {
			return err
		}
	}
	return nil
}

// option checks an optional short field; empty is allowed
func (v *InputValidator) option(field, value string) error {
	if value == "" {
		return nil
	}
	if utf8.RuneCountInString(value) > MaxOptionLength {
		return &FieldError{Field: field, Err: fmt.Errorf("%w: maximum %d characters allowed", ErrInputTooLong, MaxOptionLength)}
	}
	if v.blocked(value) {
		return &FieldError{Field: field, Err: ErrBlockedPattern}
	}
	return nil
}

func (v *InputValidator) blocked(input string) bool {
	lower := strings.ToLower(input)
	for _, pattern := range v.blockedPatterns {
		if pattern.MatchString(lower) {
			return true
		}
	}
	return false
}

// inRange accepts zero (use the default) or 1..max
func inRange(field string, value, max int) error {
	if value < 0 || value > max {
		return &FieldError{Field: field, Err: fmt.Errorf("%w: must be between 1 and %d", ErrOutOfRange, max)}
	}
	return nil
}

// compileBlockedPatterns returns the patterns rejected in any text field:
// markup injection and attempts to override the system prompt
func compileBlockedPatterns() []*regexp.Regexp {
	patterns := []string{
		`\b(drop|truncate|alter)\s+(table|database|schema)\b`,
		`\bunion\s+select\b`,

		`<script[^>]*>`,
		`</script>`,
		`javascript:`,
		`<iframe`,
		`<img[^>]+onerror`,

		`\bignore\s+(all\s+)?(previous|above|prior)\s+instructions`,
		`\bsystem\s*:\s*you\s+are\s+(now\s+)?`,
		`\bassistant\s*:\s*i\s+will`,
		`\breplace\s+your\s+instructions`,
		`\bforget\s+(everything|all|your\s+rules)`,
		`\bact\s+as\s+(if\s+)?you\s+(are|were)\s+`,
	}

	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		compiled = append(compiled, regexp.MustCompile(p))
	}

	return compiled
}
