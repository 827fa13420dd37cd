package generator

import (
	"fmt"
	"strings"
)

func buildCaptionPrompt(o CaptionOptions) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate %d engaging social media captions about \"%s\".\n\n", o.Variations, o.Topic)
	b.WriteString("Requirements:\n")
	fmt.Fprintf(&b, "- Tone: %s\n", o.Tone)
	if o.Platform != "" {
		fmt.Fprintf(&b, "- Optimized for: %s\n", o.Platform)
	}
	if len(o.Keywords) > 0 {
		fmt.Fprintf(&b, "- Include keywords: %s\n", strings.Join(o.Keywords, ", "))
	}
	fmt.Fprintf(&b, "- Maximum length: %d characters\n", o.MaxLength)
	b.WriteString("- Make them engaging and action-oriented\n")
	b.WriteString("- Include relevant emojis where appropriate\n\n")
	fmt.Fprintf(&b, "Format: Return each caption on a new line, numbered 1-%d.", o.Variations)
	return b.String()
}

func buildContentPrompt(o ContentOptions) string {
	var b strings.Builder
	b.WriteString(o.Prompt)
	b.WriteString("\n\n")
	if o.ContentType != "" {
		fmt.Fprintf(&b, "Content Type: %s\n", o.ContentType)
	}
	if o.Tone != "" {
		fmt.Fprintf(&b, "Tone: %s\n", o.Tone)
	}
	if o.TargetAudience != "" {
		fmt.Fprintf(&b, "Target Audience: %s\n", o.TargetAudience)
	}
	if o.Variations > 1 {
		fmt.Fprintf(&b, "\nGenerate %d variations of high-quality content based on the above. ", o.Variations)
		b.WriteString("Separate variations with a line containing only ---.")
	} else {
		b.WriteString("\nGenerate 1 variation of high-quality content based on the above.")
	}
	return b.String()
}

// buildImagePrompt folds the optional style into the prompt text, since the
// image endpoint has no separate style parameter for arbitrary styles.
func buildImagePrompt(o ImageOptions) string {
	if o.Style == "" {
		return o.Prompt
	}
	return fmt.Sprintf("%s, in %s style", o.Prompt, o.Style)
}

func buildHashtagPrompt(o HashtagOptions) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze this content and generate %d relevant, trending hashtags:\n\n", o.Count)
	fmt.Fprintf(&b, "\"%s\"\n\n", o.Content)
	if o.Platform != "" {
		fmt.Fprintf(&b, "Platform: %s\n\n", o.Platform)
	}
	b.WriteString("Requirements:\n")
	b.WriteString("- Mix of popular and niche hashtags\n")
	b.WriteString("- Relevant to the content\n")
	b.WriteString("- Format: Return hashtags in a comma-separated list")
	return b.String()
}

func buildImprovementPrompt(o ImprovementOptions) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Improve the following content:\n\n\"%s\"\n\n", o.Content)
	fmt.Fprintf(&b, "Improvement focus: %s\n", o.ImprovementType)
	if o.Tone != "" {
		fmt.Fprintf(&b, "Desired tone: %s\n", o.Tone)
	}
	b.WriteString("\nProvide:\n")
	b.WriteString("1. The improved version\n")
	b.WriteString("2. A list of specific improvements made\n\n")
	b.WriteString("Format:\n")
	b.WriteString("IMPROVED:\n[improved content here]\n\n")
	b.WriteString("SUGGESTIONS:\n- [suggestion 1]\n- [suggestion 2]")
	return b.String()
}
