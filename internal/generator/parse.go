package generator

import (
	"regexp"
	"strings"
)

// Response parsers turn freeform model text into structured results. They are
// pure: the same input always yields the same output, and malformed input
// degrades to a partial or fallback result instead of an error.

var (
	listNumberPattern      = regexp.MustCompile(`^\d+\.\s*`)
	variationMarkerPattern = regexp.MustCompile(`(?m)^[ \t]*(?:-{3,}|Variation \d+:)[ \t]*\r?$`)
	hashtagPattern         = regexp.MustCompile(`#\w+`)
	wholeHashtagPattern    = regexp.MustCompile(`^#\w+$`)
	bulletPattern          = regexp.MustCompile(`^-\s*`)
)

const (
	improvedMarker    = "IMPROVED:"
	suggestionsMarker = "SUGGESTIONS:"
)

// ParseCaptions splits the response into lines, strips "N." numbering, drops
// blank lines and returns at most count captions.
func ParseCaptions(text string, count int) []string {
	if count <= 0 {
		return []string{}
	}
	captions := make([]string, 0, count)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimSpace(listNumberPattern.ReplaceAllString(line, ""))
		if line == "" {
			continue
		}
		if len(captions) == count {
			break
		}
		captions = append(captions, line)
	}
	return captions
}

// ParseContent returns the whole response as one variant when a single
// variation was requested. Otherwise it splits on "---" or "Variation N:"
// marker lines and returns at most count non-blank variants.
func ParseContent(text string, count int) []string {
	if count <= 1 {
		return []string{strings.TrimSpace(text)}
	}

	variants := make([]string, 0, count)
	for _, part := range variationMarkerPattern.Split(text, -1) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		variants = append(variants, part)
		if len(variants) == count {
			break
		}
	}
	return variants
}

// ParseHashtags returns the union of #word matches and comma-separated tokens
// that are a single hashtag, de-duplicated in first-seen order. Comma tokens
// with trailing punctuation or several tags are left to the #word matches.
func ParseHashtags(text string) []string {
	seen := make(map[string]struct{})
	hashtags := make([]string, 0)
	add := func(tag string) {
		if _, ok := seen[tag]; ok {
			return
		}
		seen[tag] = struct{}{}
		hashtags = append(hashtags, tag)
	}

	for _, match := range hashtagPattern.FindAllString(text, -1) {
		add(match)
	}
	for _, token := range strings.Split(text, ",") {
		token = strings.TrimSpace(token)
		if wholeHashtagPattern.MatchString(token) {
			add(token)
		}
	}
	return hashtags
}

// ParseImprovement extracts the text between "IMPROVED:" and "SUGGESTIONS:"
// as the improved content and the bullet lines after "SUGGESTIONS:" as
// suggestions. Without an "IMPROVED:" marker the whole response is the
// improved content and there are no suggestions.
func ParseImprovement(text string) (string, []string) {
	suggestions := make([]string, 0)

	start := strings.Index(text, improvedMarker)
	if start < 0 {
		return text, suggestions
	}

	body := text[start+len(improvedMarker):]
	improved := body
	if end := strings.Index(body, suggestionsMarker); end >= 0 {
		improved = body[:end]
	}

	if idx := strings.Index(text, suggestionsMarker); idx >= 0 {
		for _, line := range strings.Split(text[idx+len(suggestionsMarker):], "\n") {
			line = strings.TrimSpace(bulletPattern.ReplaceAllString(strings.TrimSpace(line), ""))
			if line != "" {
				suggestions = append(suggestions, line)
			}
		}
	}

	return strings.TrimSpace(improved), suggestions
}
