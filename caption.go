package ragsync

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// leadingStripChars are punctuation and whitespace trimmed from caption
// boundaries, covering both ASCII and CJK variants.
const leadingStripChars = " \t\r\n-–—:：,，。"

// fillerPatterns strip conversational openers from model output. The rules
// are language-agnostic shapes rather than word lists, applied iteratively
// so stacked fillers ("Sure, here is: ...") are removed too. Order matters:
// the single-word rule runs first so a bare affirmation never shields a
// longer phrase behind it.
var fillerPatterns = []*regexp.Regexp{
	// A single short word followed by a comma, e.g. "OK," "Sure," "好的，".
	regexp.MustCompile(`^[A-Za-z\x{4e00}-\x{9fff}]{1,10}[,，]\s*`),
	// "Here is/are", "Below is/are", "The following is/are".
	regexp.MustCompile(`(?i)^(here|below|the\s+following)\s+(is|are)\s*[:：]?\s*`),
	// Chinese courtesy openers.
	regexp.MustCompile(`^(好的|当然|可以|没问题|以下是|下面是)[，,：:]?\s*`),
}

// maxFillerPasses bounds the iterative stripping; three passes handle every
// stacking seen in practice.
const maxFillerPasses = 3

// genericBadCaptions are placeholder words that carry no descriptive
// content in any supported language.
var genericBadCaptions = map[string]struct{}{
	"image": {}, "figure": {}, "picture": {}, "photo": {},
	"图片": {}, "图像": {}, "照片": {},
	"imagen": {}, "foto": {},
	"bild": {},
}

// badCaptionPatterns match refusal and error responses from the vision
// model. Kept as an ordered list so new shapes can be appended without
// restructuring the filter.
var badCaptionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(sorry|apolog|cannot|unable|can't)`),
	regexp.MustCompile(`(抱歉|对不起|无法|不能|请上传)`),
	regexp.MustCompile(`(no image|not available|not provided|cannot see)`),
	regexp.MustCompile(`as an ai`),
	regexp.MustCompile(`(lo siento|no puedo)`),
}

// NormalizeCaptionText collapses whitespace, strips conversational filler
// openers, and trims boundary punctuation from a caption or title.
func NormalizeCaptionText(text string) string {
	cleaned := strings.Join(strings.Fields(text), " ")
	cleaned = stripLeadingFillers(cleaned)
	return strings.Trim(cleaned, leadingStripChars)
}

func stripLeadingFillers(text string) string {
	cleaned := strings.TrimSpace(text)
	for pass := 0; pass < maxFillerPasses; pass++ {
		original := cleaned
		for _, pattern := range fillerPatterns {
			cleaned = pattern.ReplaceAllString(cleaned, "")
			cleaned = strings.TrimLeft(cleaned, leadingStripChars)
		}
		if cleaned == original {
			break
		}
	}
	return strings.TrimSpace(cleaned)
}

// IsBadCaption reports whether a caption or title is unusable: too short, a
// generic placeholder word, or a refusal/error response from the model.
func IsBadCaption(text string) bool {
	if utf8.RuneCountInString(strings.TrimSpace(text)) < 3 {
		return true
	}

	lowered := strings.Trim(strings.ToLower(text), leadingStripChars)
	if _, ok := genericBadCaptions[lowered]; ok {
		return true
	}
	for _, pattern := range badCaptionPatterns {
		if pattern.MatchString(lowered) {
			return true
		}
	}
	return false
}

// Separator sets for FallbackTitle, in priority order.
var (
	sentenceSeparators = []string{". ", "。", "! ", "！", "? ", "？"}
	clauseSeparators   = []string{", ", "，", "; ", "；"}
)

// FallbackTitle derives a short title from a caption when the model did not
// produce one: the caption verbatim if short, else the first sentence or
// comma-delimited clause when it lands in a usable length band, else a
// fixed-length prefix.
func FallbackTitle(caption string) string {
	caption = strings.TrimSpace(caption)
	if caption == "" {
		return "Image"
	}
	if utf8.RuneCountInString(caption) <= 15 {
		return caption
	}

	for _, sep := range sentenceSeparators {
		if first, ok := firstSegment(caption, sep, 3, 30); ok {
			return first
		}
	}
	for _, sep := range clauseSeparators {
		if first, ok := firstSegment(caption, sep, 3, 30); ok {
			return first
		}
	}

	return firstRunes(caption, 20)
}

func firstSegment(text, sep string, minLen, maxLen int) (string, bool) {
	idx := strings.Index(text, sep)
	if idx < 0 {
		return "", false
	}
	first := text[:idx]
	n := utf8.RuneCountInString(first)
	if n >= minLen && n <= maxLen {
		return first, true
	}
	return "", false
}

func firstRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
