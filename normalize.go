package ragsync

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Empirically tuned thresholds for the normalization heuristics. They are
// named constants rather than hidden literals; see the matching config
// knobs for the ones exposed to operators.
const (
	// paragraphMergeCutoff is the length at which a paragraph ending in
	// terminal punctuation stops absorbing following lines.
	paragraphMergeCutoff = 80
	// shortLineCutoff is the length under which a following line is still
	// merged into a closed paragraph (short captions, list stragglers).
	shortLineCutoff = 40
	// repeatedLineThreshold is the verbatim occurrence count at which a
	// short non-sentence line is treated as a running header/footer.
	repeatedLineThreshold = 3
	// repeatCandidateMaxLen is the exclusive upper bound on the length of
	// lines considered for repeated-line removal: only lines under this
	// length are candidates.
	repeatCandidateMaxLen = 80
	// noiseTokenMaxLen caps the length of alphanumeric tokens considered
	// OCR noise.
	noiseTokenMaxLen = 12
)

// tableLeadIn is inserted before tables that have no introductory sentence.
const tableLeadIn = "The following table summarizes the test results."

var (
	imageRefRe       = regexp.MustCompile(`\[ImageRef:\s*(FIG-[^\]\s]+)\s*\]`)
	imageRefInlineRe = regexp.MustCompile(`ImageRef:\s*(FIG-[^\s]+)`)
	mdImageRe        = regexp.MustCompile(`!\[([^\]]*)\]\(([^)]+)\)`)
	htmlImageRe      = regexp.MustCompile(`(?i)<img\s+[^>]*src=["']([^"']+)["'][^>]*>`)

	tableSeparatorRe = regexp.MustCompile(`^\s*\|?\s*:?-+:?\s*(\|\s*:?-+:?\s*)+\|?\s*$`)
	noiseTokenRe     = regexp.MustCompile(`^[A-Z0-9/.-]+$`)
	freqUnitRe       = regexp.MustCompile(`^\d+(\.\d+)?\s*(Hz|kHz|MHz|GHz|V|mV|A|mA|dB|dBm|dBuV|W|mW|%|Ohm|ohm)\b`)

	autoSectionRe = regexp.MustCompile(`(?i)^##\s*(images|figures)\b`)
	sentenceEndRe = regexp.MustCompile(`[.!?]$`)
	strayFigRe    = regexp.MustCompile(`\[?FIG-[A-Za-z0-9-]+`)
	orderedItemRe = regexp.MustCompile(`^\d+\.\s+`)
)

// NormalizeMarkdown cleans raw converter markdown into coherent prose,
// tables, and inline figures. The pipeline stages run in a fixed order and
// each one skips content inside fenced code blocks. It is idempotent on
// already-normalized input given an empty image index. Image index entries
// whose figure never made it into the output are returned as unmatched.
func NormalizeMarkdown(md string, images []ImageIndexEntry) (string, []ImageIndexEntry) {
	figureMap := buildFigureMap(images)
	md = normalizeImages(md, figureMap)
	md = normalizeNoiseLines(md)
	md = normalizeTables(md)
	md = normalizeParagraphs(md)
	md, unmatched := InjectImagesInline(md, images)
	md = finalCleanup(md)
	return md, unmatched
}

// buildFigureMap indexes captions by figure id, dropping captions too short
// to be meaningful.
func buildFigureMap(images []ImageIndexEntry) map[string]string {
	m := make(map[string]string, len(images))
	for _, entry := range images {
		figID := strings.TrimSpace(entry.FigureID)
		caption := strings.TrimSpace(entry.Caption)
		if figID != "" && utf8.RuneCountInString(caption) >= 3 {
			m[figID] = caption
		}
	}
	return m
}

// normalizeImages strips converter-generated image sections, rewrites
// figure placeholders into cross-reference sentences, and removes residual
// native image markup (its alt text survives as a cross-reference caption).
func normalizeImages(md string, figureMap map[string]string) string {
	replaceRef := func(figID string) string {
		caption := strings.TrimSpace(figureMap[figID])
		if caption == "" {
			return ""
		}
		return "(See figure [" + figID + "]: " + caption + ")"
	}

	md = stripAutoImageSections(md)
	md = replaceOutsideCode(md, func(line string) string {
		return imageRefRe.ReplaceAllStringFunc(line, func(m string) string {
			return replaceRef(imageRefRe.FindStringSubmatch(m)[1])
		})
	})
	md = replaceOutsideCode(md, func(line string) string {
		return imageRefInlineRe.ReplaceAllStringFunc(line, func(m string) string {
			return replaceRef(imageRefInlineRe.FindStringSubmatch(m)[1])
		})
	})
	md = replaceOutsideCode(md, func(line string) string {
		return mdImageRe.ReplaceAllStringFunc(line, func(m string) string {
			alt := strings.TrimSpace(mdImageRe.FindStringSubmatch(m)[1])
			if alt == "" {
				return ""
			}
			return "(See figure: " + alt + ")"
		})
	})
	md = replaceOutsideCode(md, func(line string) string {
		return htmlImageRe.ReplaceAllStringFunc(line, func(m string) string {
			_, alt := ParseImageTag(m)
			if strings.TrimSpace(alt) == "" {
				return ""
			}
			return "(See figure: " + strings.TrimSpace(alt) + ")"
		})
	})
	md = replaceOutsideCode(md, func(line string) string {
		return strayFigRe.ReplaceAllStringFunc(line, func(m string) string {
			// Bracketed ids belong to cross-references inserted above.
			if strings.HasPrefix(m, "[") {
				return m
			}
			return ""
		})
	})
	return md
}

// stripAutoImageSections drops H2 sections whose heading matches the
// converter's auto-generated images/figures pattern and whose body actually
// contains image markup. Content handled by later stages would otherwise be
// duplicated.
func stripAutoImageSections(md string) string {
	lines := strings.Split(md, "\n")

	type section struct {
		heading string
		lines   []string
	}
	var sections []section
	current := section{}

	flush := func() {
		if current.heading == "" && len(current.lines) == 0 {
			return
		}
		sections = append(sections, current)
		current = section{}
	}

	for _, line := range lines {
		if strings.HasPrefix(line, "## ") {
			flush()
			current.heading = line
		}
		current.lines = append(current.lines, line)
	}
	flush()

	var kept []string
	for _, sec := range sections {
		if sec.heading != "" && autoSectionRe.MatchString(sec.heading) && sectionHasImageMarkers(sec.lines) {
			continue
		}
		kept = append(kept, sec.lines...)
	}
	return strings.Join(kept, "\n")
}

func sectionHasImageMarkers(lines []string) bool {
	for _, line := range lines {
		if strings.Contains(line, "![") || strings.Contains(line, "Caption:") ||
			strings.Contains(line, "FIG-") || strings.Contains(line, "[ImageRef:") {
			return true
		}
	}
	return false
}

// replaceOutsideCode applies a per-line transform to every line outside
// fenced code blocks. Fence markers toggle code mode and are passed through
// untouched, so no transform can cross a fence boundary.
func replaceOutsideCode(md string, transform func(string) string) string {
	lines := strings.Split(md, "\n")
	out := make([]string, 0, len(lines))
	inCode := false
	for _, line := range lines {
		if strings.HasPrefix(line, "```") {
			inCode = !inCode
			out = append(out, line)
			continue
		}
		if inCode {
			out = append(out, line)
		} else {
			out = append(out, transform(line))
		}
	}
	return strings.Join(out, "\n")
}

// normalizeNoiseLines drops lines matching OCR-noise heuristics. Table rows
// and separators are never treated as noise.
func normalizeNoiseLines(md string) string {
	lines := strings.Split(md, "\n")
	out := make([]string, 0, len(lines))
	inCode := false
	for _, line := range lines {
		if strings.HasPrefix(line, "```") {
			inCode = !inCode
			out = append(out, line)
			continue
		}
		if inCode || looksLikeTableRow(line) || looksLikeTableSeparator(line) {
			out = append(out, line)
			continue
		}
		if isNoiseLine(line) {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func isNoiseLine(line string) bool {
	stripped := strings.TrimSpace(line)
	if stripped == "" {
		return false
	}
	if freqUnitRe.MatchString(stripped) {
		return true
	}
	n := utf8.RuneCountInString(stripped)
	if n <= noiseTokenMaxLen && noiseTokenRe.MatchString(stripped) && containsDigit(stripped) {
		return true
	}
	if n <= 3 && isAllUpper(stripped) {
		return true
	}
	return false
}

func containsDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func isAllUpper(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			hasLetter = true
		}
	}
	return hasLetter
}

// normalizeTables inserts a generic lead-in sentence before any table whose
// preceding content does not end in terminal punctuation, so tables are
// never orphaned without context.
func normalizeTables(md string) string {
	lines := strings.Split(md, "\n")
	out := make([]string, 0, len(lines))
	inCode := false
	for i := 0; i < len(lines); {
		line := lines[i]
		if strings.HasPrefix(line, "```") {
			inCode = !inCode
			out = append(out, line)
			i++
			continue
		}
		if inCode {
			out = append(out, line)
			i++
			continue
		}
		if looksLikeTableRow(line) && i+1 < len(lines) && looksLikeTableSeparator(lines[i+1]) {
			if !hasTableLeadIn(out) {
				if len(out) > 0 && strings.TrimSpace(out[len(out)-1]) != "" {
					out = append(out, "")
				}
				out = append(out, tableLeadIn, "")
			}
			for i < len(lines) && (looksLikeTableRow(lines[i]) || looksLikeTableSeparator(lines[i])) {
				out = append(out, lines[i])
				i++
			}
			continue
		}
		out = append(out, line)
		i++
	}
	return strings.Join(out, "\n")
}

func hasTableLeadIn(out []string) bool {
	for i := len(out) - 1; i >= 0; i-- {
		if strings.TrimSpace(out[i]) == "" {
			continue
		}
		return isSentenceLine(out[i])
	}
	return false
}

func isSentenceLine(line string) bool {
	stripped := strings.TrimSpace(line)
	if strings.HasPrefix(stripped, "#") || strings.HasPrefix(stripped, "-") || strings.HasPrefix(stripped, "*") {
		return false
	}
	if looksLikeTableRow(stripped) {
		return false
	}
	return strings.HasSuffix(stripped, ".") || strings.HasSuffix(stripped, "!") ||
		strings.HasSuffix(stripped, "?") || strings.HasSuffix(stripped, ":")
}

// normalizeParagraphs removes repeated running headers/footers, then merges
// consecutive non-block lines into single paragraphs.
func normalizeParagraphs(md string) string {
	lines := removeRepeatedLines(strings.Split(md, "\n"))
	out := make([]string, 0, len(lines))
	var paragraph string
	haveParagraph := false
	inCode := false

	flushParagraph := func() {
		if haveParagraph {
			out = append(out, paragraph, "")
			haveParagraph = false
			paragraph = ""
		}
	}

	for _, line := range lines {
		if strings.HasPrefix(line, "```") {
			flushParagraph()
			inCode = !inCode
			out = append(out, line)
			continue
		}
		if inCode {
			out = append(out, line)
			continue
		}
		if strings.TrimSpace(line) == "" {
			if haveParagraph {
				flushParagraph()
			} else if len(out) > 0 && out[len(out)-1] != "" {
				out = append(out, "")
			}
			continue
		}
		if isBlockLine(line) {
			flushParagraph()
			out = append(out, line)
			continue
		}
		merged := strings.Join(strings.Fields(line), " ")
		if !haveParagraph {
			paragraph = merged
			haveParagraph = true
			continue
		}
		if shouldMergeParagraph(paragraph, merged) {
			paragraph = strings.TrimSpace(paragraph + " " + merged)
		} else {
			out = append(out, paragraph, "")
			paragraph = merged
		}
	}
	if haveParagraph {
		out = append(out, paragraph)
	}
	return strings.Join(out, "\n")
}

func isBlockLine(line string) bool {
	stripped := strings.TrimLeft(line, " \t")
	if strings.HasPrefix(stripped, "#") || strings.HasPrefix(stripped, ">") {
		return true
	}
	if strings.HasPrefix(stripped, "- ") || strings.HasPrefix(stripped, "* ") || strings.HasPrefix(stripped, "+ ") {
		return true
	}
	if orderedItemRe.MatchString(stripped) {
		return true
	}
	return looksLikeTableRow(stripped) || looksLikeTableSeparator(stripped)
}

// shouldMergeParagraph balances over-merging short captions against leaving
// genuine sentence breaks split: a closed paragraph keeps absorbing lines
// only while it is short or the incoming line is short.
func shouldMergeParagraph(current, incoming string) bool {
	current = strings.TrimSpace(current)
	if !sentenceEndRe.MatchString(current) {
		return true
	}
	return utf8.RuneCountInString(current) < paragraphMergeCutoff ||
		utf8.RuneCountInString(strings.TrimSpace(incoming)) < shortLineCutoff
}

// removeRepeatedLines deletes short non-sentence lines that occur at least
// repeatedLineThreshold times verbatim (after whitespace normalization)
// anywhere in the document. This targets running headers and footers
// injected by the source format.
func removeRepeatedLines(lines []string) []string {
	normalized := make([]string, len(lines))
	counts := make(map[string]int)
	for i, line := range lines {
		normalized[i] = strings.Join(strings.Fields(line), " ")
		if isRepeatCandidate(line) {
			counts[normalized[i]]++
		}
	}

	out := make([]string, 0, len(lines))
	for i, line := range lines {
		if isRepeatCandidate(line) && counts[normalized[i]] >= repeatedLineThreshold {
			continue
		}
		out = append(out, line)
	}
	return out
}

func isRepeatCandidate(line string) bool {
	stripped := strings.TrimSpace(line)
	if stripped == "" {
		return false
	}
	if strings.HasPrefix(stripped, "#") || strings.HasPrefix(stripped, "-") ||
		strings.HasPrefix(stripped, "*") || strings.HasPrefix(stripped, "```") {
		return false
	}
	if looksLikeTableRow(stripped) || looksLikeTableSeparator(stripped) {
		return false
	}
	if utf8.RuneCountInString(stripped) >= repeatCandidateMaxLen {
		return false
	}
	return !sentenceEndRe.MatchString(stripped)
}

func looksLikeTableSeparator(line string) bool {
	return tableSeparatorRe.MatchString(strings.TrimSpace(line))
}

func looksLikeTableRow(line string) bool {
	stripped := strings.TrimSpace(line)
	if !strings.Contains(stripped, "|") {
		return false
	}
	return strings.HasPrefix(stripped, "|") || strings.HasSuffix(stripped, "|") ||
		strings.Count(stripped, "|") >= 2
}

// finalCleanup trims trailing whitespace per line, collapses runs of blank
// lines, and enforces a single trailing newline.
func finalCleanup(md string) string {
	lines := strings.Split(md, "\n")
	cleaned := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if strings.TrimSpace(line) == "" {
			if blank {
				continue
			}
			cleaned = append(cleaned, "")
			blank = true
		} else {
			cleaned = append(cleaned, line)
			blank = false
		}
	}
	return strings.Trim(strings.Join(cleaned, "\n"), "\n ") + "\n"
}
