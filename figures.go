package ragsync

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// imageSectionTitle heads the auto-generated figure appendix appended to
// converter markdown. The normalizer recognizes and strips it before
// injecting figures inline.
const imageSectionTitle = "Images (auto-caption)"

// imageCaptionPrefix labels the caption line emitted under each inline
// image.
const imageCaptionPrefix = "**Image:**"

var seeFigureRefRe = regexp.MustCompile(`\(See figure \[([^\]]+)\]:\s*([^)]+)\)`)

// ParseImageTag extracts the src and alt attributes from a single HTML img
// tag. Malformed tags yield empty strings.
func ParseImageTag(tag string) (src, alt string) {
	doc, err := html.Parse(strings.NewReader(tag))
	if err != nil {
		return "", ""
	}
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "img" {
			for _, attr := range n.Attr {
				switch attr.Key {
				case "src":
					src = attr.Val
				case "alt":
					alt = attr.Val
				}
			}
			return true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}
	walk(doc)
	return src, alt
}

type figureRecord struct {
	entry      ImageIndexEntry
	rawCaption string
	alt        string
}

// RewriteImagesWithPlaceholders replaces every resolvable markdown and
// HTML image with a [ImageRef: FIG-x] placeholder, assigns sequential
// figure ids under the document's figure prefix, and appends an appendix
// section listing each figure with its public URL and caption. Images
// whose source is absolute or missing from links are left untouched for
// the normalizer to handle. Returns the rewritten document and the image
// index in document order.
func RewriteImagesWithPlaceholders(md string, links, captions, titles map[string]string, figurePrefix string) (string, []ImageIndexEntry) {
	normalizedLinks := normalizeKeys(links)
	normalizedCaptions := normalizeKeys(captions)
	normalizedTitles := normalizeKeys(titles)

	var figures []figureRecord

	addFigure := func(alt, normalized, newURL string) string {
		figID := fmt.Sprintf("%s-%03d", figurePrefix, len(figures)+1)
		caption := normalizedCaptions[normalized]
		entryCaption := caption
		if entryCaption == "" {
			entryCaption = alt
		}
		if entryCaption == "" {
			entryCaption = figID
		}
		figures = append(figures, figureRecord{
			entry: ImageIndexEntry{
				FigureID:       figID,
				ImagePublicURL: newURL,
				Caption:        entryCaption,
				Title:          normalizedTitles[normalized],
			},
			rawCaption: caption,
			alt:        alt,
		})
		return figID
	}

	resolve := func(rawURL string) (normalized, newURL string, ok bool) {
		clean := cleanImageURL(strings.TrimSpace(rawURL))
		normalized = NormalizeRelPath(clean)
		newURL = normalizedLinks[normalized]
		return normalized, newURL, newURL != "" && IsRelativeURL(clean)
	}

	md = replaceOutsideCode(md, func(line string) string {
		line = mdImageRe.ReplaceAllStringFunc(line, func(m string) string {
			sub := mdImageRe.FindStringSubmatch(m)
			normalized, newURL, ok := resolve(sub[2])
			if !ok {
				return m
			}
			return "[ImageRef: " + addFigure(sub[1], normalized, newURL) + "]"
		})
		return htmlImageRe.ReplaceAllStringFunc(line, func(m string) string {
			src, alt := ParseImageTag(m)
			normalized, newURL, ok := resolve(src)
			if !ok {
				return m
			}
			return "[ImageRef: " + addFigure(alt, normalized, newURL) + "]"
		})
	})

	if len(figures) > 0 {
		md = appendImageSection(md, figures)
	}

	entries := make([]ImageIndexEntry, len(figures))
	for i, fig := range figures {
		entries[i] = fig.entry
	}
	return md, entries
}

// appendImageSection writes the figure appendix: one H3 block per figure
// with the image and, when a real caption exists, a labelled caption line.
func appendImageSection(md string, figures []figureRecord) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(md, "\n"))
	b.WriteString("\n\n## ")
	b.WriteString(imageSectionTitle)
	b.WriteString("\n")
	for _, fig := range figures {
		alt := fig.rawCaption
		if alt == "" {
			alt = fig.alt
		}
		if alt == "" {
			alt = fig.entry.FigureID
		}
		b.WriteString("### ")
		b.WriteString(fig.entry.FigureID)
		b.WriteString("\n![")
		b.WriteString(alt)
		b.WriteString("](")
		b.WriteString(fig.entry.ImagePublicURL)
		b.WriteString(")\n")
		if fig.rawCaption != "" {
			b.WriteString("\nCaption: ")
			b.WriteString(fig.rawCaption)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// RewriteImages rewrites relative image links to their public URLs in
// place, without placeholders or figure ids. Used for markdown that passes
// through without conversion. Returns the rewritten document and an image
// index without figure ids.
func RewriteImages(md string, links, captions map[string]string) (string, []ImageIndexEntry) {
	normalizedLinks := normalizeKeys(links)
	normalizedCaptions := normalizeKeys(captions)

	var entries []ImageIndexEntry

	md = replaceOutsideCode(md, func(line string) string {
		return mdImageRe.ReplaceAllStringFunc(line, func(m string) string {
			sub := mdImageRe.FindStringSubmatch(m)
			alt := sub[1]
			clean := cleanImageURL(strings.TrimSpace(sub[2]))
			normalized := NormalizeRelPath(clean)
			newURL := normalizedLinks[normalized]
			if newURL == "" || !IsRelativeURL(clean) {
				return m
			}
			caption := normalizedCaptions[normalized]
			finalAlt := caption
			if finalAlt == "" {
				finalAlt = alt
			}
			entries = append(entries, ImageIndexEntry{
				ImagePublicURL: newURL,
				Caption:        finalAlt,
			})
			return "![" + finalAlt + "](" + newURL + ")"
		})
	})
	return md, entries
}

// InjectImagesInline replaces figure cross-references with the actual
// inline image and a labelled caption line. References to unknown figures
// or figures without a public URL are dropped rather than left dangling in
// the output. Entries whose figure id was never injected come back as
// unmatched so callers can report them.
func InjectImagesInline(md string, images []ImageIndexEntry) (string, []ImageIndexEntry) {
	byID := make(map[string]ImageIndexEntry, len(images))
	for _, entry := range images {
		if entry.FigureID != "" {
			byID[entry.FigureID] = entry
		}
	}
	used := make(map[string]bool, len(byID))

	unmatched := func() []ImageIndexEntry {
		var out []ImageIndexEntry
		for _, entry := range images {
			if entry.FigureID != "" && !used[entry.FigureID] {
				out = append(out, entry)
			}
		}
		return out
	}

	if !strings.Contains(md, "(See figure [") {
		return md, unmatched()
	}

	md = replaceOutsideCode(md, func(line string) string {
		return seeFigureRefRe.ReplaceAllStringFunc(line, func(m string) string {
			sub := seeFigureRefRe.FindStringSubmatch(m)
			figID := strings.TrimSpace(sub[1])
			caption := strings.TrimSpace(sub[2])

			entry, ok := byID[figID]
			if !ok || entry.ImagePublicURL == "" {
				return ""
			}
			used[figID] = true
			if c := strings.TrimSpace(entry.Caption); c != "" {
				caption = c
			}

			alt := strings.TrimSpace(entry.Title)
			if alt == "" {
				alt = firstRunes(caption, 20)
			}
			if alt == "" {
				alt = figID
			}

			var b strings.Builder
			b.WriteString("![")
			b.WriteString(alt)
			b.WriteString("](")
			b.WriteString(EncodeImageURL(entry.ImagePublicURL))
			b.WriteString(")")
			if caption != "" {
				b.WriteString("\n\n")
				b.WriteString(imageCaptionPrefix)
				b.WriteString(" ")
				b.WriteString(caption)
			}
			return b.String()
		})
	})
	return md, unmatched()
}

// cleanImageURL strips the angle brackets markdown allows around link
// targets.
func cleanImageURL(value string) string {
	if strings.HasPrefix(value, "<") && strings.HasSuffix(value, ">") {
		return value[1 : len(value)-1]
	}
	return value
}

func normalizeKeys(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[NormalizeRelPath(k)] = v
	}
	return out
}
