package scan

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/akowalczyk/ragsync"
)

// CaptionStats counts where each image's caption came from.
type CaptionStats struct {
	Embedded int
	Cache    int
	Vision   int
}

// captionResolver builds per-image caption and title maps for one
// document. Embedded captions from the structured document win; then the
// digest-keyed cache; then the vision model. Vision results are cached by
// image digest and applied to every path alias of the image.
type captionResolver struct {
	captioner ragsync.Captioner
	cache     *ragsync.CaptionCache
	logger    *slog.Logger
	failFast  bool
	maxVision int
}

// Resolve returns caption and title maps keyed by image path alias. When a
// captioner is configured and failFast is set, any captioning failure
// aborts the document so it is retried next run instead of being indexed
// without figures; otherwise the failure is logged and that image stays
// uncaptioned. maxVision caps vision calls per document; zero means
// unlimited.
func (r *captionResolver) Resolve(ctx context.Context, docJSON []byte, imageInfo map[string]ImageInfo) (captions, titles map[string]string, stats CaptionStats, err error) {
	captions = make(map[string]string)
	titles = make(map[string]string)

	r.applyEmbedded(docJSON, captions, &stats)

	if r.captioner == nil {
		return captions, titles, stats, nil
	}

	byDigest := make(map[string][]string)
	for relPath, info := range imageInfo {
		byDigest[info.Digest] = append(byDigest[info.Digest], relPath)
	}
	digests := make([]string, 0, len(byDigest))
	for digest := range byDigest {
		digests = append(digests, digest)
	}
	sort.Strings(digests)

	for _, digest := range digests {
		relPaths := byDigest[digest]
		sort.Strings(relPaths)

		if existing := findExisting(captions, relPaths); existing != "" {
			applyAliases(captions, titles, relPaths, existing, ragsync.FallbackTitle(existing))
			continue
		}

		if entry, ok := r.cache.Lookup(digest); ok && entry.Caption != "" {
			normalized := ragsync.NormalizeCaptionText(entry.Caption)
			if !ragsync.IsBadCaption(normalized) {
				stats.Cache++
				title := entry.Title
				if title == "" {
					title = ragsync.FallbackTitle(normalized)
				}
				applyAliases(captions, titles, relPaths, normalized, title)
				continue
			}
		}

		if r.maxVision > 0 && stats.Vision >= r.maxVision {
			r.logger.Warn("image caption limit reached", "digest", digest, "limit", r.maxVision)
			continue
		}

		info := imageInfo[relPaths[0]]
		caption, title, describeErr := r.describe(ctx, info)
		if describeErr != nil {
			if r.failFast {
				return nil, nil, stats, describeErr
			}
			r.logger.Warn("image captioning failed", "image", info.LocalPath, "error", describeErr)
			continue
		}
		stats.Vision++

		r.cache.Store(digest, ragsync.CaptionEntry{Caption: caption, Title: title})
		applyAliases(captions, titles, relPaths, caption, title)
	}

	return captions, titles, stats, nil
}

func (r *captionResolver) describe(ctx context.Context, info ImageInfo) (caption, title string, err error) {
	data, err := os.ReadFile(info.LocalPath)
	if err != nil {
		return "", "", ragsync.Errorf(ragsync.ECAPTIONING, "read image: %v", err)
	}

	result, err := r.captioner.Describe(ctx, data, mimeForExt(info.Ext))
	if err != nil {
		return "", "", err
	}

	caption = ragsync.NormalizeCaptionText(result.Caption)
	if caption == "" {
		return "", "", ragsync.Errorf(ragsync.ECAPTIONING, "empty caption")
	}
	if ragsync.IsBadCaption(caption) {
		return "", "", ragsync.Errorf(ragsync.ECAPTIONING, "unusable caption: %q", caption)
	}

	title = ragsync.NormalizeCaptionText(result.Title)
	if title == "" || ragsync.IsBadCaption(title) {
		title = ragsync.FallbackTitle(caption)
	}
	return caption, title, nil
}

// documentPayload is the subset of the structured document carrying
// picture captions: free-text elements referenced by pictures, and the
// pictures' own annotations.
type documentPayload struct {
	Texts []struct {
		SelfRef string `json:"self_ref"`
		Text    string `json:"text"`
		Orig    string `json:"orig"`
	} `json:"texts"`
	Pictures []struct {
		Image struct {
			URI string `json:"uri"`
		} `json:"image"`
		Annotations []pictureAnnotation `json:"annotations"`
		Captions    []json.RawMessage   `json:"captions"`
	} `json:"pictures"`
}

type pictureAnnotation struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
}

// applyEmbedded pulls captions already present in the structured document
// into the caption map.
func (r *captionResolver) applyEmbedded(docJSON []byte, captions map[string]string, stats *CaptionStats) {
	if len(docJSON) == 0 {
		return
	}
	var payload documentPayload
	if err := json.Unmarshal(docJSON, &payload); err != nil {
		return
	}

	textLookup := make(map[string]string, len(payload.Texts))
	for _, t := range payload.Texts {
		value := strings.TrimSpace(t.Text)
		if value == "" {
			value = strings.TrimSpace(t.Orig)
		}
		if value != "" && t.SelfRef != "" {
			textLookup[t.SelfRef] = ragsync.NormalizeCaptionText(value)
		}
	}

	for _, pic := range payload.Pictures {
		if pic.Image.URI == "" {
			continue
		}
		caption := captionFromAnnotations(pic.Annotations)
		if caption == "" {
			caption = captionFromRefs(pic.Captions, textLookup)
		}
		if caption == "" {
			continue
		}
		caption = ragsync.NormalizeCaptionText(caption)
		if ragsync.IsBadCaption(caption) {
			continue
		}
		captions[ragsync.NormalizeRelPath(pic.Image.URI)] = caption
		captions[pic.Image.URI] = caption
		stats.Embedded++
	}
}

func captionFromAnnotations(annotations []pictureAnnotation) string {
	for _, ann := range annotations {
		if ann.Kind != "description" {
			continue
		}
		if text := strings.TrimSpace(ann.Text); text != "" {
			return text
		}
	}
	return ""
}

// captionFromRefs joins the texts a picture's caption references. Each ref
// is either a {"$ref": "..."} object or a bare string.
func captionFromRefs(refs []json.RawMessage, textLookup map[string]string) string {
	var pieces []string
	for _, raw := range refs {
		var obj struct {
			Ref string `json:"$ref"`
		}
		refID := ""
		if err := json.Unmarshal(raw, &obj); err == nil && obj.Ref != "" {
			refID = obj.Ref
		} else {
			var s string
			if err := json.Unmarshal(raw, &s); err == nil {
				refID = s
			}
		}
		if refID == "" {
			continue
		}
		if text := strings.TrimSpace(textLookup[refID]); text != "" {
			pieces = append(pieces, text)
		}
	}
	return strings.Join(pieces, " ")
}

func findExisting(captions map[string]string, relPaths []string) string {
	for _, rel := range relPaths {
		if caption, ok := captions[ragsync.NormalizeRelPath(rel)]; ok {
			return caption
		}
		if caption, ok := captions[rel]; ok {
			return caption
		}
	}
	return ""
}

// applyAliases records the caption and title under every path alias,
// keeping any value already present.
func applyAliases(captions, titles map[string]string, relPaths []string, caption, title string) {
	for _, rel := range relPaths {
		normalized := ragsync.NormalizeRelPath(rel)
		if _, ok := captions[normalized]; !ok {
			captions[normalized] = caption
		}
		if _, ok := captions[rel]; !ok {
			captions[rel] = caption
		}
		if title != "" {
			if _, ok := titles[normalized]; !ok {
				titles[normalized] = title
			}
			if _, ok := titles[rel]; !ok {
				titles[rel] = title
			}
		}
	}
}

func mimeForExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".tif", ".tiff":
		return "image/tiff"
	case ".gif":
		return "image/gif"
	case ".bmp":
		return "image/bmp"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
