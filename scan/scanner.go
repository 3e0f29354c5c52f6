// Package scan implements the incremental scan-and-convert pipeline: file
// discovery, change detection, two-stage dedup, conversion, image
// captioning, normalization, and manifest generation. Files are processed
// sequentially in relative-path order.
package scan

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/akowalczyk/ragsync"
	"github.com/akowalczyk/ragsync/fs"
)

// Scanner runs the scan-and-convert pipeline. All fields are required
// except Captioner, Extractor, and HTMLConverter, which may be nil when the
// corresponding feature is not configured.
type Scanner struct {
	Config        *ragsync.Config
	Converter     ragsync.Converter
	Captioner     ragsync.Captioner
	Extractor     ragsync.Extractor
	HTMLConverter ragsync.HTMLConverter
	States        *fs.StateStore
	Artifacts     *fs.ArtifactWriter
	Logger        *slog.Logger
}

// Result summarizes a completed scan.
type Result struct {
	Items    []*ragsync.ScanItem
	Full     *ragsync.FullManifest
	Manifest *ragsync.RetrievalManifest

	Reused    int
	Processed int
	Failed    int
}

// Changes computes the change classification without converting anything.
func (s *Scanner) Changes(ctx context.Context) (*ragsync.ChangeSet, error) {
	files, err := ListFiles(s.Config.Input)
	if err != nil {
		return nil, err
	}
	prev, hasState := s.loadPrevItems()
	return ragsync.BuildChangeSet(files, prev, hasState), nil
}

// Run executes a full scan: classifies changes, converts what needs
// converting, recomputes dedup globally, and persists the scan snapshot
// and retrieval manifest.
func (s *Scanner) Run(ctx context.Context) (*Result, error) {
	start := time.Now()

	files, err := ListFiles(s.Config.Input)
	if err != nil {
		return nil, err
	}
	prev, hasState := s.loadPrevItems()
	changes := ragsync.BuildChangeSet(files, prev, hasState)
	if !changes.HasState {
		s.Logger.Info("no usable scan state; treating all files as added")
	}
	s.Logger.Info("scan start",
		"total", len(files),
		"added", len(changes.Added),
		"modified", len(changes.Modified),
		"removed", len(changes.Removed),
		"unchanged", len(changes.Unchanged),
	)

	result := &Result{}
	items, err := s.buildItems(files, prev, result)
	if err != nil {
		return nil, err
	}

	ragsync.ResetStage1(items)
	ragsync.ApplyStage1Dedup(items)
	ragsync.PromoteStage1Canonicals(items)

	model, prompt := s.captionerIdentity()
	cache := s.States.LoadCaptionCache(model, prompt)

	if err := s.convertPending(ctx, items, cache, result); err != nil {
		return nil, err
	}

	if s.Captioner != nil {
		if err := s.States.SaveCaptionCache(cache); err != nil {
			return nil, err
		}
	}

	ragsync.ResetStage2(items)
	ragsync.ApplyStage2Dedup(items)
	ragsync.AssignFileSources(items, s.Config.Index.FileSourcePrefix)

	full := ragsync.BuildFullManifest(s.Config.Input.RootDir, s.Config.Output.RootDir, items)
	if err := s.Artifacts.WriteFullManifest(s.Config.Manifest.FullPath, full); err != nil {
		return nil, err
	}

	manifest := ragsync.BuildRetrievalManifest(items)
	if err := s.Artifacts.WriteRetrievalManifest(s.Config.Manifest.RAGPath, manifest); err != nil {
		return nil, err
	}

	state := ragsync.NewScanState(s.Config.Input.RootDir, s.Config.Output.RootDir)
	for _, item := range items {
		state.Items[item.SourceRelPath] = item
	}
	if err := s.States.SaveScanState(state); err != nil {
		return nil, err
	}

	result.Items = items
	result.Full = full
	result.Manifest = manifest
	s.logSummary(items, result, time.Since(start))
	return result, nil
}

// loadPrevItems returns the prior snapshot's items. A snapshot recorded
// against a different input root is discarded.
func (s *Scanner) loadPrevItems() (map[string]*ragsync.ScanItem, bool) {
	state := s.States.LoadScanState()
	if state == nil {
		return map[string]*ragsync.ScanItem{}, false
	}
	if !state.Usable(s.Config.Input.RootDir) {
		s.Logger.Warn("scan state root mismatch; ignoring previous scan state")
		return map[string]*ragsync.ScanItem{}, false
	}
	return state.Items, true
}

// buildItems carries prior items forward where reusable and prepares fresh
// ones otherwise, computing source digests as needed.
func (s *Scanner) buildItems(files []ragsync.FileMeta, prev map[string]*ragsync.ScanItem, result *Result) ([]*ragsync.ScanItem, error) {
	maxBytes := int64(s.Config.Input.MaxFileSizeMB) * 1024 * 1024
	items := make([]*ragsync.ScanItem, 0, len(files))

	for _, meta := range files {
		prior := prev[meta.RelPath]

		var item *ragsync.ScanItem
		if prior != nil {
			item = prior.Clone()
			changed := prior.SourceSizeBytes != meta.Size || prior.SourceMTime != meta.MTime
			item.RefreshIdentity(meta)
			if changed {
				item.SourceDigest = ""
			}
		} else {
			item = ragsync.NewScanItem(meta)
		}

		if ragsync.ShouldReuse(prior, meta, fs.FileExists) {
			result.Reused++
		} else {
			item.ResetConversion()
			if meta.Size > maxBytes {
				item.ConversionType = ragsync.ConversionSkipped
				item.ConversionStatus = ragsync.StatusSkippedTooLarge
				s.Logger.Warn("skipping large file", "file", meta.RelPath, "size", meta.Size)
				items = append(items, item)
				continue
			}
		}

		if item.SourceDigest == "" && item.ConversionStatus != ragsync.StatusSkippedTooLarge {
			digest, err := ragsync.DigestFile(meta.AbsPath)
			if err != nil {
				return nil, err
			}
			item.SourceDigest = digest
		}
		items = append(items, item)
	}
	return items, nil
}

// convertPending converts every stage-1 canonical item without a carried
// forward conversion result.
func (s *Scanner) convertPending(ctx context.Context, items []*ragsync.ScanItem, cache *ragsync.CaptionCache, result *Result) error {
	total := 0
	for _, item := range items {
		if item.ConversionStatus == "" && item.Stage1Canonical {
			total++
		}
	}

	for _, item := range items {
		if item.ConversionStatus != "" || !item.Stage1Canonical {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		result.Processed++

		passthrough := s.isPassthrough(item.SourceExt)
		convType := ragsync.ConversionDocling
		if passthrough {
			convType = ragsync.ConversionPassthrough
		}
		s.Logger.Info("converting",
			"n", result.Processed, "total", total,
			"type", convType, "file", item.SourceRelPath,
		)

		begin := time.Now()
		var err error
		if passthrough {
			s.processPassthrough(ctx, item)
		} else {
			err = s.processDocling(ctx, item, cache)
		}
		if err != nil {
			return err
		}

		status := item.ConversionStatus
		if status == ragsync.StatusSuccess {
			s.Logger.Info("converted",
				"n", result.Processed, "total", total,
				"status", status, "duration", time.Since(begin), "file", item.SourceRelPath,
			)
		} else {
			result.Failed++
			s.Logger.Warn("conversion failed",
				"n", result.Processed, "total", total,
				"status", status, "err", item.ConversionError, "file", item.SourceRelPath,
			)
		}
	}
	return nil
}

func (s *Scanner) isPassthrough(ext string) bool {
	for _, candidate := range s.Config.Input.PassthroughExt {
		if ext == candidate {
			return true
		}
	}
	return false
}

// processPassthrough renders a file locally: markdown is taken as-is, HTML
// goes through content extraction and markdown conversion. The result
// flows through the same normalization as converted documents.
func (s *Scanner) processPassthrough(ctx context.Context, item *ragsync.ScanItem) {
	item.ConversionType = ragsync.ConversionPassthrough

	data, err := os.ReadFile(item.SourceAbsPath)
	if err != nil {
		s.fail(item, err.Error())
		return
	}

	var md string
	switch item.SourceExt {
	case ".html", ".htm":
		if s.Extractor == nil || s.HTMLConverter == nil {
			s.fail(item, "html passthrough not configured")
			return
		}
		content, err := s.Extractor.Extract(ctx, data)
		if err != nil {
			s.fail(item, err.Error())
			return
		}
		md, err = s.HTMLConverter.ConvertHTML(content)
		if err != nil {
			s.fail(item, err.Error())
			return
		}
	default:
		md = string(data)
	}

	item.ImageIndex = []ragsync.ImageIndexEntry{}
	md, _ = ragsync.NormalizeMarkdown(md, nil)

	path, publicURL, err := s.Artifacts.WriteMarkdown(item.SourceRelPath, md)
	if err != nil {
		s.fail(item, err.Error())
		return
	}
	item.ConversionStatus = ragsync.StatusSuccess
	item.MDPath = path
	item.MDDigest = ragsync.DigestString(md)
	item.MDPublicURL = publicURL
}

// processDocling converts a file through the conversion service. The
// returned error is run-fatal (missing OCR language packs when configured
// to abort, or context cancellation); per-document failures are recorded
// on the item.
func (s *Scanner) processDocling(ctx context.Context, item *ragsync.ScanItem, cache *ragsync.CaptionCache) error {
	item.ConversionType = ragsync.ConversionDocling

	data, err := os.ReadFile(item.SourceAbsPath)
	if err != nil {
		s.fail(item, err.Error())
		return nil
	}

	result, err := s.Converter.Convert(ctx, ragsync.ConvertRequest{
		Filename:      filepath.Base(item.SourceAbsPath),
		Data:          data,
		Format:        ragsync.FormatArchive,
		ExtractImages: true,
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.fail(item, err.Error())
		return nil
	}

	reason, fatal := s.triageFailure(result)
	if fatal != nil {
		return fatal
	}
	if reason != "" {
		s.fail(item, reason)
		return nil
	}

	md, imageIndex, err := s.extractOutput(ctx, item, result, cache)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if ragsync.ErrorCode(err) == ragsync.ECAPTIONING || ragsync.ErrorCode(err) == ragsync.EUNAVAILABLE {
			s.fail(item, "vlm_error: "+err.Error())
			return nil
		}
		s.fail(item, err.Error())
		return nil
	}
	if md == "" {
		s.fail(item, "missing markdown content")
		return nil
	}

	md, unmatched := ragsync.NormalizeMarkdown(md, imageIndex)
	for _, entry := range unmatched {
		s.Logger.Warn("figure not placed in output",
			"file", item.SourceRelPath, "figure_id", entry.FigureID,
		)
	}
	path, publicURL, err := s.Artifacts.WriteMarkdown(item.SourceRelPath, md)
	if err != nil {
		s.fail(item, err.Error())
		return nil
	}

	item.ConversionStatus = ragsync.StatusSuccess
	item.MDPath = path
	item.MDDigest = ragsync.DigestString(md)
	item.MDPublicURL = publicURL
	if s.includeImageIndex() {
		item.ImageIndex = imageIndex
		item.ImageCount = len(imageIndex)
	} else {
		item.ImageIndex = []ragsync.ImageIndexEntry{}
		item.ImageCount = 0
	}
	return nil
}

// triageFailure inspects a conversion result for failure. OCR diagnostics
// known to be per-page noise are ignored; missing OCR language packs abort
// the whole run when configured, since they silently degrade every
// document.
func (s *Scanner) triageFailure(result *ragsync.ConvertResult) (reason string, fatal error) {
	if result.Status != "" && result.Status != "success" {
		return "conversion status=" + result.Status, nil
	}

	var fatalErrs []string
	for _, msg := range result.Errors {
		if msg == "" || ragsync.IsNonFatalOCRError(msg) {
			continue
		}
		fatalErrs = append(fatalErrs, msg)
	}
	if len(fatalErrs) == 0 {
		if len(result.Errors) > 0 {
			s.Logger.Warn("ignoring OCR warnings", "errors", strings.Join(result.Errors, "; "))
		}
		return "", nil
	}

	if *s.Config.Runtime.FailOnMissingOCRLang {
		for _, msg := range fatalErrs {
			if ragsync.IsMissingOCRLanguageError(msg) {
				return "", ragsync.Errorf(ragsync.EINTERNAL, "missing OCR language packs: %s", msg)
			}
		}
	}
	return "conversion error: " + strings.Join(fatalErrs, "; "), nil
}

// extractOutput turns a successful conversion result into markdown and an
// image index, persisting side artifacts (document JSON, archive, images).
func (s *Scanner) extractOutput(ctx context.Context, item *ragsync.ScanItem, result *ragsync.ConvertResult, cache *ragsync.CaptionCache) (string, []ragsync.ImageIndexEntry, error) {
	switch out := result.Output.(type) {
	case ragsync.ArchiveOutput:
		return s.extractFromArchive(ctx, item, out.Zip, cache)

	case ragsync.InlineOutput:
		if len(out.Document) > 0 {
			jsonPath, err := s.Artifacts.WriteDocJSON(item.SourceRelPath, out.Document)
			if err != nil {
				return "", nil, err
			}
			item.DoclingJSONPath = jsonPath
		}
		return out.Markdown, nil, nil

	default:
		return "", nil, ragsync.Errorf(ragsync.ECONVERSION, "conversion produced no output")
	}
}

func (s *Scanner) extractFromArchive(ctx context.Context, item *ragsync.ScanItem, zipBytes []byte, cache *ragsync.CaptionCache) (string, []ragsync.ImageIndexEntry, error) {
	if s.Config.Output.KeepZip {
		zipPath, err := s.Artifacts.WriteZip(item.SourceRelPath, zipBytes)
		if err != nil {
			return "", nil, err
		}
		item.DoclingZipPath = zipPath
	}

	docRoot := strings.TrimSuffix(item.SourceRelPath, item.SourceExt)
	content, err := extractArchive(zipBytes, docRoot, s.Artifacts)
	if err != nil {
		return "", nil, err
	}

	if len(content.document) > 0 {
		jsonPath, err := s.Artifacts.WriteDocJSON(item.SourceRelPath, content.document)
		if err != nil {
			return "", nil, err
		}
		item.DoclingJSONPath = jsonPath
	}
	if content.markdown == "" {
		return "", nil, nil
	}

	resolver := &captionResolver{
		captioner: s.Captioner,
		cache:     cache,
		logger:    s.Logger,
		failFast:  s.Config.Captioning.FailFastOnVLMError(),
		maxVision: s.Config.Captioning.MaxImagesPerDoc,
	}
	captions, titles, stats, err := resolver.Resolve(ctx, content.document, content.imageInfo)
	if err != nil {
		return "", nil, err
	}
	if s.Captioner != nil || stats.Embedded > 0 {
		s.Logger.Info("caption sources",
			"file", item.SourceRelPath,
			"embedded", stats.Embedded, "cache", stats.Cache, "vision", stats.Vision,
		)
	}

	md, imageIndex := ragsync.RewriteImagesWithPlaceholders(
		content.markdown,
		content.links,
		captions,
		titles,
		ragsync.FigurePrefix(item.SourceRelPath),
	)
	return md, imageIndex, nil
}

func (s *Scanner) includeImageIndex() bool {
	include := s.Config.Manifest.IncludeImageIndex
	return include == nil || *include
}

func (s *Scanner) fail(item *ragsync.ScanItem, reason string) {
	item.ConversionStatus = ragsync.StatusFailure
	item.ConversionError = reason
}

func (s *Scanner) captionerIdentity() (model, prompt string) {
	if s.Captioner == nil {
		return "", ""
	}
	return s.Captioner.Model(), s.Captioner.Prompt()
}

func (s *Scanner) logSummary(items []*ragsync.ScanItem, result *Result, elapsed time.Duration) {
	skippedDupes, skippedLarge := 0, 0
	for _, item := range items {
		switch item.ConversionStatus {
		case ragsync.StatusSkippedDupe:
			skippedDupes++
		case ragsync.StatusSkippedTooLarge:
			skippedLarge++
		}
	}
	s.Logger.Info("scan done",
		"processed", result.Processed,
		"reused", result.Reused,
		"failed", result.Failed,
		"skipped_duplicates", skippedDupes,
		"skipped_large", skippedLarge,
		"elapsed", elapsed,
	)
}
