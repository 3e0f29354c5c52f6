package ragsync

import (
	"path/filepath"
	"strings"
)

// Config is the full application configuration. Zero values are filled in
// by ApplyDefaults; Validate rejects configurations the pipeline cannot run
// with.
type Config struct {
	Input      InputConfig      `yaml:"input"`
	Converter  ConverterConfig  `yaml:"docling"`
	Output     OutputConfig     `yaml:"output"`
	Manifest   ManifestConfig   `yaml:"manifest"`
	Index      IndexConfig      `yaml:"lightrag"`
	Runtime    RuntimeConfig    `yaml:"runtime"`
	Captioning CaptioningConfig `yaml:"captioning"`
}

// InputConfig describes the source tree to scan.
type InputConfig struct {
	RootDir        string   `yaml:"root_dir"`
	IncludeExt     []string `yaml:"include_ext"`
	PassthroughExt []string `yaml:"passthrough_ext"`
	ExcludeGlobs   []string `yaml:"exclude_globs"`
	FollowSymlinks bool     `yaml:"follow_symlinks"`
	MaxFileSizeMB  int      `yaml:"max_file_size_mb"`
}

// ConverterConfig describes the document conversion service.
type ConverterConfig struct {
	BaseURL              string  `yaml:"base_url"`
	UseAsync             bool    `yaml:"use_async"`
	AsyncPollIntervalSec int     `yaml:"async_poll_interval_sec"`
	AsyncTimeoutSec      float64 `yaml:"async_timeout_sec"`
	TimeoutSec           int     `yaml:"timeout_sec"`
	OCRLanguages         []string `yaml:"ocr_lang"`
	ImagesScale          float64 `yaml:"images_scale"`
}

// OutputConfig describes where generated artifacts land and how they are
// addressed publicly.
type OutputConfig struct {
	RootDir          string `yaml:"root_dir"`
	MarkdownDir      string `yaml:"markdown_dir"`
	DocJSONDir       string `yaml:"docling_json_dir"`
	DocZipDir        string `yaml:"docling_zip_dir"`
	ImagesDir        string `yaml:"images_dir"`
	KeepZip          bool   `yaml:"keep_zip"`
	PublicBaseURL    string `yaml:"public_base_url"`
	PublicPathPrefix string `yaml:"public_path_prefix"`
}

// ManifestConfig describes manifest output locations.
type ManifestConfig struct {
	FullPath          string `yaml:"full_path"`
	RAGPath           string `yaml:"rag_path"`
	IncludeImageIndex *bool  `yaml:"include_image_index"`
}

// IndexConfig describes the retrieval index service and reconciliation
// policy.
type IndexConfig struct {
	BaseURL          string `yaml:"base_url"`
	APIKey           string `yaml:"api_key"`
	BatchSize        int    `yaml:"batch_size"`
	ListPageSize     int    `yaml:"list_page_size"`
	FileSourcePrefix string `yaml:"file_source_prefix"`
	DeleteMissing    *bool  `yaml:"delete_missing"`
	UpdateOnChange   *bool  `yaml:"update_on_change"`
	WaitInflight     bool   `yaml:"wait_inflight"`
	InflightPollSec  int    `yaml:"inflight_poll_sec"`
	InflightWaitSec  int    `yaml:"inflight_wait_sec"`
	DeleteLLMCache   bool   `yaml:"delete_llm_cache"`
	DeleteFile       bool   `yaml:"delete_file"`
}

// RuntimeConfig holds cross-cutting run behavior.
type RuntimeConfig struct {
	DryRun               bool   `yaml:"dry_run"`
	LogLevel             string `yaml:"log_level"`
	StateDir             string `yaml:"state_dir"`
	FailOnMissingOCRLang *bool  `yaml:"fail_on_missing_ocr_lang"`
}

// Captioning error policies. Skip-document fails the whole document when
// the vision model cannot caption an image; ignore logs the failure and
// leaves that image uncaptioned.
const (
	VLMErrorSkipDocument = "skip_document"
	VLMErrorIgnore       = "ignore"
)

// CaptioningConfig describes the vision captioning model. Captioning is
// enabled when a model is configured. MaxImagesPerDoc caps vision calls
// per document; zero means unlimited.
type CaptioningConfig struct {
	Model             string `yaml:"model"`
	APIKey            string `yaml:"api_key"`
	Prompt            string `yaml:"prompt"`
	TitlePrompt       string `yaml:"title_prompt"`
	TimeoutSec        int    `yaml:"timeout_sec"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
	MaxImagesPerDoc   int    `yaml:"max_images_per_doc"`
	OnVLMError        string `yaml:"on_vlm_error"`
}

// Enabled reports whether vision captioning is configured.
func (c CaptioningConfig) Enabled() bool {
	return strings.TrimSpace(c.Model) != ""
}

// FailFastOnVLMError reports whether a captioning failure fails the whole
// document rather than leaving the image uncaptioned.
func (c CaptioningConfig) FailFastOnVLMError() bool {
	return c.OnVLMError != VLMErrorIgnore
}

// DefaultCaptionPrompt is used when no prompt is configured.
const DefaultCaptionPrompt = "Describe this image in a few sentences."

// ApplyDefaults fills unset fields with their defaults. It is idempotent.
func (c *Config) ApplyDefaults() {
	if c.Input.MaxFileSizeMB == 0 {
		c.Input.MaxFileSizeMB = 500
	}
	c.Input.IncludeExt = NormalizeExts(c.Input.IncludeExt)
	c.Input.PassthroughExt = NormalizeExts(c.Input.PassthroughExt)

	if c.Converter.AsyncPollIntervalSec == 0 {
		c.Converter.AsyncPollIntervalSec = 5
	}
	if c.Converter.AsyncTimeoutSec == 0 {
		c.Converter.AsyncTimeoutSec = 3600
	}
	if c.Converter.TimeoutSec == 0 {
		c.Converter.TimeoutSec = 600
	}
	if c.Converter.ImagesScale == 0 {
		c.Converter.ImagesScale = 2.0
	}

	if c.Output.RootDir == "" {
		c.Output.RootDir = "data"
	}
	if c.Output.MarkdownDir == "" {
		c.Output.MarkdownDir = filepath.Join(c.Output.RootDir, "markdown")
	}
	if c.Output.DocJSONDir == "" {
		c.Output.DocJSONDir = filepath.Join(c.Output.RootDir, "docling", "json")
	}
	if c.Output.DocZipDir == "" {
		c.Output.DocZipDir = filepath.Join(c.Output.RootDir, "docling", "zip")
	}
	if c.Output.ImagesDir == "" {
		c.Output.ImagesDir = filepath.Join(c.Output.RootDir, "docling", "images")
	}

	if c.Manifest.FullPath == "" {
		c.Manifest.FullPath = filepath.Join("manifests", FullManifestFilename)
	}
	if c.Manifest.RAGPath == "" {
		c.Manifest.RAGPath = filepath.Join("manifests", RetrievalManifestFilename)
	}
	if c.Manifest.IncludeImageIndex == nil {
		c.Manifest.IncludeImageIndex = boolPtr(true)
	}

	if c.Index.BatchSize == 0 {
		c.Index.BatchSize = 20
	}
	if c.Index.ListPageSize == 0 {
		c.Index.ListPageSize = 200
	}
	if c.Index.FileSourcePrefix == "" {
		c.Index.FileSourcePrefix = "ragsync"
	}
	if c.Index.DeleteMissing == nil {
		c.Index.DeleteMissing = boolPtr(true)
	}
	if c.Index.UpdateOnChange == nil {
		c.Index.UpdateOnChange = boolPtr(true)
	}
	if c.Index.InflightPollSec == 0 {
		c.Index.InflightPollSec = 5
	}
	if c.Index.InflightWaitSec == 0 {
		c.Index.InflightWaitSec = 600
	}

	if c.Runtime.LogLevel == "" {
		c.Runtime.LogLevel = "info"
	}
	if c.Runtime.StateDir == "" {
		c.Runtime.StateDir = ".state"
	}
	if c.Runtime.FailOnMissingOCRLang == nil {
		c.Runtime.FailOnMissingOCRLang = boolPtr(true)
	}

	if c.Captioning.Prompt == "" {
		c.Captioning.Prompt = DefaultCaptionPrompt
	}
	if c.Captioning.TimeoutSec == 0 {
		c.Captioning.TimeoutSec = 30
	}
	if c.Captioning.OnVLMError == "" {
		c.Captioning.OnVLMError = VLMErrorSkipDocument
	}
}

// Validate rejects configurations the pipeline cannot run with. Scan-only
// commands call this; reconciliation additionally calls ValidateIndex.
func (c *Config) Validate() error {
	if c.Input.RootDir == "" {
		return Errorf(EINVALID, "input.root_dir is required")
	}
	if c.Converter.BaseURL == "" {
		return Errorf(EINVALID, "docling.base_url is required")
	}
	if err := validateNotNested(c.Input.RootDir, c.Output.RootDir); err != nil {
		return err
	}
	switch c.Captioning.OnVLMError {
	case "", VLMErrorSkipDocument, VLMErrorIgnore:
	default:
		return Errorf(EINVALID, "captioning.on_vlm_error must be %q or %q", VLMErrorSkipDocument, VLMErrorIgnore)
	}
	return nil
}

// ValidateIndex rejects configurations that cannot reach the retrieval
// index.
func (c *Config) ValidateIndex() error {
	if c.Index.BaseURL == "" {
		return Errorf(EINVALID, "lightrag.base_url is required")
	}
	if c.Index.APIKey == "" {
		return Errorf(EINVALID, "lightrag.api_key is required")
	}
	return nil
}

// validateNotNested rejects input/output roots where one contains the
// other. Scanning generated outputs would feed the pipeline its own
// artifacts.
func validateNotNested(inputRoot, outputRoot string) error {
	in, err := filepath.Abs(inputRoot)
	if err != nil {
		return Errorf(EINVALID, "input.root_dir: %v", err)
	}
	out, err := filepath.Abs(outputRoot)
	if err != nil {
		return Errorf(EINVALID, "output.root_dir: %v", err)
	}
	if isSubpath(out, in) || isSubpath(in, out) {
		return Errorf(EINVALID, "input.root_dir and output.root_dir must not be nested")
	}
	return nil
}

func isSubpath(path, parent string) bool {
	rel, err := filepath.Rel(parent, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// NormalizeExts lowercases extensions and ensures each carries a leading
// dot. Empty entries are dropped.
func NormalizeExts(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	return out
}

func boolPtr(v bool) *bool { return &v }
