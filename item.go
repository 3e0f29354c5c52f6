package ragsync

// ConversionType identifies how a file's markdown output was produced.
type ConversionType string

// ConversionType values. Passthrough covers files rendered locally
// (markdown copied as-is, HTML extracted and converted in-process);
// docling covers files sent to the external conversion service.
const (
	ConversionPassthrough ConversionType = "passthrough"
	ConversionDocling     ConversionType = "docling"
	ConversionSkipped     ConversionType = "skipped"
)

// ConversionStatus records the outcome of converting one file. The empty
// string means the item has not been (re)converted yet this run.
type ConversionStatus string

// ConversionStatus values.
const (
	StatusSuccess         ConversionStatus = "success"
	StatusFailure         ConversionStatus = "failure"
	StatusSkippedTooLarge ConversionStatus = "skipped_too_large"
	StatusSkippedDupe     ConversionStatus = "skipped_duplicate_source"
)

// ImageIndexEntry describes one figure extracted from a converted document,
// in document order.
type ImageIndexEntry struct {
	FigureID       string `json:"figure_id"`
	ImagePublicURL string `json:"image_public_url"`
	Caption        string `json:"caption"`
	Title          string `json:"title,omitempty"`
}

// RAGMeta holds retrieval-facing metadata. It is populated only for items
// that are canonical and converted successfully.
type RAGMeta struct {
	FileSource string `json:"file_source,omitempty"`
}

// ScanItem is the per-file processing record, keyed by the file's path
// relative to the input root. Field names match the persisted JSON format.
type ScanItem struct {
	SourceRelPath   string `json:"source_rel_path"`
	SourceAbsPath   string `json:"source_abs_path"`
	SourceExt       string `json:"source_ext"`
	SourceSizeBytes int64  `json:"source_size_bytes"`
	SourceMTime     int64  `json:"source_mtime"`
	SourceDigest    string `json:"source_digest,omitempty"`

	Stage1Canonical        bool   `json:"stage1_canonical"`
	Stage1CanonicalRelPath string `json:"stage1_canonical_rel_path,omitempty"`

	ConversionType   ConversionType   `json:"conversion_type,omitempty"`
	ConversionStatus ConversionStatus `json:"conversion_status,omitempty"`
	ConversionError  string           `json:"conversion_error,omitempty"`

	MDPath      string `json:"md_path,omitempty"`
	MDPublicURL string `json:"md_public_url,omitempty"`
	MDDigest    string `json:"md_digest,omitempty"`

	DoclingJSONPath string `json:"docling_json_path,omitempty"`
	DoclingZipPath  string `json:"docling_zip_path,omitempty"`

	ImageCount int               `json:"image_count"`
	ImageIndex []ImageIndexEntry `json:"image_index"`

	Canonical        bool   `json:"canonical"`
	CanonicalRelPath string `json:"canonical_rel_path,omitempty"`

	RAG RAGMeta `json:"rag"`
}

// NewScanItem returns a ScanItem with identity fields set from the current
// filesystem metadata and all processing fields zeroed.
func NewScanItem(meta FileMeta) *ScanItem {
	return &ScanItem{
		SourceRelPath:   meta.RelPath,
		SourceAbsPath:   meta.AbsPath,
		SourceExt:       meta.Ext,
		SourceSizeBytes: meta.Size,
		SourceMTime:     meta.MTime,
		ImageIndex:      []ImageIndexEntry{},
	}
}

// Clone returns a deep copy of the item.
func (it *ScanItem) Clone() *ScanItem {
	dup := *it
	dup.ImageIndex = make([]ImageIndexEntry, len(it.ImageIndex))
	copy(dup.ImageIndex, it.ImageIndex)
	return &dup
}

// RefreshIdentity overwrites the identity fields from current filesystem
// metadata, preserving all processing fields. Used when carrying a prior
// item forward.
func (it *ScanItem) RefreshIdentity(meta FileMeta) {
	it.SourceRelPath = meta.RelPath
	it.SourceAbsPath = meta.AbsPath
	it.SourceExt = meta.Ext
	it.SourceSizeBytes = meta.Size
	it.SourceMTime = meta.MTime
}

// ResetConversion clears every conversion artifact so the item is processed
// fresh. Identity and dedup fields are untouched.
func (it *ScanItem) ResetConversion() {
	it.ConversionType = ""
	it.ConversionStatus = ""
	it.ConversionError = ""
	it.MDPath = ""
	it.MDPublicURL = ""
	it.MDDigest = ""
	it.DoclingJSONPath = ""
	it.DoclingZipPath = ""
	it.ImageCount = 0
	it.ImageIndex = []ImageIndexEntry{}
	it.RAG = RAGMeta{}
}

// Converted reports whether the item produced markdown this run or a prior
// run.
func (it *ScanItem) Converted() bool {
	return it.ConversionStatus == StatusSuccess
}

// FileMeta is the current filesystem metadata for one source file.
type FileMeta struct {
	RelPath string
	AbsPath string
	Ext     string
	Size    int64
	MTime   int64
}
