package ragsync

// Default state filenames, relative to the output root.
const (
	ScanStateFilename    = "scan_index.json"
	CaptionCacheFilename = "vlm_caption_cache.json"
	SyncStateFilename    = "lightrag_index.json"
)

// scanStateVersion is bumped on incompatible snapshot format changes; a
// version mismatch discards the snapshot and forces a full rescan.
const scanStateVersion = 1

// ScanState is the persisted snapshot of the last scan: one item per
// discovered source file, keyed by normalized relative path.
type ScanState struct {
	Version     int                  `json:"version"`
	GeneratedAt string               `json:"generated_at"`
	RootDir     string               `json:"root_dir"`
	OutputRoot  string               `json:"output_root"`
	Items       map[string]*ScanItem `json:"items"`
}

// NewScanState returns an empty snapshot at the current format version.
func NewScanState(rootDir, outputRoot string) *ScanState {
	return &ScanState{
		Version:    scanStateVersion,
		RootDir:    rootDir,
		OutputRoot: outputRoot,
		Items:      make(map[string]*ScanItem),
	}
}

// Usable reports whether the snapshot can seed an incremental scan.
// A nil snapshot, a version mismatch, or a different root directory means
// the prior state does not apply.
func (s *ScanState) Usable(rootDir string) bool {
	if s == nil || s.Items == nil {
		return false
	}
	return s.Version == scanStateVersion && s.RootDir == rootDir
}

// CaptionEntry is one cached vision caption, keyed by image content digest.
type CaptionEntry struct {
	Caption string `json:"caption"`
	Title   string `json:"title,omitempty"`
}

// CaptionCache is the persisted image caption cache. Meta records the model
// and prompt that produced the entries; when either changes the whole cache
// is invalid, since captions are not comparable across models or prompts.
type CaptionCache struct {
	Meta    CaptionCacheMeta        `json:"meta"`
	Entries map[string]CaptionEntry `json:"entries"`
}

// CaptionCacheMeta identifies the captioner configuration the cache was
// built with.
type CaptionCacheMeta struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// NewCaptionCache returns an empty cache bound to a captioner
// configuration.
func NewCaptionCache(model, prompt string) *CaptionCache {
	return &CaptionCache{
		Meta:    CaptionCacheMeta{Model: model, Prompt: prompt},
		Entries: make(map[string]CaptionEntry),
	}
}

// EnsureMeta invalidates the cache wholesale when the captioner model or
// prompt differs from the one the cache was built with. Returns true when
// existing entries were discarded.
func (c *CaptionCache) EnsureMeta(model, prompt string) bool {
	if c.Entries == nil {
		c.Entries = make(map[string]CaptionEntry)
	}
	if c.Meta.Model == model && c.Meta.Prompt == prompt {
		return false
	}
	c.Meta = CaptionCacheMeta{Model: model, Prompt: prompt}
	c.Entries = make(map[string]CaptionEntry)
	return true
}

// Lookup returns the cached entry for an image digest.
func (c *CaptionCache) Lookup(digest string) (CaptionEntry, bool) {
	entry, ok := c.Entries[digest]
	return entry, ok
}

// Store records a caption for an image digest.
func (c *CaptionCache) Store(digest string, entry CaptionEntry) {
	if c.Entries == nil {
		c.Entries = make(map[string]CaptionEntry)
	}
	c.Entries[digest] = entry
}

// SyncEntry records what was last uploaded to the retrieval index for one
// file source.
type SyncEntry struct {
	MDDigest  string `json:"md_digest"`
	MDPath    string `json:"md_path"`
	UpdatedAt string `json:"updated_at"`
}

// SyncState is the persisted record of the last reconciliation: one entry
// per file source known to have been uploaded.
type SyncState struct {
	GeneratedAt string               `json:"generated_at"`
	Entries     map[string]SyncEntry `json:"entries"`
}

// NewSyncState returns an empty reconciliation record.
func NewSyncState() *SyncState {
	return &SyncState{Entries: make(map[string]SyncEntry)}
}

// Set records the uploaded digest for a file source.
func (s *SyncState) Set(fileSource string, entry SyncEntry) {
	if s.Entries == nil {
		s.Entries = make(map[string]SyncEntry)
	}
	s.Entries[fileSource] = entry
}

// Delete forgets a file source.
func (s *SyncState) Delete(fileSource string) {
	delete(s.Entries, fileSource)
}
