package ragsync

import "sort"

// Default manifest filenames.
const (
	FullManifestFilename      = "manifest.json"
	RetrievalManifestFilename = "rag_manifest.json"
)

// fullManifestVersion is bumped on incompatible manifest format changes.
const fullManifestVersion = 1

// FullManifest is the complete record of a scan: every discovered item with
// its digests, artifact paths, and conversion status, regardless of dedup
// or conversion outcome.
type FullManifest struct {
	Version     int         `json:"version"`
	GeneratedAt string      `json:"generated_at"`
	RootDir     string      `json:"root_dir"`
	OutputRoot  string      `json:"output_root"`
	Items       []*ScanItem `json:"items"`
}

// BuildFullManifest records every scan item, ordered by source path so
// manifests diff cleanly between runs.
func BuildFullManifest(rootDir, outputRoot string, items []*ScanItem) *FullManifest {
	sorted := make([]*ScanItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].SourceRelPath < sorted[j].SourceRelPath
	})
	return &FullManifest{
		Version:    fullManifestVersion,
		RootDir:    rootDir,
		OutputRoot: outputRoot,
		Items:      sorted,
	}
}

// RetrievalItem is one uploadable document in the retrieval manifest.
type RetrievalItem struct {
	FileSource    string `json:"file_source"`
	SourceRelPath string `json:"source_rel_path"`
	MDPath        string `json:"md_path"`
	MDDigest      string `json:"md_digest"`
	MDPublicURL   string `json:"md_public_url,omitempty"`
}

// RetrievalManifest is the desired state handed to reconciliation: the set
// of canonical, successfully converted documents and their content digests.
type RetrievalManifest struct {
	GeneratedAt string          `json:"generated_at"`
	Items       []RetrievalItem `json:"items"`
}

// BuildRetrievalManifest selects the uploadable subset of scan items:
// canonical after both dedup stages, successfully converted, and carrying a
// file-source identifier. Items are ordered by file source so manifests
// diff cleanly between runs.
func BuildRetrievalManifest(items []*ScanItem) *RetrievalManifest {
	m := &RetrievalManifest{}
	for _, it := range items {
		if !it.Canonical || it.ConversionStatus != StatusSuccess {
			continue
		}
		if it.RAG.FileSource == "" {
			continue
		}
		m.Items = append(m.Items, RetrievalItem{
			FileSource:    it.RAG.FileSource,
			SourceRelPath: it.SourceRelPath,
			MDPath:        it.MDPath,
			MDDigest:      it.MDDigest,
			MDPublicURL:   it.MDPublicURL,
		})
	}
	sort.Slice(m.Items, func(i, j int) bool {
		return m.Items[i].FileSource < m.Items[j].FileSource
	})
	return m
}

// ItemsBySource indexes manifest items by file source.
func (m *RetrievalManifest) ItemsBySource() map[string]RetrievalItem {
	out := make(map[string]RetrievalItem, len(m.Items))
	for _, it := range m.Items {
		out[it.FileSource] = it
	}
	return out
}
