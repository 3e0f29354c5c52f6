package ragsync

import "sort"

// ChooseCanonical elects the canonical member of a duplicate group: the
// shortest relative path, ties broken lexicographically. The choice is
// deterministic so repeated runs over the same corpus agree.
func ChooseCanonical(paths []string) string {
	if len(paths) == 0 {
		return ""
	}
	sorted := make([]string, len(paths))
	copy(sorted, paths)
	sort.Slice(sorted, func(i, j int) bool {
		if len(sorted[i]) != len(sorted[j]) {
			return len(sorted[i]) < len(sorted[j])
		}
		return sorted[i] < sorted[j]
	})
	return sorted[0]
}

// ResetStage1 clears stage-1 election results on every item. Dedup is always
// recomputed over the full item set; a single new duplicate can change which
// member of an existing group is canonical.
func ResetStage1(items []*ScanItem) {
	for _, it := range items {
		it.Stage1Canonical = false
		it.Stage1CanonicalRelPath = ""
	}
}

// ResetStage2 clears stage-2 election results on every item.
func ResetStage2(items []*ScanItem) {
	for _, it := range items {
		it.Canonical = false
		it.CanonicalRelPath = ""
	}
}

// ApplyStage1Dedup groups items by source content digest and elects one
// canonical member per group. Non-canonical members are marked as duplicate
// sources and excluded from conversion. Items without a digest (for example
// skipped oversized files) are excluded from grouping.
func ApplyStage1Dedup(items []*ScanItem) {
	groups := make(map[string][]*ScanItem)
	for _, it := range items {
		if it.SourceDigest == "" {
			continue
		}
		groups[it.SourceDigest] = append(groups[it.SourceDigest], it)
	}

	for _, group := range groups {
		paths := make([]string, len(group))
		for i, it := range group {
			paths[i] = it.SourceRelPath
		}
		canonical := ChooseCanonical(paths)
		for _, it := range group {
			it.Stage1CanonicalRelPath = canonical
			it.Stage1Canonical = it.SourceRelPath == canonical
			if !it.Stage1Canonical {
				it.ConversionType = ConversionSkipped
				it.ConversionStatus = StatusSkippedDupe
			}
		}
	}
}

// PromoteStage1Canonicals resets conversion fields on items that were
// previously skipped as duplicate sources but won this run's stage-1
// election, so they are processed fresh.
func PromoteStage1Canonicals(items []*ScanItem) {
	for _, it := range items {
		if it.Stage1Canonical && it.ConversionStatus == StatusSkippedDupe {
			it.ResetConversion()
		}
	}
}

// ApplyStage2Dedup groups successfully converted items by markdown digest
// and elects one canonical member per group by the same shortest-path rule.
// Items with no stage-2 group of their own (stage-1 duplicates never
// converted) inherit their canonical reference transitively through their
// stage-1 canonical.
func ApplyStage2Dedup(items []*ScanItem) {
	groups := make(map[string][]*ScanItem)
	for _, it := range items {
		if it.ConversionStatus != StatusSuccess || it.MDDigest == "" {
			continue
		}
		groups[it.MDDigest] = append(groups[it.MDDigest], it)
	}

	for _, group := range groups {
		paths := make([]string, len(group))
		for i, it := range group {
			paths[i] = it.SourceRelPath
		}
		canonical := ChooseCanonical(paths)
		for _, it := range group {
			it.Canonical = it.SourceRelPath == canonical
			it.CanonicalRelPath = canonical
		}
	}

	relToCanonical := make(map[string]string, len(items))
	for _, it := range items {
		relToCanonical[it.SourceRelPath] = it.CanonicalRelPath
	}
	for _, it := range items {
		if it.CanonicalRelPath != "" {
			continue
		}
		stage1Ref := it.Stage1CanonicalRelPath
		if stage1Ref == "" {
			continue
		}
		if ref := relToCanonical[stage1Ref]; ref != "" {
			it.CanonicalRelPath = ref
		} else {
			it.CanonicalRelPath = stage1Ref
		}
	}
}

// AssignFileSources attaches the retrieval file-source identifier to every
// canonical, successfully converted item. The identifier is derived
// deterministically from the relative path so local manifest items and
// remote index documents share a stable join key.
func AssignFileSources(items []*ScanItem, prefix string) {
	for _, it := range items {
		if !it.Canonical || it.ConversionStatus != StatusSuccess {
			continue
		}
		it.RAG = RAGMeta{FileSource: BuildFileSource(prefix, it.SourceRelPath)}
	}
}

// BuildFileSource joins the configured prefix with a normalized relative
// path to produce the file-source identifier.
func BuildFileSource(prefix, relPath string) string {
	prefix = trimTrailingSlash(prefix)
	relPath = NormalizeRelPath(relPath)
	if prefix == "" {
		return relPath
	}
	return prefix + "/" + relPath
}

func trimTrailingSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}
