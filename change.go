package ragsync

import "sort"

// ChangeSet classifies the current file listing against the prior scan
// snapshot. The four path lists are disjoint. HasState is false when no
// usable snapshot existed, in which case every file is added by definition.
type ChangeSet struct {
	Added     []string
	Modified  []string
	Removed   []string
	Unchanged []string
	HasState  bool
}

// BuildChangeSet compares the current file listing against the items of the
// prior snapshot. A file is unchanged only when both size and mtime match
// its prior record.
func BuildChangeSet(files []FileMeta, prev map[string]*ScanItem, hasState bool) *ChangeSet {
	cs := &ChangeSet{HasState: hasState}
	current := make(map[string]struct{}, len(files))

	for _, meta := range files {
		current[meta.RelPath] = struct{}{}
		prior, ok := prev[meta.RelPath]
		switch {
		case !ok:
			cs.Added = append(cs.Added, meta.RelPath)
		case prior.SourceSizeBytes == meta.Size && prior.SourceMTime == meta.MTime:
			cs.Unchanged = append(cs.Unchanged, meta.RelPath)
		default:
			cs.Modified = append(cs.Modified, meta.RelPath)
		}
	}

	for relPath := range prev {
		if _, ok := current[relPath]; !ok {
			cs.Removed = append(cs.Removed, relPath)
		}
	}
	sort.Strings(cs.Removed)

	return cs
}

// ShouldReuse reports whether a prior item's conversion can be carried
// forward unchanged: the file is byte-stable (size and mtime match), the
// prior conversion succeeded, and its markdown output still exists on disk.
// Dedup election is never reused; it is recomputed globally every run.
func ShouldReuse(prior *ScanItem, meta FileMeta, fileExists func(string) bool) bool {
	if prior == nil {
		return false
	}
	if prior.SourceSizeBytes != meta.Size || prior.SourceMTime != meta.MTime {
		return false
	}
	if prior.ConversionStatus != StatusSuccess {
		return false
	}
	if prior.MDPath == "" || !fileExists(prior.MDPath) {
		return false
	}
	return true
}
