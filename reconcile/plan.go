// Package reconcile aligns the remote retrieval index with the local
// retrieval manifest: orphaned remote documents are deleted, and new,
// changed, or failed documents are re-uploaded.
package reconcile

import (
	"sort"

	"github.com/akowalczyk/ragsync"
)

// PlanOptions control which reconciliation actions are allowed.
type PlanOptions struct {
	// DeleteMissing removes remote documents with no local counterpart.
	DeleteMissing bool
	// UpdateOnChange re-uploads documents whose markdown digest differs
	// from what was last uploaded.
	UpdateOnChange bool
	// WaitInflight indicates the caller waits out in-progress ingestion;
	// when false, documents still being ingested are left alone.
	WaitInflight bool
}

// Plan is the set of actions that aligns remote state with the manifest.
type Plan struct {
	// Delete lists remote orphans to remove.
	Delete []ragsync.RemoteDocument
	// Upload lists manifest items to (re-)upload.
	Upload []ragsync.RetrievalItem
	// SkippedInflight counts documents left alone because ingestion was
	// still in progress.
	SkippedInflight int
	// SkippedNoPath counts manifest items without a markdown path.
	SkippedNoPath int
}

// BuildPlan computes the reconciliation plan. Local wins: a remote
// document with no manifest counterpart is an orphan, a failed remote
// document is retried, and a digest mismatch against the last upload
// means the content changed. Output order is deterministic.
func BuildPlan(local map[string]ragsync.RetrievalItem, remote map[string]ragsync.RemoteDocument, state *ragsync.SyncState, opts PlanOptions) *Plan {
	plan := &Plan{}

	for _, source := range sortedKeys(remote) {
		doc := remote[source]
		if _, ok := local[source]; ok {
			continue
		}
		if !opts.DeleteMissing {
			continue
		}
		if ragsync.IsInflightStatus(doc.Status) && !opts.WaitInflight {
			plan.SkippedInflight++
			continue
		}
		plan.Delete = append(plan.Delete, doc)
	}

	for _, source := range sortedKeys(local) {
		item := local[source]
		if item.MDPath == "" {
			plan.SkippedNoPath++
			continue
		}
		doc, exists := remote[source]
		if !exists {
			plan.Upload = append(plan.Upload, item)
			continue
		}
		if ragsync.IsInflightStatus(doc.Status) && !opts.WaitInflight {
			plan.SkippedInflight++
			continue
		}
		if ragsync.IsFailedStatus(doc.Status) {
			plan.Upload = append(plan.Upload, item)
			continue
		}
		if opts.UpdateOnChange && lastUploadedDigest(state, source) != item.MDDigest {
			plan.Upload = append(plan.Upload, item)
		}
	}

	return plan
}

func lastUploadedDigest(state *ragsync.SyncState, source string) string {
	if state == nil {
		return ""
	}
	return state.Entries[source].MDDigest
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// HasSourcePrefix reports whether a remote document's file source belongs
// to this pipeline's namespace.
func HasSourcePrefix(value, prefix string) bool {
	if value == "" {
		return false
	}
	for len(prefix) > 0 && prefix[len(prefix)-1] == '/' {
		prefix = prefix[:len(prefix)-1]
	}
	if prefix == "" {
		return true
	}
	return len(value) >= len(prefix) && value[:len(prefix)] == prefix
}
