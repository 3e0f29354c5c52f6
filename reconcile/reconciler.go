package reconcile

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/akowalczyk/ragsync"
	"github.com/akowalczyk/ragsync/fs"
)

// Reconciler executes reconciliation plans against the retrieval index.
type Reconciler struct {
	Config *ragsync.Config
	Index  ragsync.Index
	States *fs.StateStore
	Logger *slog.Logger
}

// Summary reports what a reconciliation run did.
type Summary struct {
	Deleted         int
	Uploaded        int
	SkippedInflight int
	TotalLocal      int
	TotalRemote     int
	DryRun          bool
}

// Run reconciles the retrieval index against the manifest. In dry-run mode
// the plan is logged but nothing is executed and no state is written.
func (r *Reconciler) Run(ctx context.Context, manifest *ragsync.RetrievalManifest) (*Summary, error) {
	cfg := r.Config.Index
	local := manifest.ItemsBySource()
	state := r.States.LoadSyncState()

	r.Logger.Info("sync start",
		"local", len(local),
		"delete_missing", *cfg.DeleteMissing,
		"update_on_change", *cfg.UpdateOnChange,
		"wait_inflight", cfg.WaitInflight,
	)

	if cfg.WaitInflight {
		if err := r.waitForPipelineIdle(ctx); err != nil {
			return nil, err
		}
	}

	docs, err := r.Index.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	remote := make(map[string]ragsync.RemoteDocument)
	for _, doc := range docs {
		if HasSourcePrefix(doc.FileSource, cfg.FileSourcePrefix) {
			remote[doc.FileSource] = doc
		}
	}
	r.Logger.Info("sync remote", "total", len(remote))

	plan := BuildPlan(local, remote, state, PlanOptions{
		DeleteMissing:  *cfg.DeleteMissing,
		UpdateOnChange: *cfg.UpdateOnChange,
		WaitInflight:   cfg.WaitInflight,
	})
	r.Logger.Info("sync plan",
		"delete", len(plan.Delete),
		"upload", len(plan.Upload),
		"skipped_inflight", plan.SkippedInflight,
	)

	summary := &Summary{
		SkippedInflight: plan.SkippedInflight,
		TotalLocal:      len(local),
		TotalRemote:     len(remote),
		DryRun:          r.Config.Runtime.DryRun,
	}

	if r.Config.Runtime.DryRun {
		r.Logger.Info("dry run; no changes applied",
			"would_delete", len(plan.Delete),
			"would_upload", len(plan.Upload),
		)
		return summary, nil
	}

	deleted, err := r.deleteDocs(ctx, plan.Delete)
	if err != nil {
		return nil, err
	}
	summary.Deleted += deleted

	// Stale versions are removed before re-upload so the index never
	// holds two generations of the same document.
	var reuploadDocs []ragsync.RemoteDocument
	for _, item := range plan.Upload {
		if doc, ok := remote[item.FileSource]; ok && doc.DocID != "" {
			reuploadDocs = append(reuploadDocs, doc)
		}
	}
	deleted, err = r.deleteDocs(ctx, reuploadDocs)
	if err != nil {
		return nil, err
	}
	summary.Deleted += deleted

	uploaded, err := r.uploadDocs(ctx, plan.Upload)
	if err != nil {
		return nil, err
	}
	summary.Uploaded = len(uploaded)

	now := time.Now().UTC().Format(time.RFC3339)
	for _, doc := range plan.Delete {
		state.Delete(doc.FileSource)
	}
	for _, source := range uploaded {
		item := local[source]
		state.Set(source, ragsync.SyncEntry{
			MDDigest:  item.MDDigest,
			MDPath:    item.MDPath,
			UpdatedAt: now,
		})
	}
	if err := r.States.SaveSyncState(state); err != nil {
		return nil, err
	}

	r.Logger.Info("sync done",
		"deleted", summary.Deleted,
		"uploaded", summary.Uploaded,
		"skipped_inflight", summary.SkippedInflight,
		"total_local", summary.TotalLocal,
		"total_remote", summary.TotalRemote,
	)
	return summary, nil
}

// waitForPipelineIdle polls the pipeline status until no in-flight work
// remains, bounded by the configured wait deadline.
func (r *Reconciler) waitForPipelineIdle(ctx context.Context) error {
	interval := time.Duration(r.Config.Index.InflightPollSec) * time.Second
	deadline := time.Now().Add(time.Duration(r.Config.Index.InflightWaitSec) * time.Second)

	for {
		payload, err := r.Index.PipelineStatus(ctx)
		if err != nil {
			return err
		}
		inflight := ragsync.CountInflight(payload)
		if inflight <= 0 {
			return nil
		}
		if !time.Now().Before(deadline) {
			return ragsync.Errorf(ragsync.EUNAVAILABLE, "pipeline still busy after %ds (%d in flight)",
				r.Config.Index.InflightWaitSec, inflight)
		}
		r.Logger.Info("waiting for in-flight ingestion", "inflight", inflight)

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (r *Reconciler) deleteDocs(ctx context.Context, docs []ragsync.RemoteDocument) (int, error) {
	deleted := 0
	for _, batch := range batches(docs, r.Config.Index.BatchSize) {
		ids := make([]string, 0, len(batch))
		for _, doc := range batch {
			if doc.DocID != "" {
				ids = append(ids, doc.DocID)
			}
		}
		if len(ids) == 0 {
			continue
		}
		if err := r.Index.DeleteDocuments(ctx, ids); err != nil {
			return deleted, err
		}
		deleted += len(ids)
		r.Logger.Info("deleted documents", "count", len(ids))
	}
	return deleted, nil
}

// uploadDocs inserts manifest items in batches, returning the file sources
// actually uploaded. Items whose markdown has gone missing are skipped
// with a warning.
func (r *Reconciler) uploadDocs(ctx context.Context, items []ragsync.RetrievalItem) ([]string, error) {
	var uploaded []string
	for _, batch := range batches(items, r.Config.Index.BatchSize) {
		texts := make([]ragsync.InsertText, 0, len(batch))
		for _, item := range batch {
			data, err := os.ReadFile(item.MDPath)
			if err != nil {
				r.Logger.Warn("markdown file not found", "path", item.MDPath)
				continue
			}
			texts = append(texts, ragsync.InsertText{
				Text:       string(data),
				FileSource: item.FileSource,
			})
		}
		if len(texts) == 0 {
			continue
		}
		if err := r.Index.InsertTexts(ctx, texts); err != nil {
			return uploaded, err
		}
		for _, t := range texts {
			uploaded = append(uploaded, t.FileSource)
		}
		r.Logger.Info("uploaded documents", "count", len(texts))
	}
	return uploaded, nil
}

func batches[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = len(items)
	}
	var out [][]T
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[start:end])
	}
	return out
}
