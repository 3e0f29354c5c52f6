package main

import (
	"fmt"

	"github.com/akowalczyk/ragsync"
	"github.com/akowalczyk/ragsync/fs"
	"github.com/akowalczyk/ragsync/reconcile"
)

// Run executes the sync command.
func (c *SyncCmd) Run(deps *Dependencies) error {
	path := deps.Config.Manifest.RAGPath
	if c.Manifest != "" {
		path = c.Manifest
	}

	manifest, err := fs.LoadRetrievalManifest(path)
	if err != nil {
		if ragsync.ErrorCode(err) == ragsync.ENOTFOUND {
			fmt.Fprintln(deps.Stderr, "Hint: run 'ragsync scan' first to generate the manifest")
		}
		fmt.Fprintf(deps.Stderr, "error: %s\n", ragsync.ErrorMessage(err))
		return err
	}

	summary, err := deps.Reconciler.Run(deps.Ctx, manifest)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", ragsync.ErrorMessage(err))
		return err
	}

	printSummary(deps, summary)
	return nil
}

func printSummary(deps *Dependencies, summary *reconcile.Summary) {
	if summary.DryRun {
		fmt.Fprintf(deps.Stdout, "Dry run: no index changes applied (%d local, %d remote).\n",
			summary.TotalLocal, summary.TotalRemote)
		return
	}
	fmt.Fprintf(deps.Stdout, "Deleted %d, uploaded %d (%d skipped in flight).\n",
		summary.Deleted, summary.Uploaded, summary.SkippedInflight)
}
