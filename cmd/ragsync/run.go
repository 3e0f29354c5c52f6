package main

import (
	"fmt"

	"github.com/akowalczyk/ragsync"
	"github.com/akowalczyk/ragsync/fs"
)

// Run executes the run command: a scan followed by reconciliation.
func (c *RunCmd) Run(deps *Dependencies) error {
	result, err := deps.Scanner.Run(deps.Ctx)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", ragsync.ErrorMessage(err))
		return err
	}
	fmt.Fprintf(deps.Stdout, "Scanned %d files: %d converted, %d reused, %d failed.\n",
		len(result.Items), result.Processed, result.Reused, result.Failed)

	manifest := result.Manifest
	if c.Manifest != "" {
		manifest, err = fs.LoadRetrievalManifest(c.Manifest)
		if err != nil {
			fmt.Fprintf(deps.Stderr, "error: %s\n", ragsync.ErrorMessage(err))
			return err
		}
	}

	summary, err := deps.Reconciler.Run(deps.Ctx, manifest)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", ragsync.ErrorMessage(err))
		return err
	}

	printSummary(deps, summary)
	return nil
}
