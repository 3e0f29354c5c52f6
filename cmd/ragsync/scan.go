package main

import (
	"fmt"

	"github.com/akowalczyk/ragsync"
)

// Run executes the scan command.
func (c *ScanCmd) Run(deps *Dependencies) error {
	if deps.Config.Runtime.DryRun {
		changes, err := deps.Scanner.Changes(deps.Ctx)
		if err != nil {
			fmt.Fprintf(deps.Stderr, "error: %s\n", ragsync.ErrorMessage(err))
			return err
		}
		fmt.Fprintln(deps.Stdout, "Dry run: nothing converted.")
		printChanges(deps.Stdout, changes)
		return nil
	}

	result, err := deps.Scanner.Run(deps.Ctx)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", ragsync.ErrorMessage(err))
		return err
	}

	fmt.Fprintf(deps.Stdout, "Scanned %d files: %d converted, %d reused, %d failed.\n",
		len(result.Items), result.Processed, result.Reused, result.Failed)
	fmt.Fprintf(deps.Stdout, "Full manifest: %d items -> %s\n",
		len(result.Full.Items), deps.Config.Manifest.FullPath)
	fmt.Fprintf(deps.Stdout, "Manifest: %d documents -> %s\n",
		len(result.Manifest.Items), deps.Config.Manifest.RAGPath)
	return nil
}
