package main

import (
	"fmt"
	"io"

	"github.com/akowalczyk/ragsync"
)

// Run executes the changes command.
func (c *ChangesCmd) Run(deps *Dependencies) error {
	changes, err := deps.Scanner.Changes(deps.Ctx)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", ragsync.ErrorMessage(err))
		return err
	}

	if !changes.HasState {
		fmt.Fprintln(deps.Stdout, "No scan state found; every file counts as added.")
	}
	printChanges(deps.Stdout, changes)
	return nil
}

// printChanges writes the change classification grouped by kind. Empty
// groups are skipped.
func printChanges(w io.Writer, changes *ragsync.ChangeSet) {
	printGroup(w, "Added", changes.Added)
	printGroup(w, "Modified", changes.Modified)
	printGroup(w, "Removed", changes.Removed)
	if len(changes.Added)+len(changes.Modified)+len(changes.Removed) == 0 {
		fmt.Fprintf(w, "No changes (%d files unchanged).\n", len(changes.Unchanged))
	}
}

func printGroup(w io.Writer, title string, paths []string) {
	if len(paths) == 0 {
		return
	}
	fmt.Fprintf(w, "%s (%d):\n", title, len(paths))
	for _, p := range paths {
		fmt.Fprintf(w, "  - %s\n", p)
	}
}
