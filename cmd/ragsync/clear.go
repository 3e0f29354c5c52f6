package main

import (
	"fmt"
	"os"
	"path/filepath"
)

// Run executes the clear command. By default only pipeline state is
// removed; --all also empties the generated outputs and manifests so the
// next scan starts from nothing.
func (c *ClearCmd) Run(deps *Dependencies) error {
	if err := deps.States.Clear(); err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", err)
		return err
	}
	fmt.Fprintf(deps.Stdout, "Cleared state in %s\n", deps.Config.Runtime.StateDir)

	if !c.All {
		return nil
	}

	dirs := []string{
		deps.Config.Output.RootDir,
		filepath.Dir(deps.Config.Manifest.RAGPath),
	}
	if d := filepath.Dir(deps.Config.Manifest.FullPath); d != dirs[1] {
		dirs = append(dirs, d)
	}
	for _, dir := range dirs {
		if err := emptyDir(dir); err != nil {
			fmt.Fprintf(deps.Stderr, "error: %s\n", err)
			return err
		}
		fmt.Fprintf(deps.Stdout, "Emptied %s\n", dir)
	}
	return nil
}

// emptyDir removes a directory's contents, recreating the directory
// itself.
func emptyDir(dir string) error {
	if dir == "" || dir == "." || dir == string(filepath.Separator) {
		return fmt.Errorf("refusing to empty %q", dir)
	}
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}
