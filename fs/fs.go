// Package fs provides file-based persistence for pipeline state, generated
// artifacts, and manifests.
package fs

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/akowalczyk/ragsync"
)

// WriteFileAtomic writes data to path via a uniquely named temporary file
// in the same directory followed by a rename, so readers never observe a
// partial write. Parent directories are created as needed.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp := path + "." + uuid.NewString() + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// writeJSON marshals v with indentation and writes it atomically.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return ragsync.Errorf(ragsync.EINTERNAL, "marshal %s: %v", filepath.Base(path), err)
	}
	return WriteFileAtomic(path, append(data, '\n'))
}

// readJSON unmarshals path into v. A missing file returns an ENOTFOUND
// error; callers treat that as an empty state.
func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return ragsync.Errorf(ragsync.ENOTFOUND, "state file not found: %s", path)
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return ragsync.Errorf(ragsync.EINTERNAL, "parse %s: %v", filepath.Base(path), err)
	}
	return nil
}

// FileExists reports whether path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
