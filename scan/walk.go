package scan

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/akowalczyk/ragsync"
)

// ListFiles walks the input root and returns metadata for every source
// file with an included extension, in lexicographic relative-path order.
// Exclude globs match against the slash-normalized relative path.
func ListFiles(cfg ragsync.InputConfig) ([]ragsync.FileMeta, error) {
	allowed := make(map[string]struct{}, len(cfg.IncludeExt)+len(cfg.PassthroughExt))
	for _, ext := range cfg.IncludeExt {
		allowed[ext] = struct{}{}
	}
	for _, ext := range cfg.PassthroughExt {
		allowed[ext] = struct{}{}
	}

	root, err := filepath.Abs(cfg.RootDir)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(root); err != nil {
		return nil, ragsync.Errorf(ragsync.ENOTFOUND, "input root does not exist: %s", cfg.RootDir)
	}

	var files []ragsync.FileMeta
	err = walkDir(root, root, cfg, allowed, make(map[string]struct{}), &files)
	if err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	return files, nil
}

// walkDir recurses manually rather than through filepath.WalkDir so
// symlinked directories can be followed when configured. visited guards
// against symlink cycles by resolved path.
func walkDir(dir, root string, cfg ragsync.InputConfig, allowed map[string]struct{}, visited map[string]struct{}, out *[]ragsync.FileMeta) error {
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return nil
	}
	if _, ok := visited[resolved]; ok {
		return nil
	}
	visited[resolved] = struct{}{}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		info, err := statEntry(path, entry, cfg.FollowSymlinks)
		if err != nil || info == nil {
			continue
		}

		if info.IsDir() {
			if err := walkDir(path, root, cfg, allowed, visited, out); err != nil {
				return err
			}
			continue
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			continue
		}
		relPath := filepath.ToSlash(rel)
		if isExcluded(relPath, cfg.ExcludeGlobs) {
			continue
		}
		ext := strings.ToLower(filepath.Ext(path))
		if _, ok := allowed[ext]; !ok {
			continue
		}
		*out = append(*out, ragsync.FileMeta{
			RelPath: relPath,
			AbsPath: path,
			Ext:     ext,
			Size:    info.Size(),
			MTime:   info.ModTime().Unix(),
		})
	}
	return nil
}

// statEntry resolves an entry's file info, following symlinks only when
// configured. Unfollowed symlinks are skipped entirely.
func statEntry(path string, entry fs.DirEntry, followSymlinks bool) (os.FileInfo, error) {
	if entry.Type()&fs.ModeSymlink == 0 {
		return entry.Info()
	}
	if !followSymlinks {
		return nil, nil
	}
	return os.Stat(path)
}

// isExcluded matches globs against both the full relative path and the
// base name, so "*.tmp" excludes temporary files at any depth.
func isExcluded(relPath string, patterns []string) bool {
	base := filepath.Base(relPath)
	for _, pattern := range patterns {
		if ok, _ := filepath.Match(pattern, relPath); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
	}
	return false
}
