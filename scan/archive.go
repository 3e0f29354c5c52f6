package scan

import (
	"archive/zip"
	"bytes"
	"io"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/akowalczyk/ragsync"
	"github.com/akowalczyk/ragsync/fs"
)

// imageExts are the raster formats the converter exports.
var imageExts = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".tif": {}, ".tiff": {},
	".gif": {}, ".bmp": {}, ".webp": {},
}

// ImageInfo describes one extracted image.
type ImageInfo struct {
	Digest    string
	LocalPath string
	PublicURL string
	Ext       string
}

// archiveContent is the unpacked converter archive: the markdown and
// structured document plus link and image lookup maps. Both maps are keyed
// by every path alias an image is referenced under (its archive path and
// its path relative to the markdown file).
type archiveContent struct {
	markdown  string
	document  []byte
	links     map[string]string
	imageInfo map[string]ImageInfo
}

// extractArchive unpacks a converter archive, storing every image under
// the document's image directory. docRoot is the source's relative path
// without extension.
func extractArchive(zipBytes []byte, docRoot string, artifacts *fs.ArtifactWriter) (*archiveContent, error) {
	zr, err := zip.NewReader(bytes.NewReader(zipBytes), int64(len(zipBytes)))
	if err != nil {
		return nil, ragsync.Errorf(ragsync.ECONVERSION, "open conversion archive: %v", err)
	}

	var names []string
	byName := make(map[string]*zip.File)
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		names = append(names, f.Name)
		byName[f.Name] = f
	}

	content := &archiveContent{
		links:     make(map[string]string),
		imageInfo: make(map[string]ImageInfo),
	}

	mdName := pickFirst(names, ".md")
	if mdName != "" {
		text, err := readZipFile(byName[mdName])
		if err != nil {
			return nil, err
		}
		content.markdown = string(text)
	}
	if jsonName := pickFirst(names, ".json"); jsonName != "" {
		data, err := readZipFile(byName[jsonName])
		if err != nil {
			return nil, err
		}
		content.document = data
	}

	mdDir := ""
	if mdName != "" {
		mdDir = path.Dir(mdName)
		if mdDir == "." {
			mdDir = ""
		}
	}

	for _, name := range names {
		ext := strings.ToLower(path.Ext(name))
		if _, ok := imageExts[ext]; !ok {
			continue
		}
		data, err := readZipFile(byName[name])
		if err != nil {
			return nil, err
		}
		relInZip := ragsync.NormalizeRelPath(name)
		localPath, publicURL, err := artifacts.WriteImage(docRoot, relInZip, data)
		if err != nil {
			return nil, err
		}
		info := ImageInfo{
			Digest:    ragsync.DigestBytes(data),
			LocalPath: localPath,
			PublicURL: publicURL,
			Ext:       ext,
		}
		content.links[relInZip] = publicURL
		content.imageInfo[relInZip] = info
		if mdDir != "" {
			if relToMD, ok := relativeTo(relInZip, mdDir); ok {
				content.links[relToMD] = publicURL
				content.imageInfo[relToMD] = info
			}
		}
	}

	return content, nil
}

// pickFirst returns the shortest name with the given suffix, ties broken
// lexicographically, so the top-level document wins over nested extras.
func pickFirst(names []string, suffix string) string {
	var candidates []string
	for _, name := range names {
		if strings.HasSuffix(strings.ToLower(name), suffix) {
			candidates = append(candidates, name)
		}
	}
	if len(candidates) == 0 {
		return ""
	}
	sort.Slice(candidates, func(i, j int) bool {
		if len(candidates[i]) != len(candidates[j]) {
			return len(candidates[i]) < len(candidates[j])
		}
		return candidates[i] < candidates[j]
	})
	return candidates[0]
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// relativeTo expresses target relative to dir, the way the markdown file
// references its sibling images.
func relativeTo(target, dir string) (string, bool) {
	rel, err := filepath.Rel(filepath.FromSlash(dir), filepath.FromSlash(target))
	if err != nil {
		return "", false
	}
	return ragsync.NormalizeRelPath(filepath.ToSlash(rel)), true
}
