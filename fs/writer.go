package fs

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/akowalczyk/ragsync"
)

// ArtifactWriter writes generated artifacts (markdown, structured document
// JSON, converter archives, extracted images) under the configured output
// directories and derives their public URLs.
type ArtifactWriter struct {
	outputRoot    string
	markdownDir   string
	jsonDir       string
	zipDir        string
	imagesDir     string
	publicBaseURL string
	publicPrefix  string
}

// NewArtifactWriter creates an ArtifactWriter from the output
// configuration.
func NewArtifactWriter(cfg ragsync.OutputConfig) *ArtifactWriter {
	return &ArtifactWriter{
		outputRoot:    cfg.RootDir,
		markdownDir:   cfg.MarkdownDir,
		jsonDir:       cfg.DocJSONDir,
		zipDir:        cfg.DocZipDir,
		imagesDir:     cfg.ImagesDir,
		publicBaseURL: cfg.PublicBaseURL,
		publicPrefix:  cfg.PublicPathPrefix,
	}
}

// MarkdownPath returns where the markdown output for a source file lands:
// the source's relative path with its extension replaced by .md.
func (w *ArtifactWriter) MarkdownPath(relPath string) string {
	return filepath.Join(w.markdownDir, withSuffix(relPath, ".md"))
}

// WriteMarkdown writes markdown output atomically and returns its path and
// public URL.
func (w *ArtifactWriter) WriteMarkdown(relPath, content string) (path, publicURL string, err error) {
	path = w.MarkdownPath(relPath)
	if err := WriteFileAtomic(path, []byte(content)); err != nil {
		return "", "", err
	}
	return path, w.PublicURLFor(path), nil
}

// WriteDocJSON writes the structured document JSON and returns its path.
func (w *ArtifactWriter) WriteDocJSON(relPath string, data []byte) (string, error) {
	path := filepath.Join(w.jsonDir, withSuffix(relPath, ".json"))
	if err := WriteFileAtomic(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// WriteZip persists the converter archive and returns its path.
func (w *ArtifactWriter) WriteZip(relPath string, data []byte) (string, error) {
	path := filepath.Join(w.zipDir, withSuffix(relPath, ".zip"))
	if err := WriteFileAtomic(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// WriteImage stores an extracted image under the document's image
// directory and returns its path and public URL. docRoot is the source's
// relative path without extension; relInZip is the image's path inside the
// converter archive.
func (w *ArtifactWriter) WriteImage(docRoot, relInZip string, data []byte) (path, publicURL string, err error) {
	path = filepath.Join(w.imagesDir, filepath.FromSlash(docRoot), filepath.FromSlash(relInZip))
	if err := WriteFileAtomic(path, data); err != nil {
		return "", "", err
	}
	return path, w.PublicURLFor(path), nil
}

// WriteFullManifest stamps and persists the full scan manifest.
func (w *ArtifactWriter) WriteFullManifest(path string, m *ragsync.FullManifest) error {
	m.GeneratedAt = time.Now().UTC().Format(time.RFC3339)
	return writeJSON(path, m)
}

// LoadFullManifest reads a full scan manifest from disk.
func LoadFullManifest(path string) (*ragsync.FullManifest, error) {
	var m ragsync.FullManifest
	if err := readJSON(path, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// WriteRetrievalManifest stamps and persists the retrieval manifest.
func (w *ArtifactWriter) WriteRetrievalManifest(path string, m *ragsync.RetrievalManifest) error {
	m.GeneratedAt = time.Now().UTC().Format(time.RFC3339)
	return writeJSON(path, m)
}

// LoadRetrievalManifest reads a retrieval manifest from disk.
func LoadRetrievalManifest(path string) (*ragsync.RetrievalManifest, error) {
	var m ragsync.RetrievalManifest
	if err := readJSON(path, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// PublicURLFor maps an output path to its public URL. Paths outside the
// output root yield an empty URL.
func (w *ArtifactWriter) PublicURLFor(path string) string {
	rel, err := filepath.Rel(w.outputRoot, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return ""
	}
	return ragsync.BuildPublicURL(w.publicBaseURL, w.publicPrefix, filepath.ToSlash(rel))
}

// withSuffix replaces a path's extension, keeping paths slash-normalized
// for the local filesystem.
func withSuffix(relPath, suffix string) string {
	relPath = filepath.FromSlash(ragsync.NormalizeRelPath(relPath))
	ext := filepath.Ext(relPath)
	return relPath[:len(relPath)-len(ext)] + suffix
}
