package scan_test

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akowalczyk/ragsync"
	"github.com/akowalczyk/ragsync/fs"
	"github.com/akowalczyk/ragsync/mock"
	"github.com/akowalczyk/ragsync/scan"
)

func testConfig(t *testing.T) *ragsync.Config {
	t.Helper()
	workDir := t.TempDir()

	cfg := &ragsync.Config{}
	cfg.Input.RootDir = t.TempDir()
	cfg.Input.IncludeExt = []string{".pdf"}
	cfg.Input.PassthroughExt = []string{".md"}
	cfg.Output.RootDir = filepath.Join(workDir, "data")
	cfg.Output.PublicBaseURL = "https://cdn.example.com"
	cfg.Manifest.FullPath = filepath.Join(workDir, "manifests", "manifest.json")
	cfg.Manifest.RAGPath = filepath.Join(workDir, "manifests", "rag_manifest.json")
	cfg.Runtime.StateDir = filepath.Join(workDir, "state")
	cfg.ApplyDefaults()
	return cfg
}

func newScanner(cfg *ragsync.Config, converter ragsync.Converter, captioner ragsync.Captioner) *scan.Scanner {
	return &scan.Scanner{
		Config:    cfg,
		Converter: converter,
		Captioner: captioner,
		States:    fs.NewStateStore(cfg.Runtime.StateDir),
		Artifacts: fs.NewArtifactWriter(cfg.Output),
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func inlineConverter(calls *atomic.Int32) *mock.Converter {
	return &mock.Converter{
		ConvertFn: func(ctx context.Context, req ragsync.ConvertRequest) (*ragsync.ConvertResult, error) {
			if calls != nil {
				calls.Add(1)
			}
			return &ragsync.ConvertResult{
				Status: "success",
				Output: ragsync.InlineOutput{
					Markdown: "# Converted " + req.Filename + "\n\nBody text of the document.\n",
					Document: []byte(`{}`),
				},
			}, nil
		},
	}
}

func buildArchive(t *testing.T, files map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestScannerRun(t *testing.T) {
	t.Parallel()

	t.Run("converts sources and writes manifest and state", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig(t)
		writeFile(t, cfg.Input.RootDir, "a.pdf", "pdf-a")
		writeFile(t, cfg.Input.RootDir, "sub/b.pdf", "pdf-b")
		writeFile(t, cfg.Input.RootDir, "notes.md", "Plain notes that pass through.\n")

		s := newScanner(cfg, inlineConverter(nil), nil)
		result, err := s.Run(context.Background())
		require.NoError(t, err)

		assert.Equal(t, 3, result.Processed)
		assert.Equal(t, 0, result.Reused)
		assert.Equal(t, 0, result.Failed)

		require.Len(t, result.Manifest.Items, 3)
		assert.Equal(t, "ragsync/a.pdf", result.Manifest.Items[0].FileSource)
		assert.Equal(t, "ragsync/notes.md", result.Manifest.Items[1].FileSource)
		assert.Equal(t, "ragsync/sub/b.pdf", result.Manifest.Items[2].FileSource)

		for _, item := range result.Manifest.Items {
			assert.FileExists(t, item.MDPath)
			assert.NotEmpty(t, item.MDDigest)
			assert.True(t, strings.HasPrefix(item.MDPublicURL, "https://cdn.example.com/"))
		}

		loaded, err := fs.LoadRetrievalManifest(cfg.Manifest.RAGPath)
		require.NoError(t, err)
		assert.Len(t, loaded.Items, 3)

		full, err := fs.LoadFullManifest(cfg.Manifest.FullPath)
		require.NoError(t, err)
		assert.Equal(t, 1, full.Version)
		assert.NotEmpty(t, full.GeneratedAt)
		assert.Equal(t, cfg.Input.RootDir, full.RootDir)
		assert.Equal(t, cfg.Output.RootDir, full.OutputRoot)
		require.Len(t, full.Items, 3)
		assert.Equal(t, "a.pdf", full.Items[0].SourceRelPath)
		assert.Equal(t, "notes.md", full.Items[1].SourceRelPath)
		assert.Equal(t, "sub/b.pdf", full.Items[2].SourceRelPath)

		state := fs.NewStateStore(cfg.Runtime.StateDir).LoadScanState()
		require.NotNil(t, state)
		assert.True(t, state.Usable(cfg.Input.RootDir))
		assert.Len(t, state.Items, 3)
	})

	t.Run("second run over unchanged sources converts nothing", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig(t)
		writeFile(t, cfg.Input.RootDir, "a.pdf", "pdf-a")
		writeFile(t, cfg.Input.RootDir, "notes.md", "Notes.\n")

		var calls atomic.Int32
		s := newScanner(cfg, inlineConverter(&calls), nil)

		_, err := s.Run(context.Background())
		require.NoError(t, err)
		require.EqualValues(t, 1, calls.Load())

		result, err := s.Run(context.Background())
		require.NoError(t, err)

		assert.EqualValues(t, 1, calls.Load(), "no reconversion expected")
		assert.Equal(t, 0, result.Processed)
		assert.Equal(t, 2, result.Reused)
		assert.Len(t, result.Manifest.Items, 2)
	})

	t.Run("identical sources are converted once", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig(t)
		writeFile(t, cfg.Input.RootDir, "a.pdf", "same-bytes")
		writeFile(t, cfg.Input.RootDir, "copies/a-copy.pdf", "same-bytes")

		var calls atomic.Int32
		s := newScanner(cfg, inlineConverter(&calls), nil)

		result, err := s.Run(context.Background())
		require.NoError(t, err)

		assert.EqualValues(t, 1, calls.Load())
		require.Len(t, result.Manifest.Items, 1)
		assert.Equal(t, "ragsync/a.pdf", result.Manifest.Items[0].FileSource)

		var dupe *ragsync.ScanItem
		for _, item := range result.Items {
			if item.SourceRelPath == "copies/a-copy.pdf" {
				dupe = item
			}
		}
		require.NotNil(t, dupe)
		assert.Equal(t, ragsync.StatusSkippedDupe, dupe.ConversionStatus)
		assert.Equal(t, "a.pdf", dupe.CanonicalRelPath)
	})

	t.Run("oversized files are skipped", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig(t)
		cfg.Input.MaxFileSizeMB = -1
		writeFile(t, cfg.Input.RootDir, "huge.pdf", "anything")

		s := newScanner(cfg, inlineConverter(nil), nil)
		result, err := s.Run(context.Background())
		require.NoError(t, err)

		require.Len(t, result.Items, 1)
		assert.Equal(t, ragsync.StatusSkippedTooLarge, result.Items[0].ConversionStatus)
		assert.Empty(t, result.Manifest.Items)
	})

	t.Run("per-document failure is recorded not fatal", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig(t)
		writeFile(t, cfg.Input.RootDir, "bad.pdf", "x")

		converter := &mock.Converter{
			ConvertFn: func(ctx context.Context, req ragsync.ConvertRequest) (*ragsync.ConvertResult, error) {
				return &ragsync.ConvertResult{Status: "failure", Errors: []string{"parse error"}}, nil
			},
		}

		s := newScanner(cfg, converter, nil)
		result, err := s.Run(context.Background())
		require.NoError(t, err)

		assert.Equal(t, 1, result.Failed)
		require.Len(t, result.Items, 1)
		assert.Equal(t, ragsync.StatusFailure, result.Items[0].ConversionStatus)
		assert.Contains(t, result.Items[0].ConversionError, "conversion status=failure")
		assert.Empty(t, result.Manifest.Items)
	})

	t.Run("missing ocr language aborts the run when configured", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig(t)
		writeFile(t, cfg.Input.RootDir, "doc.pdf", "x")

		converter := &mock.Converter{
			ConvertFn: func(ctx context.Context, req ragsync.ConvertRequest) (*ragsync.ConvertResult, error) {
				return &ragsync.ConvertResult{
					Status: "success",
					Errors: []string{"Error opening data file tessdata/deu.traineddata"},
					Output: ragsync.InlineOutput{Markdown: "# x"},
				}, nil
			},
		}

		s := newScanner(cfg, converter, nil)
		_, err := s.Run(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing OCR language packs")
	})

	t.Run("archive output with captioned images", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig(t)
		writeFile(t, cfg.Input.RootDir, "report.pdf", "pdf-bytes")

		archive := buildArchive(t, map[string][]byte{
			"document.md":    []byte("Intro paragraph.\n\n![](images/fig.png)\n"),
			"document.json":  []byte(`{"texts":[],"pictures":[]}`),
			"images/fig.png": []byte("png-bytes"),
		})
		converter := &mock.Converter{
			ConvertFn: func(ctx context.Context, req ragsync.ConvertRequest) (*ragsync.ConvertResult, error) {
				require.Equal(t, ragsync.FormatArchive, req.Format)
				require.True(t, req.ExtractImages)
				return &ragsync.ConvertResult{Status: "success", Output: ragsync.ArchiveOutput{Zip: archive}}, nil
			},
		}
		captioner := &mock.Captioner{
			DescribeFn: func(ctx context.Context, imageData []byte, mimeType string) (*ragsync.CaptionResult, error) {
				assert.Equal(t, "image/png", mimeType)
				assert.Equal(t, []byte("png-bytes"), imageData)
				return &ragsync.CaptionResult{Caption: "A red test chart on a bench", Title: "Test chart"}, nil
			},
		}

		s := newScanner(cfg, converter, captioner)
		result, err := s.Run(context.Background())
		require.NoError(t, err)

		require.Len(t, result.Items, 1)
		item := result.Items[0]
		assert.Equal(t, ragsync.StatusSuccess, item.ConversionStatus)
		assert.Equal(t, 1, item.ImageCount)
		require.Len(t, item.ImageIndex, 1)
		assert.True(t, strings.HasPrefix(item.ImageIndex[0].FigureID, "FIG-"))
		assert.Equal(t, "A red test chart on a bench", item.ImageIndex[0].Caption)

		md, err := os.ReadFile(item.MDPath)
		require.NoError(t, err)
		assert.Contains(t, string(md), "![Test chart](")
		assert.Contains(t, string(md), "**Image:** A red test chart on a bench")
		assert.NotContains(t, string(md), "[ImageRef:")
		assert.NotContains(t, string(md), "](images/fig.png)")

		// Vision results land in the digest-keyed cache.
		cache := fs.NewStateStore(cfg.Runtime.StateDir).LoadCaptionCache("mock-model", "mock-prompt")
		entry, ok := cache.Lookup(ragsync.DigestBytes([]byte("png-bytes")))
		require.True(t, ok)
		assert.Equal(t, "A red test chart on a bench", entry.Caption)
	})

	t.Run("captioning failure fails the document for retry", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig(t)
		writeFile(t, cfg.Input.RootDir, "report.pdf", "pdf-bytes")

		archive := buildArchive(t, map[string][]byte{
			"document.md":    []byte("![](images/fig.png)\n"),
			"images/fig.png": []byte("png-bytes"),
		})
		converter := &mock.Converter{
			ConvertFn: func(ctx context.Context, req ragsync.ConvertRequest) (*ragsync.ConvertResult, error) {
				return &ragsync.ConvertResult{Status: "success", Output: ragsync.ArchiveOutput{Zip: archive}}, nil
			},
		}
		captioner := &mock.Captioner{
			DescribeFn: func(ctx context.Context, imageData []byte, mimeType string) (*ragsync.CaptionResult, error) {
				return nil, ragsync.Errorf(ragsync.ECAPTIONING, "model overloaded")
			},
		}

		s := newScanner(cfg, converter, captioner)
		result, err := s.Run(context.Background())
		require.NoError(t, err)

		require.Len(t, result.Items, 1)
		assert.Equal(t, ragsync.StatusFailure, result.Items[0].ConversionStatus)
		assert.Contains(t, result.Items[0].ConversionError, "vlm_error")
	})

	t.Run("captioning failure leaves the image uncaptioned when ignored", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig(t)
		cfg.Captioning.OnVLMError = ragsync.VLMErrorIgnore
		writeFile(t, cfg.Input.RootDir, "report.pdf", "pdf-bytes")

		archive := buildArchive(t, map[string][]byte{
			"document.md":    []byte("![](images/fig.png)\n"),
			"images/fig.png": []byte("png-bytes"),
		})
		converter := &mock.Converter{
			ConvertFn: func(ctx context.Context, req ragsync.ConvertRequest) (*ragsync.ConvertResult, error) {
				return &ragsync.ConvertResult{Status: "success", Output: ragsync.ArchiveOutput{Zip: archive}}, nil
			},
		}
		captioner := &mock.Captioner{
			DescribeFn: func(ctx context.Context, imageData []byte, mimeType string) (*ragsync.CaptionResult, error) {
				return nil, ragsync.Errorf(ragsync.ECAPTIONING, "model overloaded")
			},
		}

		s := newScanner(cfg, converter, captioner)
		result, err := s.Run(context.Background())
		require.NoError(t, err)

		assert.Equal(t, 0, result.Failed)
		require.Len(t, result.Items, 1)
		item := result.Items[0]
		assert.Equal(t, ragsync.StatusSuccess, item.ConversionStatus)
		require.Len(t, item.ImageIndex, 1)
		// No caption was produced, so the figure id stands in.
		assert.Equal(t, item.ImageIndex[0].FigureID, item.ImageIndex[0].Caption)
	})

	t.Run("per-document image cap limits vision calls", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig(t)
		cfg.Captioning.MaxImagesPerDoc = 1
		writeFile(t, cfg.Input.RootDir, "report.pdf", "pdf-bytes")

		archive := buildArchive(t, map[string][]byte{
			"document.md":    []byte("![](images/one.png)\n\n![](images/two.png)\n"),
			"images/one.png": []byte("png-one"),
			"images/two.png": []byte("png-two"),
		})
		converter := &mock.Converter{
			ConvertFn: func(ctx context.Context, req ragsync.ConvertRequest) (*ragsync.ConvertResult, error) {
				return &ragsync.ConvertResult{Status: "success", Output: ragsync.ArchiveOutput{Zip: archive}}, nil
			},
		}
		var calls atomic.Int32
		captioner := &mock.Captioner{
			DescribeFn: func(ctx context.Context, imageData []byte, mimeType string) (*ragsync.CaptionResult, error) {
				calls.Add(1)
				return &ragsync.CaptionResult{Caption: "A captioned figure on a bench"}, nil
			},
		}

		s := newScanner(cfg, converter, captioner)
		result, err := s.Run(context.Background())
		require.NoError(t, err)

		assert.EqualValues(t, 1, calls.Load())
		require.Len(t, result.Items, 1)
		assert.Equal(t, ragsync.StatusSuccess, result.Items[0].ConversionStatus)
	})

	t.Run("embedded captions take precedence over vision", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig(t)
		writeFile(t, cfg.Input.RootDir, "report.pdf", "pdf-bytes")

		docJSON := `{
			"texts":[{"self_ref":"#/texts/0","text":"Figure 1: The measurement setup"}],
			"pictures":[{"image":{"uri":"images/fig.png"},"captions":[{"$ref":"#/texts/0"}]}]
		}`
		archive := buildArchive(t, map[string][]byte{
			"document.md":    []byte("![](images/fig.png)\n"),
			"document.json":  []byte(docJSON),
			"images/fig.png": []byte("png-bytes"),
		})
		converter := &mock.Converter{
			ConvertFn: func(ctx context.Context, req ragsync.ConvertRequest) (*ragsync.ConvertResult, error) {
				return &ragsync.ConvertResult{Status: "success", Output: ragsync.ArchiveOutput{Zip: archive}}, nil
			},
		}
		captioner := &mock.Captioner{
			DescribeFn: func(ctx context.Context, imageData []byte, mimeType string) (*ragsync.CaptionResult, error) {
				t.Error("vision captioner should not be called")
				return nil, nil
			},
		}

		s := newScanner(cfg, converter, captioner)
		result, err := s.Run(context.Background())
		require.NoError(t, err)

		require.Len(t, result.Items, 1)
		require.Len(t, result.Items[0].ImageIndex, 1)
		assert.Equal(t, "Figure 1: The measurement setup", result.Items[0].ImageIndex[0].Caption)
	})
}

func TestScannerChanges(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	writeFile(t, cfg.Input.RootDir, "a.pdf", "pdf-a")

	s := newScanner(cfg, inlineConverter(nil), nil)

	// Before any scan everything counts as added.
	changes, err := s.Changes(context.Background())
	require.NoError(t, err)
	assert.False(t, changes.HasState)
	assert.Equal(t, []string{"a.pdf"}, changes.Added)

	_, err = s.Run(context.Background())
	require.NoError(t, err)

	writeFile(t, cfg.Input.RootDir, "b.pdf", "pdf-b")

	changes, err = s.Changes(context.Background())
	require.NoError(t, err)
	assert.True(t, changes.HasState)
	assert.Equal(t, []string{"b.pdf"}, changes.Added)
	assert.Equal(t, []string{"a.pdf"}, changes.Unchanged)
}
