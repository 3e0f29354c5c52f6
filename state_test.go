package ragsync_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/akowalczyk/ragsync"
)

func TestScanStateUsable(t *testing.T) {
	t.Parallel()

	t.Run("fresh state for the same root is usable", func(t *testing.T) {
		t.Parallel()

		state := ragsync.NewScanState("/docs", "data")
		assert.True(t, state.Usable("/docs"))
	})

	t.Run("nil state is not usable", func(t *testing.T) {
		t.Parallel()

		var state *ragsync.ScanState
		assert.False(t, state.Usable("/docs"))
	})

	t.Run("different root invalidates the snapshot", func(t *testing.T) {
		t.Parallel()

		state := ragsync.NewScanState("/docs", "data")
		assert.False(t, state.Usable("/other"))
	})

	t.Run("version mismatch invalidates the snapshot", func(t *testing.T) {
		t.Parallel()

		state := ragsync.NewScanState("/docs", "data")
		state.Version = 99
		assert.False(t, state.Usable("/docs"))
	})
}

func TestCaptionCache(t *testing.T) {
	t.Parallel()

	t.Run("stores and looks up by digest", func(t *testing.T) {
		t.Parallel()

		cache := ragsync.NewCaptionCache("model-a", "prompt-a")
		cache.Store("abc", ragsync.CaptionEntry{Caption: "a diagram", Title: "Diagram"})

		entry, ok := cache.Lookup("abc")
		assert.True(t, ok)
		assert.Equal(t, "a diagram", entry.Caption)
		assert.Equal(t, "Diagram", entry.Title)

		_, ok = cache.Lookup("missing")
		assert.False(t, ok)
	})

	t.Run("model change discards all entries", func(t *testing.T) {
		t.Parallel()

		cache := ragsync.NewCaptionCache("model-a", "prompt-a")
		cache.Store("abc", ragsync.CaptionEntry{Caption: "a diagram"})

		invalidated := cache.EnsureMeta("model-b", "prompt-a")

		assert.True(t, invalidated)
		assert.Empty(t, cache.Entries)
		assert.Equal(t, "model-b", cache.Meta.Model)
	})

	t.Run("prompt change discards all entries", func(t *testing.T) {
		t.Parallel()

		cache := ragsync.NewCaptionCache("model-a", "prompt-a")
		cache.Store("abc", ragsync.CaptionEntry{Caption: "a diagram"})

		assert.True(t, cache.EnsureMeta("model-a", "prompt-b"))
		assert.Empty(t, cache.Entries)
	})

	t.Run("matching meta keeps entries", func(t *testing.T) {
		t.Parallel()

		cache := ragsync.NewCaptionCache("model-a", "prompt-a")
		cache.Store("abc", ragsync.CaptionEntry{Caption: "a diagram"})

		assert.False(t, cache.EnsureMeta("model-a", "prompt-a"))
		assert.Len(t, cache.Entries, 1)
	})
}

func TestSyncState(t *testing.T) {
	t.Parallel()

	state := ragsync.NewSyncState()
	state.Set("ragsync/a.pdf", ragsync.SyncEntry{MDDigest: "d1", MDPath: "a.md"})

	assert.Equal(t, "d1", state.Entries["ragsync/a.pdf"].MDDigest)

	state.Delete("ragsync/a.pdf")
	assert.Empty(t, state.Entries)
}

func TestScanItem(t *testing.T) {
	t.Parallel()

	t.Run("clone is deep for the image index", func(t *testing.T) {
		t.Parallel()

		item := ragsync.NewScanItem(ragsync.FileMeta{RelPath: "a.pdf"})
		item.ImageIndex = []ragsync.ImageIndexEntry{{FigureID: "FIG-1"}}

		dup := item.Clone()
		dup.ImageIndex[0].FigureID = "FIG-2"

		assert.Equal(t, "FIG-1", item.ImageIndex[0].FigureID)
	})

	t.Run("reset clears conversion but keeps identity", func(t *testing.T) {
		t.Parallel()

		item := ragsync.NewScanItem(ragsync.FileMeta{RelPath: "a.pdf", Size: 10})
		item.ConversionStatus = ragsync.StatusSuccess
		item.MDPath = "a.md"
		item.RAG = ragsync.RAGMeta{FileSource: "ragsync/a.pdf"}

		item.ResetConversion()

		assert.Empty(t, item.ConversionStatus)
		assert.Empty(t, item.MDPath)
		assert.Empty(t, item.RAG.FileSource)
		assert.Equal(t, "a.pdf", item.SourceRelPath)
		assert.EqualValues(t, 10, item.SourceSizeBytes)
	})
}
