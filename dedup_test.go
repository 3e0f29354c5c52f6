package ragsync_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akowalczyk/ragsync"
)

func TestChooseCanonical(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		paths []string
		want  string
	}{
		{name: "shortest path wins", paths: []string{"docs/sub/a.pdf", "a.pdf"}, want: "a.pdf"},
		{name: "ties break lexicographically", paths: []string{"b.pdf", "a.pdf"}, want: "a.pdf"},
		{name: "single member", paths: []string{"only.pdf"}, want: "only.pdf"},
		{name: "empty group", paths: nil, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, ragsync.ChooseCanonical(tt.paths))
		})
	}
}

func TestApplyStage1Dedup(t *testing.T) {
	t.Parallel()

	t.Run("elects one canonical per digest group", func(t *testing.T) {
		t.Parallel()

		items := []*ragsync.ScanItem{
			{SourceRelPath: "copy/a.pdf", SourceDigest: "d1"},
			{SourceRelPath: "a.pdf", SourceDigest: "d1"},
			{SourceRelPath: "b.pdf", SourceDigest: "d2"},
		}

		ragsync.ApplyStage1Dedup(items)

		assert.False(t, items[0].Stage1Canonical)
		assert.Equal(t, "a.pdf", items[0].Stage1CanonicalRelPath)
		assert.Equal(t, ragsync.StatusSkippedDupe, items[0].ConversionStatus)
		assert.Equal(t, ragsync.ConversionSkipped, items[0].ConversionType)

		assert.True(t, items[1].Stage1Canonical)
		assert.Empty(t, items[1].ConversionStatus)

		assert.True(t, items[2].Stage1Canonical)
	})

	t.Run("items without digests are not grouped", func(t *testing.T) {
		t.Parallel()

		items := []*ragsync.ScanItem{
			{SourceRelPath: "a.pdf"},
			{SourceRelPath: "b.pdf"},
		}

		ragsync.ApplyStage1Dedup(items)

		assert.False(t, items[0].Stage1Canonical)
		assert.Empty(t, items[0].Stage1CanonicalRelPath)
	})
}

func TestPromoteStage1Canonicals(t *testing.T) {
	t.Parallel()

	// A file skipped as a duplicate last run can win the election this run
	// when the old canonical disappeared; it must be processed fresh.
	item := &ragsync.ScanItem{
		SourceRelPath:    "a.pdf",
		SourceDigest:     "d1",
		Stage1Canonical:  true,
		ConversionType:   ragsync.ConversionSkipped,
		ConversionStatus: ragsync.StatusSkippedDupe,
		MDPath:           "stale.md",
	}

	ragsync.PromoteStage1Canonicals([]*ragsync.ScanItem{item})

	assert.Empty(t, item.ConversionStatus)
	assert.Empty(t, item.ConversionType)
	assert.Empty(t, item.MDPath)
}

func TestApplyStage2Dedup(t *testing.T) {
	t.Parallel()

	t.Run("elects canonical by markdown digest", func(t *testing.T) {
		t.Parallel()

		items := []*ragsync.ScanItem{
			{SourceRelPath: "a.pdf", ConversionStatus: ragsync.StatusSuccess, MDDigest: "m1"},
			{SourceRelPath: "nested/b.pdf", ConversionStatus: ragsync.StatusSuccess, MDDigest: "m1"},
			{SourceRelPath: "c.pdf", ConversionStatus: ragsync.StatusSuccess, MDDigest: "m2"},
		}

		ragsync.ApplyStage2Dedup(items)

		assert.True(t, items[0].Canonical)
		assert.Equal(t, "a.pdf", items[1].CanonicalRelPath)
		assert.False(t, items[1].Canonical)
		assert.True(t, items[2].Canonical)
	})

	t.Run("stage-1 duplicates inherit transitively", func(t *testing.T) {
		t.Parallel()

		items := []*ragsync.ScanItem{
			{SourceRelPath: "a.pdf", ConversionStatus: ragsync.StatusSuccess, MDDigest: "m1"},
			{SourceRelPath: "nested/b.pdf", ConversionStatus: ragsync.StatusSuccess, MDDigest: "m1", Stage1Canonical: true},
			{
				// Never converted: a stage-1 duplicate of nested/b.pdf. Its
				// canonical reference must follow b's stage-2 election to a.
				SourceRelPath:          "nested/copy-of-b.pdf",
				ConversionStatus:       ragsync.StatusSkippedDupe,
				Stage1CanonicalRelPath: "nested/b.pdf",
			},
		}

		ragsync.ApplyStage2Dedup(items)

		require.False(t, items[2].Canonical)
		assert.Equal(t, "a.pdf", items[2].CanonicalRelPath)
	})

	t.Run("failed conversions are excluded", func(t *testing.T) {
		t.Parallel()

		items := []*ragsync.ScanItem{
			{SourceRelPath: "a.pdf", ConversionStatus: ragsync.StatusFailure, MDDigest: "m1"},
		}

		ragsync.ApplyStage2Dedup(items)

		assert.False(t, items[0].Canonical)
	})
}

func TestAssignFileSources(t *testing.T) {
	t.Parallel()

	items := []*ragsync.ScanItem{
		{SourceRelPath: "a.pdf", Canonical: true, ConversionStatus: ragsync.StatusSuccess},
		{SourceRelPath: "b.pdf", Canonical: false, ConversionStatus: ragsync.StatusSuccess},
		{SourceRelPath: "c.pdf", Canonical: true, ConversionStatus: ragsync.StatusFailure},
	}

	ragsync.AssignFileSources(items, "ragsync")

	assert.Equal(t, "ragsync/a.pdf", items[0].RAG.FileSource)
	assert.Empty(t, items[1].RAG.FileSource)
	assert.Empty(t, items[2].RAG.FileSource)
}

func TestBuildFileSource(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		prefix  string
		relPath string
		want    string
	}{
		{name: "prefix joined with slash", prefix: "ragsync", relPath: "docs/a.pdf", want: "ragsync/docs/a.pdf"},
		{name: "trailing prefix slashes trimmed", prefix: "ragsync//", relPath: "a.pdf", want: "ragsync/a.pdf"},
		{name: "windows separators normalized", prefix: "ragsync", relPath: `docs\a.pdf`, want: "ragsync/docs/a.pdf"},
		{name: "empty prefix yields bare path", prefix: "", relPath: "a.pdf", want: "a.pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, ragsync.BuildFileSource(tt.prefix, tt.relPath))
		})
	}
}
