package fs_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akowalczyk/ragsync/fs"
)

func TestWriteFileAtomic(t *testing.T) {
	t.Parallel()

	t.Run("creates parent directories", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "a", "b", "c.txt")
		require.NoError(t, fs.WriteFileAtomic(path, []byte("hello")))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "hello", string(data))
	})

	t.Run("overwrites existing content", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "f.txt")
		require.NoError(t, fs.WriteFileAtomic(path, []byte("one")))
		require.NoError(t, fs.WriteFileAtomic(path, []byte("two")))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "two", string(data))
	})

	t.Run("leaves no temporary files behind", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		require.NoError(t, fs.WriteFileAtomic(filepath.Join(dir, "f.txt"), []byte("x")))

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "f.txt", entries[0].Name())
	})
}

func TestFileExists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	assert.True(t, fs.FileExists(path))
	assert.False(t, fs.FileExists(filepath.Join(dir, "missing.txt")))
	assert.False(t, fs.FileExists(dir), "directories are not files")
}
