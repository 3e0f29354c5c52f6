package fs

import (
	"os"
	"path/filepath"
	"time"

	"github.com/akowalczyk/ragsync"
)

// StateStore persists pipeline state files under a single directory. Loads
// tolerate missing or corrupt files by returning empty state; saves are
// atomic.
type StateStore struct {
	dir string
	now func() time.Time
}

// NewStateStore creates a StateStore rooted at dir.
func NewStateStore(dir string) *StateStore {
	return &StateStore{dir: dir, now: time.Now}
}

func (s *StateStore) path(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *StateStore) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

// LoadScanState loads the prior scan snapshot. Missing or unreadable state
// yields a nil snapshot, which forces a full rescan.
func (s *StateStore) LoadScanState() *ragsync.ScanState {
	var state ragsync.ScanState
	if err := readJSON(s.path(ragsync.ScanStateFilename), &state); err != nil {
		return nil
	}
	return &state
}

// SaveScanState persists the scan snapshot, stamping it with the current
// time.
func (s *StateStore) SaveScanState(state *ragsync.ScanState) error {
	state.GeneratedAt = s.timestamp()
	return writeJSON(s.path(ragsync.ScanStateFilename), state)
}

// LoadCaptionCache loads the caption cache, returning an empty cache bound
// to the given model and prompt when none exists. Existing entries are
// discarded when the model or prompt changed.
func (s *StateStore) LoadCaptionCache(model, prompt string) *ragsync.CaptionCache {
	var cache ragsync.CaptionCache
	if err := readJSON(s.path(ragsync.CaptionCacheFilename), &cache); err != nil {
		return ragsync.NewCaptionCache(model, prompt)
	}
	cache.EnsureMeta(model, prompt)
	return &cache
}

// SaveCaptionCache persists the caption cache.
func (s *StateStore) SaveCaptionCache(cache *ragsync.CaptionCache) error {
	return writeJSON(s.path(ragsync.CaptionCacheFilename), cache)
}

// LoadSyncState loads the reconciliation record, returning an empty record
// when none exists.
func (s *StateStore) LoadSyncState() *ragsync.SyncState {
	var state ragsync.SyncState
	if err := readJSON(s.path(ragsync.SyncStateFilename), &state); err != nil {
		return ragsync.NewSyncState()
	}
	if state.Entries == nil {
		state.Entries = make(map[string]ragsync.SyncEntry)
	}
	return &state
}

// SaveSyncState persists the reconciliation record, stamping it with the
// current time.
func (s *StateStore) SaveSyncState(state *ragsync.SyncState) error {
	state.GeneratedAt = s.timestamp()
	return writeJSON(s.path(ragsync.SyncStateFilename), state)
}

// Clear removes every state file. Missing files are not an error.
func (s *StateStore) Clear() error {
	for _, name := range []string{
		ragsync.ScanStateFilename,
		ragsync.CaptionCacheFilename,
		ragsync.SyncStateFilename,
	} {
		if err := os.Remove(s.path(name)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
