package ragsync

import (
	"context"
	"strings"
)

// RemoteDocument is a document tracked by the retrieval index.
type RemoteDocument struct {
	// DocID is the index-assigned document identifier.
	DocID string `json:"id"`
	// FileSource is the stable identifier joining the document to a local
	// manifest item. The index reports it as the document's file path.
	FileSource string `json:"file_path"`
	// Status is the index's processing status for the document.
	Status string `json:"status"`
}

// InsertText is a single document payload for index insertion.
type InsertText struct {
	Text       string
	FileSource string
}

// Index is the remote retrieval index.
type Index interface {
	// ListDocuments returns every tracked document, following pagination
	// to exhaustion.
	ListDocuments(ctx context.Context) ([]RemoteDocument, error)
	// InsertTexts submits a batch of documents for ingestion.
	InsertTexts(ctx context.Context, texts []InsertText) error
	// DeleteDocuments removes documents by id.
	DeleteDocuments(ctx context.Context, docIDs []string) error
	// PipelineStatus returns the ingestion pipeline's raw status payload.
	// The payload shape varies across server versions; use CountInflight
	// to interpret it.
	PipelineStatus(ctx context.Context) (map[string]any, error)
}

// Exact status values the index is known to report.
var (
	inflightStatuses = map[string]struct{}{
		"pending": {}, "processing": {}, "queueing": {}, "queued": {},
		"running": {}, "in_progress": {},
	}
	failedStatuses = map[string]struct{}{"failed": {}, "error": {}}
)

// inflightKeyTokens identify counters of in-progress work inside the
// pipeline status payload.
var inflightKeyTokens = []string{"pending", "processing", "running", "queue", "inflight"}

// IsInflightStatus reports whether a document status means ingestion is
// still in progress.
func IsInflightStatus(status string) bool {
	lowered := strings.ToLower(status)
	if lowered == "" {
		return false
	}
	if _, ok := inflightStatuses[lowered]; ok {
		return true
	}
	return strings.Contains(lowered, "pending") || strings.Contains(lowered, "processing") ||
		strings.Contains(lowered, "queue") || strings.Contains(lowered, "running")
}

// IsFailedStatus reports whether a document status means ingestion failed.
func IsFailedStatus(status string) bool {
	lowered := strings.ToLower(status)
	if lowered == "" {
		return false
	}
	if _, ok := failedStatuses[lowered]; ok {
		return true
	}
	return strings.Contains(lowered, "fail") || strings.Contains(lowered, "error")
}

// CountInflight totals the numeric counters under in-flight-ish keys
// anywhere in the pipeline status payload. The payload shape is not
// stable across server versions, so the walk is fully recursive.
func CountInflight(payload any) int {
	switch value := payload.(type) {
	case map[string]any:
		total := 0
		for key, child := range value {
			total += CountInflight(child)
			if n, ok := asNumber(child); ok && isInflightKey(key) {
				total += n
			}
		}
		return total
	case []any:
		total := 0
		for _, child := range value {
			total += CountInflight(child)
		}
		return total
	default:
		return 0
	}
}

func isInflightKey(key string) bool {
	lowered := strings.ToLower(key)
	for _, token := range inflightKeyTokens {
		if strings.Contains(lowered, token) {
			return true
		}
	}
	return false
}

func asNumber(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	default:
		return 0, false
	}
}
