package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/akowalczyk/ragsync"
)

// Ensure LoggingIndex implements ragsync.Index.
var _ ragsync.Index = (*LoggingIndex)(nil)

// LoggingIndex wraps an Index with operation logging.
type LoggingIndex struct {
	next   ragsync.Index
	logger *slog.Logger
}

// NewLoggingIndex creates a new LoggingIndex.
func NewLoggingIndex(next ragsync.Index, logger *slog.Logger) *LoggingIndex {
	return &LoggingIndex{next: next, logger: logger}
}

// ListDocuments delegates to the wrapped index and logs the operation.
func (i *LoggingIndex) ListDocuments(ctx context.Context) (docs []ragsync.RemoteDocument, err error) {
	defer func(begin time.Time) {
		i.logger.Info("index listing",
			"documents", len(docs),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return i.next.ListDocuments(ctx)
}

// InsertTexts delegates to the wrapped index and logs the operation.
func (i *LoggingIndex) InsertTexts(ctx context.Context, texts []ragsync.InsertText) (err error) {
	defer func(begin time.Time) {
		i.logger.Info("index insert",
			"count", len(texts),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return i.next.InsertTexts(ctx, texts)
}

// DeleteDocuments delegates to the wrapped index and logs the operation.
func (i *LoggingIndex) DeleteDocuments(ctx context.Context, docIDs []string) (err error) {
	defer func(begin time.Time) {
		i.logger.Info("index delete",
			"count", len(docIDs),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return i.next.DeleteDocuments(ctx, docIDs)
}

// PipelineStatus delegates to the wrapped index and logs the operation.
func (i *LoggingIndex) PipelineStatus(ctx context.Context) (status map[string]any, err error) {
	defer func(begin time.Time) {
		i.logger.Debug("index pipeline status",
			"inflight", ragsync.CountInflight(status),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return i.next.PipelineStatus(ctx)
}
