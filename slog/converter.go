// Package slog provides logging decorators for pipeline collaborators.
package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/akowalczyk/ragsync"
)

// Ensure LoggingConverter implements ragsync.Converter.
var _ ragsync.Converter = (*LoggingConverter)(nil)

// LoggingConverter wraps a Converter with per-document logging.
type LoggingConverter struct {
	next   ragsync.Converter
	logger *slog.Logger
}

// NewLoggingConverter creates a new LoggingConverter.
func NewLoggingConverter(next ragsync.Converter, logger *slog.Logger) *LoggingConverter {
	return &LoggingConverter{next: next, logger: logger}
}

// Convert delegates to the wrapped converter and logs the outcome.
func (c *LoggingConverter) Convert(ctx context.Context, req ragsync.ConvertRequest) (result *ragsync.ConvertResult, err error) {
	defer func(begin time.Time) {
		status := ""
		if result != nil {
			status = result.Status
		}
		c.logger.Info("document conversion",
			"filename", req.Filename,
			"size", len(req.Data),
			"status", status,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return c.next.Convert(ctx, req)
}
