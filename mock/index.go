package mock

import (
	"context"

	"github.com/akowalczyk/ragsync"
)

var _ ragsync.Index = (*Index)(nil)

// Index is a mock implementation of ragsync.Index.
type Index struct {
	ListDocumentsFn   func(ctx context.Context) ([]ragsync.RemoteDocument, error)
	InsertTextsFn     func(ctx context.Context, texts []ragsync.InsertText) error
	DeleteDocumentsFn func(ctx context.Context, docIDs []string) error
	PipelineStatusFn  func(ctx context.Context) (map[string]any, error)
}

func (i *Index) ListDocuments(ctx context.Context) ([]ragsync.RemoteDocument, error) {
	return i.ListDocumentsFn(ctx)
}

func (i *Index) InsertTexts(ctx context.Context, texts []ragsync.InsertText) error {
	return i.InsertTextsFn(ctx, texts)
}

func (i *Index) DeleteDocuments(ctx context.Context, docIDs []string) error {
	return i.DeleteDocumentsFn(ctx, docIDs)
}

func (i *Index) PipelineStatus(ctx context.Context) (map[string]any, error) {
	return i.PipelineStatusFn(ctx)
}
