package mock

import (
	"context"

	"github.com/akowalczyk/ragsync"
)

var _ ragsync.Extractor = (*Extractor)(nil)

// Extractor is a mock implementation of ragsync.Extractor.
type Extractor struct {
	ExtractFn func(ctx context.Context, html []byte) ([]byte, error)
}

func (e *Extractor) Extract(ctx context.Context, html []byte) ([]byte, error) {
	return e.ExtractFn(ctx, html)
}

var _ ragsync.HTMLConverter = (*HTMLConverter)(nil)

// HTMLConverter is a mock implementation of ragsync.HTMLConverter.
type HTMLConverter struct {
	ConvertHTMLFn func(html []byte) (string, error)
}

func (c *HTMLConverter) ConvertHTML(html []byte) (string, error) {
	return c.ConvertHTMLFn(html)
}
