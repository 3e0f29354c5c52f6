package mock

import (
	"context"

	"github.com/akowalczyk/ragsync"
)

var _ ragsync.Converter = (*Converter)(nil)

// Converter is a mock implementation of ragsync.Converter.
type Converter struct {
	ConvertFn func(ctx context.Context, req ragsync.ConvertRequest) (*ragsync.ConvertResult, error)
}

func (c *Converter) Convert(ctx context.Context, req ragsync.ConvertRequest) (*ragsync.ConvertResult, error) {
	return c.ConvertFn(ctx, req)
}
