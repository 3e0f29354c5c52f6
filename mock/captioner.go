package mock

import (
	"context"

	"github.com/akowalczyk/ragsync"
)

var _ ragsync.Captioner = (*Captioner)(nil)

// Captioner is a mock implementation of ragsync.Captioner.
type Captioner struct {
	DescribeFn func(ctx context.Context, imageData []byte, mimeType string) (*ragsync.CaptionResult, error)
	ModelFn    func() string
	PromptFn   func() string
}

func (c *Captioner) Describe(ctx context.Context, imageData []byte, mimeType string) (*ragsync.CaptionResult, error) {
	return c.DescribeFn(ctx, imageData, mimeType)
}

func (c *Captioner) Model() string {
	if c.ModelFn == nil {
		return "mock-model"
	}
	return c.ModelFn()
}

func (c *Captioner) Prompt() string {
	if c.PromptFn == nil {
		return "mock-prompt"
	}
	return c.PromptFn()
}
