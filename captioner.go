package ragsync

import "context"

// CaptionResult is a vision model's description of a single image.
type CaptionResult struct {
	// Caption is the full descriptive caption.
	Caption string
	// Title is a short title, possibly empty when the model produced none.
	Title string
}

// Captioner describes images with a vision model. Implementations identify
// themselves via Model and Prompt so cached captions can be invalidated
// wholesale when either changes.
type Captioner interface {
	Describe(ctx context.Context, imageData []byte, mimeType string) (*CaptionResult, error)
	Model() string
	Prompt() string
}
