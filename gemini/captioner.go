// Package gemini implements vision captioning using Google Gemini.
package gemini

import (
	"context"
	"strings"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/akowalczyk/ragsync"
)

// Ensure Captioner implements ragsync.Captioner at compile time.
var _ ragsync.Captioner = (*Captioner)(nil)

// Captioner describes images with a Gemini vision model. Each image costs
// one request for the caption and, when a title prompt is configured, a
// second for the title. Requests are rate limited client-side.
type Captioner struct {
	client      *genai.Client
	model       string
	prompt      string
	titlePrompt string
	limiter     *rate.Limiter
}

// NewCaptioner creates a Captioner from the captioning configuration.
func NewCaptioner(client *genai.Client, cfg ragsync.CaptioningConfig) *Captioner {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), 1)
	}
	return &Captioner{
		client:      client,
		model:       cfg.Model,
		prompt:      cfg.Prompt,
		titlePrompt: cfg.TitlePrompt,
		limiter:     limiter,
	}
}

// Model returns the configured model identifier.
func (c *Captioner) Model() string { return c.model }

// Prompt returns the configured caption prompt.
func (c *Captioner) Prompt() string { return c.prompt }

// Describe captions one image, adding a short title when a title prompt is
// configured. A failed title request degrades to an empty title rather
// than failing the caption.
func (c *Captioner) Describe(ctx context.Context, imageData []byte, mimeType string) (*ragsync.CaptionResult, error) {
	if len(imageData) == 0 {
		return nil, ragsync.Errorf(ragsync.EINVALID, "image data required")
	}

	caption, err := c.generate(ctx, imageData, mimeType, c.prompt)
	if err != nil {
		return nil, err
	}

	result := &ragsync.CaptionResult{Caption: caption}
	if c.titlePrompt != "" {
		title, err := c.generate(ctx, imageData, mimeType, c.titlePrompt)
		if err == nil {
			result.Title = title
		}
	}
	return result, nil
}

func (c *Captioner) generate(ctx context.Context, imageData []byte, mimeType, prompt string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	result, err := c.client.Models.GenerateContent(ctx, c.model,
		[]*genai.Content{{
			Parts: []*genai.Part{
				{InlineData: &genai.Blob{MIMEType: mimeType, Data: imageData}},
				{Text: prompt},
			},
		}},
		nil,
	)
	if err != nil {
		return "", ragsync.Errorf(ragsync.ECAPTIONING, "generate caption: %v", err)
	}
	if result == nil {
		return "", ragsync.Errorf(ragsync.EINTERNAL, "gemini returned nil result")
	}
	return strings.TrimSpace(result.Text()), nil
}
