// Package breaker wraps collaborators with circuit breakers so a degraded
// external service fails fast instead of stalling a long run.
package breaker

import (
	"context"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/akowalczyk/ragsync"
)

// Ensure Captioner implements ragsync.Captioner at compile time.
var _ ragsync.Captioner = (*Captioner)(nil)

// Captioner decorates a ragsync.Captioner with a circuit breaker. After
// repeated consecutive failures the breaker opens and captioning requests
// fail immediately until the cool-down elapses, so a degraded vision
// service does not cost a full timeout per image.
type Captioner struct {
	inner ragsync.Captioner
	cb    *gobreaker.CircuitBreaker[*ragsync.CaptionResult]
}

// NewCaptioner wraps a captioner in a circuit breaker.
func NewCaptioner(inner ragsync.Captioner) *Captioner {
	settings := gobreaker.Settings{
		Name: "captioner",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		Timeout: 2 * time.Minute,
	}
	return &Captioner{
		inner: inner,
		cb:    gobreaker.NewCircuitBreaker[*ragsync.CaptionResult](settings),
	}
}

// Describe captions one image through the breaker.
func (c *Captioner) Describe(ctx context.Context, imageData []byte, mimeType string) (*ragsync.CaptionResult, error) {
	result, err := c.cb.Execute(func() (*ragsync.CaptionResult, error) {
		return c.inner.Describe(ctx, imageData, mimeType)
	})
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return nil, ragsync.Errorf(ragsync.EUNAVAILABLE, "captioning suspended: %v", err)
	}
	return result, err
}

// Model returns the wrapped captioner's model identifier.
func (c *Captioner) Model() string { return c.inner.Model() }

// Prompt returns the wrapped captioner's caption prompt.
func (c *Captioner) Prompt() string { return c.inner.Prompt() }
