// Package trafilatura extracts main content from HTML pages.
package trafilatura

import (
	"bytes"
	"context"

	"github.com/markusmobius/go-trafilatura"
	"golang.org/x/net/html"

	"github.com/akowalczyk/ragsync"
)

// Ensure Extractor implements ragsync.Extractor at compile time.
var _ ragsync.Extractor = (*Extractor)(nil)

// Extractor wraps go-trafilatura to isolate the main content of an HTML
// page, dropping navigation, headers, and footers.
type Extractor struct{}

// NewExtractor creates a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract processes raw HTML and returns the main content as HTML.
func (e *Extractor) Extract(ctx context.Context, rawHTML []byte) ([]byte, error) {
	if len(rawHTML) == 0 {
		return nil, ragsync.Errorf(ragsync.EINVALID, "empty HTML input")
	}

	opts := trafilatura.Options{
		EnableFallback: true,
	}

	result, err := trafilatura.Extract(bytes.NewReader(rawHTML), opts)
	if err != nil {
		return nil, err
	}
	if result.ContentNode == nil {
		return nil, ragsync.Errorf(ragsync.ECONVERSION, "no main content found")
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, result.ContentNode); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
