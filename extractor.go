package ragsync

import "context"

// Extractor isolates the main content of an HTML page, dropping chrome
// like navigation, headers, and footers.
type Extractor interface {
	Extract(ctx context.Context, html []byte) ([]byte, error)
}

// HTMLConverter converts extracted HTML content to markdown.
type HTMLConverter interface {
	ConvertHTML(html []byte) (string, error)
}
