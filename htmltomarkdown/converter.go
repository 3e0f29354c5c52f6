// Package htmltomarkdown converts HTML content to Markdown.
package htmltomarkdown

import (
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"

	"github.com/akowalczyk/ragsync"
)

// Ensure Converter implements ragsync.HTMLConverter at compile time.
var _ ragsync.HTMLConverter = (*Converter)(nil)

// Converter wraps html-to-markdown to convert HTML to Markdown.
type Converter struct {
	conv *converter.Converter
}

// NewConverter creates a new Converter.
func NewConverter() *Converter {
	conv := converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
	return &Converter{conv: conv}
}

// ConvertHTML transforms HTML content into Markdown.
func (c *Converter) ConvertHTML(html []byte) (string, error) {
	if strings.TrimSpace(string(html)) == "" {
		return "", ragsync.Errorf(ragsync.EINVALID, "empty HTML input")
	}

	result, err := c.conv.ConvertString(string(html))
	if err != nil {
		return "", err
	}

	return result, nil
}
