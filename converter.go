package ragsync

import (
	"context"
	"strings"
	"time"
)

// ConvertFormat selects the converter endpoint variant.
type ConvertFormat string

const (
	// FormatInline returns markdown and the structured document inline in
	// the response body.
	FormatInline ConvertFormat = "inline"
	// FormatArchive returns a zip archive containing markdown, the
	// structured document, and extracted images.
	FormatArchive ConvertFormat = "archive"
)

// ConvertRequest describes a single document conversion.
type ConvertRequest struct {
	// Filename is the original filename, used by the converter to pick a
	// parsing backend.
	Filename string
	// Data is the raw document bytes.
	Data []byte
	// Format selects inline or archive output.
	Format ConvertFormat
	// ExtractImages requests per-picture image export where the format
	// supports it.
	ExtractImages bool
}

// ConvertResult is the outcome of a conversion. Exactly one of the Output
// implementations is set on success.
type ConvertResult struct {
	// Status is the converter's terminal status string.
	Status string
	// TaskID identifies the asynchronous task, when one was used.
	TaskID string
	// ProcessingTime is the converter-reported duration.
	ProcessingTime time.Duration
	// Errors carries converter-reported diagnostics, fatal or not.
	Errors []string
	// Output holds the converted artifacts.
	Output ConvertOutput
}

// ConvertOutput is the converted artifact payload. Implementations are
// InlineOutput and ArchiveOutput.
type ConvertOutput interface {
	isConvertOutput()
}

// InlineOutput carries markdown and the structured document returned
// directly in the response body.
type InlineOutput struct {
	Markdown string
	// Document is the structured document JSON, verbatim.
	Document []byte
}

func (InlineOutput) isConvertOutput() {}

// ArchiveOutput carries the zip archive bytes for archive-format
// conversions.
type ArchiveOutput struct {
	Zip []byte
}

func (ArchiveOutput) isConvertOutput() {}

// Converter turns source documents into markdown and structured output.
type Converter interface {
	Convert(ctx context.Context, req ConvertRequest) (*ConvertResult, error)
}

// OCR failure triage. Conversion backends report OCR problems as free-form
// diagnostic strings; these helpers classify the ones with known handling.
var nonFatalOCRMarkers = []string{
	"osd failed",
	"too few characters",
	"invalid resolution",
}

var missingLangMarkers = []string{
	"tessdata",
	"language",
	"tesseract",
}

// IsNonFatalOCRError reports whether a converter diagnostic describes a
// per-page OCR problem that does not invalidate the document output.
func IsNonFatalOCRError(msg string) bool {
	return containsAnyFold(msg, nonFatalOCRMarkers)
}

// IsMissingOCRLanguageError reports whether a converter diagnostic indicates
// a missing OCR language pack. These errors silently degrade text quality
// for entire documents, so runs can be configured to abort on them.
func IsMissingOCRLanguageError(msg string) bool {
	if IsNonFatalOCRError(msg) {
		return false
	}
	return containsAnyFold(msg, missingLangMarkers)
}

func containsAnyFold(msg string, markers []string) bool {
	lowered := strings.ToLower(msg)
	for _, marker := range markers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}
