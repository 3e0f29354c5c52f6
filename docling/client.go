// Package docling implements the document conversion service client.
package docling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/akowalczyk/ragsync"
)

// Ensure Client implements ragsync.Converter at compile time.
var _ ragsync.Converter = (*Client)(nil)

// Client converts documents via a docling-serve instance. Conversions run
// either synchronously in a single request or through the async task API
// with polling, depending on configuration.
type Client struct {
	baseURL      string
	useAsync     bool
	pollInterval time.Duration
	asyncTimeout time.Duration
	imagesScale  float64
	ocrLang      []string
	httpClient   *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithPollInterval overrides the async polling interval.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) { c.pollInterval = d }
}

// NewClient creates a Client from the converter configuration.
func NewClient(cfg ragsync.ConverterConfig, opts ...Option) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		useAsync:     cfg.UseAsync,
		pollInterval: time.Duration(cfg.AsyncPollIntervalSec) * time.Second,
		asyncTimeout: time.Duration(cfg.AsyncTimeoutSec * float64(time.Second)),
		imagesScale:  cfg.ImagesScale,
		ocrLang:      cfg.OCRLanguages,
		httpClient:   &http.Client{Timeout: time.Duration(cfg.TimeoutSec) * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Convert converts one document. Service-side document failures are
// reported in the result's Status and Errors; the returned error covers
// transport and protocol problems only.
func (c *Client) Convert(ctx context.Context, req ragsync.ConvertRequest) (*ragsync.ConvertResult, error) {
	if c.useAsync {
		return c.convertAsync(ctx, req)
	}
	return c.convertSync(ctx, req)
}

func (c *Client) convertSync(ctx context.Context, req ragsync.ConvertRequest) (*ragsync.ConvertResult, error) {
	resp, err := c.postConvert(ctx, c.baseURL+"/v1/convert/file", req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return parseResult(resp)
}

func (c *Client) convertAsync(ctx context.Context, req ragsync.ConvertRequest) (*ragsync.ConvertResult, error) {
	resp, err := c.postConvert(ctx, c.baseURL+"/v1/convert/file/async", req)
	if err != nil {
		return nil, err
	}
	task, err := decodeTask(resp)
	if err != nil {
		return nil, err
	}
	if task.TaskID == "" {
		return &ragsync.ConvertResult{Status: "failure", Errors: []string{"missing task_id"}}, nil
	}

	var deadline time.Time
	if c.asyncTimeout > 0 {
		deadline = time.Now().Add(c.asyncTimeout)
	}

	status := task.TaskStatus
	for status != "success" && status != "failure" {
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return &ragsync.ConvertResult{
				Status: "failure",
				TaskID: task.TaskID,
				Errors: []string{"conversion task timed out"},
			}, nil
		}
		if err := sleepCtx(ctx, c.pollInterval); err != nil {
			return nil, err
		}
		poll, err := c.get(ctx, c.baseURL+"/v1/status/poll/"+task.TaskID)
		if err != nil {
			return nil, err
		}
		polled, err := decodeTask(poll)
		if err != nil {
			return nil, err
		}
		status = polled.TaskStatus
	}

	if status != "success" {
		return &ragsync.ConvertResult{
			Status: "failure",
			TaskID: task.TaskID,
			Errors: []string{"conversion task failed"},
		}, nil
	}

	result, err := c.get(ctx, c.baseURL+"/v1/result/"+task.TaskID)
	if err != nil {
		return nil, err
	}
	defer result.Body.Close()
	parsed, err := parseResult(result)
	if err != nil {
		return nil, err
	}
	parsed.TaskID = task.TaskID
	return parsed, nil
}

func (c *Client) postConvert(ctx context.Context, url string, req ragsync.ConvertRequest) (*http.Response, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, field := range c.formFields(req) {
		if err := mw.WriteField(field.key, field.value); err != nil {
			return nil, err
		}
	}
	fw, err := mw.CreateFormFile("files", req.Filename)
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(req.Data); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, ragsync.Errorf(ragsync.EUNAVAILABLE, "conversion service unreachable: %v", err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, statusError(resp)
	}
	return resp, nil
}

type formField struct {
	key   string
	value string
}

// formFields mirrors the service's conversion options form. Repeated keys
// carry list values.
func (c *Client) formFields(req ragsync.ConvertRequest) []formField {
	target := "inbody"
	if req.Format == ragsync.FormatArchive {
		target = "zip"
	}

	fields := []formField{
		{"to_formats", "md"},
		{"to_formats", "json"},
		{"target_type", target},
		{"image_export_mode", "referenced"},
		{"include_images", strconv.FormatBool(req.ExtractImages)},
		{"images_scale", strconv.FormatFloat(c.imagesScale, 'f', -1, 64)},
		{"do_ocr", "true"},
		{"ocr_engine", "tesseract"},
		{"pdf_backend", "dlparse_v4"},
		{"pipeline", "standard"},
	}
	for _, lang := range c.ocrLang {
		fields = append(fields, formField{"ocr_lang", lang})
	}
	return fields
}

func (c *Client) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, ragsync.Errorf(ragsync.EUNAVAILABLE, "conversion service unreachable: %v", err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, statusError(resp)
	}
	return resp, nil
}

type taskResponse struct {
	TaskID     string `json:"task_id"`
	TaskStatus string `json:"task_status"`
}

func decodeTask(resp *http.Response) (*taskResponse, error) {
	defer resp.Body.Close()
	var task taskResponse
	if err := json.NewDecoder(resp.Body).Decode(&task); err != nil {
		return nil, ragsync.Errorf(ragsync.EINTERNAL, "decode task response: %v", err)
	}
	return &task, nil
}

type convertResponse struct {
	Status   string `json:"status"`
	Document struct {
		MDContent   string          `json:"md_content"`
		JSONContent json.RawMessage `json:"json_content"`
	} `json:"document"`
	ProcessingTime float64 `json:"processing_time"`
	Errors         []any   `json:"errors"`
}

// parseResult handles both response shapes: JSON bodies carry inline
// content, anything else is the zip archive.
func parseResult(resp *http.Response) (*ragsync.ConvertResult, error) {
	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if strings.Contains(contentType, "application/json") {
		var body convertResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return nil, ragsync.Errorf(ragsync.EINTERNAL, "decode conversion response: %v", err)
		}
		status := body.Status
		if status == "" {
			status = "success"
		}
		errs := make([]string, 0, len(body.Errors))
		for _, e := range body.Errors {
			errs = append(errs, fmt.Sprint(e))
		}
		var doc []byte
		if len(body.Document.JSONContent) > 0 && string(body.Document.JSONContent) != "null" {
			doc = body.Document.JSONContent
		}
		return &ragsync.ConvertResult{
			Status:         status,
			ProcessingTime: time.Duration(body.ProcessingTime * float64(time.Second)),
			Errors:         errs,
			Output: ragsync.InlineOutput{
				Markdown: body.Document.MDContent,
				Document: doc,
			},
		}, nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &ragsync.ConvertResult{
		Status: "success",
		Output: ragsync.ArchiveOutput{Zip: data},
	}, nil
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return ragsync.Errorf(ragsync.EUNAVAILABLE, "conversion service returned %d: %s",
		resp.StatusCode, strings.TrimSpace(string(body)))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
