// Package lightrag implements the retrieval index client.
package lightrag

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/akowalczyk/ragsync"
)

// Ensure Client implements ragsync.Index at compile time.
var _ ragsync.Index = (*Client)(nil)

// Client talks to a LightRAG server's document API. Requests authenticate
// with an API key header.
type Client struct {
	baseURL        string
	apiKey         string
	pageSize       int
	deleteFile     bool
	deleteLLMCache bool
	httpClient     *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a Client from the index configuration.
func NewClient(cfg ragsync.IndexConfig, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:         cfg.APIKey,
		pageSize:       cfg.ListPageSize,
		deleteFile:     cfg.DeleteFile,
		deleteLLMCache: cfg.DeleteLLMCache,
		httpClient:     &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type listRequest struct {
	Page          int    `json:"page"`
	PageSize      int    `json:"page_size"`
	SortField     string `json:"sort_field"`
	SortDirection string `json:"sort_direction"`
}

type listResponse struct {
	Documents  []ragsync.RemoteDocument `json:"documents"`
	Pagination struct {
		HasNext bool `json:"has_next"`
	} `json:"pagination"`
}

// ListDocuments pages through the full document listing.
func (c *Client) ListDocuments(ctx context.Context) ([]ragsync.RemoteDocument, error) {
	var out []ragsync.RemoteDocument
	for page := 1; ; page++ {
		req := listRequest{
			Page:          page,
			PageSize:      c.pageSize,
			SortField:     "updated_at",
			SortDirection: "desc",
		}
		var resp listResponse
		if err := c.do(ctx, http.MethodPost, "/documents/paginated", req, &resp); err != nil {
			return nil, err
		}
		out = append(out, resp.Documents...)
		if !resp.Pagination.HasNext {
			return out, nil
		}
	}
}

type insertRequest struct {
	Texts       []string `json:"texts"`
	FileSources []string `json:"file_sources"`
}

// InsertTexts submits a batch of documents for ingestion, labelled with
// their file sources.
func (c *Client) InsertTexts(ctx context.Context, texts []ragsync.InsertText) error {
	if len(texts) == 0 {
		return nil
	}
	req := insertRequest{
		Texts:       make([]string, len(texts)),
		FileSources: make([]string, len(texts)),
	}
	for i, t := range texts {
		req.Texts[i] = t.Text
		req.FileSources[i] = t.FileSource
	}
	return c.do(ctx, http.MethodPost, "/documents/texts", req, nil)
}

type deleteRequest struct {
	DocIDs         []string `json:"doc_ids"`
	DeleteFile     bool     `json:"delete_file"`
	DeleteLLMCache bool     `json:"delete_llm_cache"`
}

// DeleteDocuments removes documents by id.
func (c *Client) DeleteDocuments(ctx context.Context, docIDs []string) error {
	if len(docIDs) == 0 {
		return nil
	}
	req := deleteRequest{
		DocIDs:         docIDs,
		DeleteFile:     c.deleteFile,
		DeleteLLMCache: c.deleteLLMCache,
	}
	return c.do(ctx, http.MethodDelete, "/documents/delete_document", req, nil)
}

// PipelineStatus returns the ingestion pipeline's raw status payload.
func (c *Client) PipelineStatus(ctx context.Context) (map[string]any, error) {
	var status map[string]any
	if err := c.do(ctx, http.MethodGet, "/documents/pipeline_status", nil, &status); err != nil {
		return nil, err
	}
	return status, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ragsync.Errorf(ragsync.EUNAVAILABLE, "index unreachable: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return ragsync.Errorf(ragsync.EUNAVAILABLE, "index returned %d: %s",
			resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return ragsync.Errorf(ragsync.EINTERNAL, "decode index response: %v", err)
	}
	return nil
}
