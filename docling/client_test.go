package docling_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akowalczyk/ragsync"
	"github.com/akowalczyk/ragsync/docling"
)

func TestConvertSync(t *testing.T) {
	t.Parallel()

	t.Run("inline json response", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "/v1/convert/file", r.URL.Path)

			require.NoError(t, r.ParseMultipartForm(1 << 20))
			assert.Equal(t, []string{"md", "json"}, r.MultipartForm.Value["to_formats"])
			assert.Equal(t, []string{"inbody"}, r.MultipartForm.Value["target_type"])
			assert.Equal(t, []string{"true"}, r.MultipartForm.Value["do_ocr"])
			assert.Equal(t, []string{"eng", "deu"}, r.MultipartForm.Value["ocr_lang"])

			files := r.MultipartForm.File["files"]
			require.Len(t, files, 1)
			assert.Equal(t, "report.pdf", files[0].Filename)

			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"status":"success","document":{"md_content":"# Report","json_content":{"texts":[]}},"processing_time":1.5}`)
		}))
		defer srv.Close()

		client := docling.NewClient(ragsync.ConverterConfig{
			BaseURL:      srv.URL,
			TimeoutSec:   5,
			ImagesScale:  2.0,
			OCRLanguages: []string{"eng", "deu"},
		})

		result, err := client.Convert(context.Background(), ragsync.ConvertRequest{
			Filename: "report.pdf",
			Data:     []byte("%PDF"),
			Format:   ragsync.FormatInline,
		})
		require.NoError(t, err)

		assert.Equal(t, "success", result.Status)
		assert.Equal(t, 1500*time.Millisecond, result.ProcessingTime)

		inline, ok := result.Output.(ragsync.InlineOutput)
		require.True(t, ok)
		assert.Equal(t, "# Report", inline.Markdown)
		assert.JSONEq(t, `{"texts":[]}`, string(inline.Document))
	})

	t.Run("zip response for archive format", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseMultipartForm(1 << 20))
			assert.Equal(t, []string{"zip"}, r.MultipartForm.Value["target_type"])
			assert.Equal(t, []string{"true"}, r.MultipartForm.Value["include_images"])

			w.Header().Set("Content-Type", "application/zip")
			_, _ = w.Write([]byte("PKzipbytes"))
		}))
		defer srv.Close()

		client := docling.NewClient(ragsync.ConverterConfig{BaseURL: srv.URL, TimeoutSec: 5})

		result, err := client.Convert(context.Background(), ragsync.ConvertRequest{
			Filename:      "report.pdf",
			Data:          []byte("%PDF"),
			Format:        ragsync.FormatArchive,
			ExtractImages: true,
		})
		require.NoError(t, err)

		assert.Equal(t, "success", result.Status)
		archive, ok := result.Output.(ragsync.ArchiveOutput)
		require.True(t, ok)
		assert.Equal(t, []byte("PKzipbytes"), archive.Zip)
	})

	t.Run("http error is EUNAVAILABLE", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer srv.Close()

		client := docling.NewClient(ragsync.ConverterConfig{BaseURL: srv.URL, TimeoutSec: 5})

		_, err := client.Convert(context.Background(), ragsync.ConvertRequest{Filename: "a.pdf"})
		require.Error(t, err)
		assert.Equal(t, ragsync.EUNAVAILABLE, ragsync.ErrorCode(err))
	})
}

func TestConvertAsync(t *testing.T) {
	t.Parallel()

	t.Run("polls until success and fetches the result", func(t *testing.T) {
		t.Parallel()

		var polls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/v1/convert/file/async":
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, `{"task_id":"t-1","task_status":"pending"}`)
			case "/v1/status/poll/t-1":
				w.Header().Set("Content-Type", "application/json")
				status := "started"
				if polls.Add(1) >= 2 {
					status = "success"
				}
				_ = json.NewEncoder(w).Encode(map[string]string{"task_id": "t-1", "task_status": status})
			case "/v1/result/t-1":
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, `{"status":"success","document":{"md_content":"# Async"}}`)
			default:
				http.NotFound(w, r)
			}
		}))
		defer srv.Close()

		client := docling.NewClient(
			ragsync.ConverterConfig{BaseURL: srv.URL, UseAsync: true, TimeoutSec: 5, AsyncTimeoutSec: 10},
			docling.WithPollInterval(time.Millisecond),
		)

		result, err := client.Convert(context.Background(), ragsync.ConvertRequest{Filename: "a.pdf"})
		require.NoError(t, err)

		assert.Equal(t, "success", result.Status)
		assert.Equal(t, "t-1", result.TaskID)
		inline, ok := result.Output.(ragsync.InlineOutput)
		require.True(t, ok)
		assert.Equal(t, "# Async", inline.Markdown)
		assert.GreaterOrEqual(t, polls.Load(), int32(2))
	})

	t.Run("task failure is a failed result not an error", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/v1/convert/file/async":
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, `{"task_id":"t-2","task_status":"pending"}`)
			case "/v1/status/poll/t-2":
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, `{"task_id":"t-2","task_status":"failure"}`)
			default:
				http.NotFound(w, r)
			}
		}))
		defer srv.Close()

		client := docling.NewClient(
			ragsync.ConverterConfig{BaseURL: srv.URL, UseAsync: true, TimeoutSec: 5, AsyncTimeoutSec: 10},
			docling.WithPollInterval(time.Millisecond),
		)

		result, err := client.Convert(context.Background(), ragsync.ConvertRequest{Filename: "a.pdf"})
		require.NoError(t, err)

		assert.Equal(t, "failure", result.Status)
		assert.Equal(t, "t-2", result.TaskID)
		assert.NotEmpty(t, result.Errors)
	})

	t.Run("cancelled context aborts polling", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"task_id":"t-3","task_status":"pending"}`)
		}))
		defer srv.Close()

		client := docling.NewClient(
			ragsync.ConverterConfig{BaseURL: srv.URL, UseAsync: true, TimeoutSec: 5, AsyncTimeoutSec: 60},
			docling.WithPollInterval(50*time.Millisecond),
		)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := client.Convert(ctx, ragsync.ConvertRequest{Filename: "a.pdf"})
		require.ErrorIs(t, err, context.Canceled)
	})
}
