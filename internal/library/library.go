// Package library implements the HTTP client for a library server:
// book metadata lookup, range-aware audio streaming with byte-granular
// progress and cancellation, an optional external chapter-metadata
// lookup, and final chapter-list submission. Context-first signatures
// and error wrapping via pipelineerr sentinels follow net/http's
// documented streaming-download idiom.
package library

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/sirgibblets/achew-core/internal/model"
	"github.com/sirgibblets/achew-core/internal/pipelineerr"
)

// ReachabilityTimeout bounds the library-server reachability probe.
const ReachabilityTimeout = 10 * time.Second

// Client talks to a library server over HTTP.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// New returns a Client pointed at baseURL.
func New(baseURL string) *Client {
	return &Client{BaseURL: baseURL, HTTPClient: &http.Client{}}
}

// Book describes the item's metadata as returned by the library server.
type Book struct {
	ID       string                `json:"id"`
	Duration float64               `json:"duration"`
	Files    []model.AudioFile     `json:"files"`
	Chapters []model.SimpleChapter `json:"chapters,omitempty"`
}

// FetchBook fetches book metadata for itemID.
func (c *Client) FetchBook(ctx context.Context, itemID string) (*Book, error) {
	url := fmt.Sprintf("%s/books/%s", c.BaseURL, itemID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", pipelineerr.ErrInput, err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch book: %v", pipelineerr.ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: library server returned %s", pipelineerr.ErrTransient, resp.Status)
	}

	var book Book
	if err := json.NewDecoder(resp.Body).Decode(&book); err != nil {
		return nil, fmt.Errorf("%w: decode book: %v", pipelineerr.ErrTransient, err)
	}
	return &book, nil
}

// ProgressFunc reports bytes downloaded so far and the file's total
// size (0 if unknown).
type ProgressFunc func(downloaded, total int64)

// DownloadFile streams one audio file to destPath, range-aware (resumes
// from an existing partial file) and cancellable via ctx.
func (c *Client) DownloadFile(ctx context.Context, remotePath, destPath string, onProgress ProgressFunc) error {
	var startOffset int64
	if fi, err := os.Stat(destPath); err == nil {
		startOffset = fi.Size()
	}

	url := fmt.Sprintf("%s/files/%s", c.BaseURL, remotePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", pipelineerr.ErrInput, err)
	}
	if startOffset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", startOffset))
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: download: %v", pipelineerr.ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return fmt.Errorf("%w: library server returned %s", pipelineerr.ErrTransient, resp.Status)
	}

	flags := os.O_CREATE | os.O_WRONLY
	if resp.StatusCode == http.StatusPartialContent {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
		startOffset = 0
	}
	f, err := os.OpenFile(destPath, flags, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open dest file: %v", pipelineerr.ErrTransient, err)
	}
	defer f.Close()

	total := startOffset + resp.ContentLength
	downloaded := startOffset
	buf := make([]byte, 64*1024)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				return fmt.Errorf("%w: write dest file: %v", pipelineerr.ErrTransient, werr)
			}
			downloaded += int64(n)
			if onProgress != nil {
				onProgress(downloaded, total)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return fmt.Errorf("%w: stream download: %v", pipelineerr.ErrTransient, rerr)
		}
	}
	return nil
}

// ExternalChapter is one entry from the optional metadata-source
// lookup (e.g. an ASIN-keyed catalog).
type ExternalChapter struct {
	StartOffsetMs float64 `json:"startOffsetMs"`
	Title         string  `json:"title"`
}

// FetchExternalChapters queries the optional metadata source for a known
// external identifier.
func (c *Client) FetchExternalChapters(ctx context.Context, externalID string) ([]ExternalChapter, error) {
	url := fmt.Sprintf("%s/metadata/%s/chapters", c.BaseURL, externalID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", pipelineerr.ErrInput, err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch external chapters: %v", pipelineerr.ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: metadata source returned %s", pipelineerr.ErrTransient, resp.Status)
	}

	var out struct {
		Chapters []ExternalChapter `json:"chapters"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode external chapters: %v", pipelineerr.ErrTransient, err)
	}
	return out.Chapters, nil
}

// SubmittedChapter is one chapter in the final submitted list.
type SubmittedChapter struct {
	Timestamp float64 `json:"timestamp"`
	Title     string  `json:"title"`
}

// Submit uploads the final selected chapter list for itemID.
func (c *Client) Submit(ctx context.Context, itemID string, chapters []SubmittedChapter) error {
	body, err := json.Marshal(struct {
		Chapters []SubmittedChapter `json:"chapters"`
	}{Chapters: chapters})
	if err != nil {
		return fmt.Errorf("%w: encode submission: %v", pipelineerr.ErrInput, err)
	}

	url := fmt.Sprintf("%s/books/%s/chapters", c.BaseURL, itemID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", pipelineerr.ErrInput, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: submit: %v", pipelineerr.ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%w: library server returned %s", pipelineerr.ErrTransient, resp.Status)
	}
	return nil
}

// Reachable probes the library server within ReachabilityTimeout.
func (c *Client) Reachable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, ReachabilityTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
