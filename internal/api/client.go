package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const defaultClientTimeout = 60 * time.Second

// StatusError reports a non-2xx API response with its decoded message.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: %s", http.StatusText(e.Code))
	}
	return fmt.Sprintf("api error: %s", e.Message)
}

// IsNotFound reports whether an error is a 404 API response.
func IsNotFound(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound
}

// Client talks to a running daemon over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds an API client for the given base address. The address may
// omit the scheme; plain host:port is assumed to be http.
func NewClient(addr string) *Client {
	trimmed := strings.TrimRight(strings.TrimSpace(addr), "/")
	if trimmed != "" && !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	return &Client{
		baseURL:    trimmed,
		httpClient: &http.Client{Timeout: defaultClientTimeout},
	}
}

// Submit uploads an audio file for conversion.
func (c *Client) Submit(ctx context.Context, path string) (*SubmitResponse, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("build upload form: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finish upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/convert", &body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var response SubmitResponse
	if err := c.do(req, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// Status fetches the full record for one job.
func (c *Client) Status(ctx context.Context, jobID string) (*JobRecord, error) {
	var record JobRecord
	if err := c.get(ctx, "/api/status/"+url.PathEscape(jobID), &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// Jobs lists the most recent jobs, bounded by limit when positive.
func (c *Client) Jobs(ctx context.Context, limit int) (*JobListResponse, error) {
	path := "/api/jobs"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var response JobListResponse
	if err := c.get(ctx, path, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// Delete removes one job and its artifacts.
func (c *Client) Delete(ctx context.Context, jobID string) (*DeleteResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/api/jobs/"+url.PathEscape(jobID), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	var response DeleteResponse
	if err := c.do(req, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// Analysis fetches the extracted feature document for one job as raw JSON.
func (c *Client) Analysis(ctx context.Context, jobID string) (json.RawMessage, error) {
	var payload json.RawMessage
	if err := c.get(ctx, "/api/analysis/"+url.PathEscape(jobID), &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// Download streams one artifact into w and returns the bytes written.
func (c *Client) Download(ctx context.Context, jobID, fileType, instrument string, w io.Writer) (int64, error) {
	path := fmt.Sprintf("/api/download/%s/%s/%s",
		url.PathEscape(jobID), url.PathEscape(fileType), url.PathEscape(instrument))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("call api: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, decodeStatusError(resp)
	}
	written, err := io.Copy(w, resp.Body)
	if err != nil {
		return written, fmt.Errorf("read artifact: %w", err)
	}
	return written, nil
}

// Health checks daemon liveness.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var response HealthResponse
	if err := c.get(ctx, "/health", &response); err != nil {
		return nil, err
	}
	return &response, nil
}

func (c *Client) get(ctx context.Context, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.do(req, target)
}

func (c *Client) do(req *http.Request, target any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeStatusError(resp)
	}
	if target == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeStatusError(resp *http.Response) error {
	statusErr := &StatusError{Code: resp.StatusCode}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err == nil {
		var payload ErrorResponse
		if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
			statusErr.Message = payload.Error
		}
	}
	return statusErr
}
