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
	"strings"
	"time"
)

// ErrNotFound is returned by the client for 404 replies.
var ErrNotFound = errors.New("not found")

// Client calls the daemon's HTTP API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient returns a client for baseURL (for example http://127.0.0.1:5000).
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   strings.TrimSpace(token),
		http:    &http.Client{Timeout: timeout},
	}
}

// Health checks the daemon is answering.
func (c *Client) Health(ctx context.Context) (HealthResponse, error) {
	var resp HealthResponse
	err := c.getJSON(ctx, PathHealth, &resp)
	return resp, err
}

// RemoveWatermark uploads an image and waits for the result.
func (c *Client) RemoveWatermark(ctx context.Context, imagePath, watermarkType string) (RemoveResponse, error) {
	var resp RemoveResponse
	err := c.upload(ctx, PathRemove, "image", imagePath, watermarkType, &resp)
	if err == nil && !resp.Success {
		err = fmt.Errorf("remove watermark: %s", resp.Error)
	}
	return resp, err
}

// RemoveWatermarkVideo uploads a video and returns once it is admitted.
func (c *Client) RemoveWatermarkVideo(ctx context.Context, videoPath, watermarkType string) (VideoAccepted, error) {
	var resp VideoAccepted
	err := c.upload(ctx, PathRemoveVideo, "video", videoPath, watermarkType, &resp)
	return resp, err
}

// Progress returns the latest progress for a task.
func (c *Client) Progress(ctx context.Context, taskID string) (ProgressResponse, error) {
	var resp ProgressResponse
	err := c.getJSON(ctx, ProgressURL(taskID), &resp)
	return resp, err
}

// Status returns daemon runtime information.
func (c *Client) Status(ctx context.Context) (DaemonStatus, error) {
	var resp DaemonStatus
	err := c.getJSON(ctx, PathStatus, &resp)
	return resp, err
}

// Tasks lists recent tasks.
func (c *Client) Tasks(ctx context.Context, limit int) ([]Task, error) {
	var resp TaskListResponse
	path := PathTasks
	if limit > 0 {
		path += fmt.Sprintf("?limit=%d", limit)
	}
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Tasks, nil
}

// Task returns one task row.
func (c *Client) Task(ctx context.Context, taskID string) (Task, error) {
	var resp Task
	err := c.getJSON(ctx, PathTasks+"/"+url.PathEscape(taskID), &resp)
	return resp, err
}

// Download saves the resource at a relative download URL to dest.
func (c *Client) Download(ctx context.Context, downloadURL, dest string) error {
	resp, err := c.do(ctx, http.MethodGet, downloadURL, nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = out.Close()
		_ = os.Remove(dest)
		return err
	}
	return out.Close()
}

func (c *Client) upload(ctx context.Context, path, field, filePath, watermarkType string, target any) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(field, filepath.Base(filePath))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return err
	}
	if watermarkType != "" {
		if err := writer.WriteField("watermark_type", watermarkType); err != nil {
			return err
		}
	}
	if err := writer.Close(); err != nil {
		return err
	}

	resp, err := c.do(ctx, http.MethodPost, path, &body, writer.FormDataContentType())
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(target)
}

func (c *Client) getJSON(ctx context.Context, path string, target any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(target)
}

// do sends a request and converts non-2xx replies into errors. The caller
// closes the body of a successful response.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("daemon unreachable at %s: %w", c.baseURL, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	var apiErr ErrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&apiErr); err == nil && apiErr.Error != "" {
		return nil, fmt.Errorf("%s %s: %s (%d)", method, path, apiErr.Error, resp.StatusCode)
	}
	return nil, fmt.Errorf("%s %s: %s", method, path, resp.Status)
}
