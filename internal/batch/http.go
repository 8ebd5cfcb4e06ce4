package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client talks to the grading service API.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a new HTTP client with timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// RunInfo is the subset of a run the batch tool reads.
type RunInfo struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
	Result *struct {
		Score   float64        `json:"score"`
		Details map[string]any `json:"details"`
	} `json:"result"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StatusError is returned for unexpected HTTP status codes.
type StatusError struct {
	Status int
	Code   string
	Msg    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s: %s", e.Status, e.Code, e.Msg)
}

// Health checks GET /healthz.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, http.StatusOK, nil)
}

// Submit posts one run and returns the server-side run status.
func (c *Client) Submit(ctx context.Context, s Submission) (string, error) {
	var resp RunInfo
	if err := c.do(ctx, http.MethodPost, "/runs", s, http.StatusAccepted, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// Run fetches one run.
func (c *Client) Run(ctx context.Context, runID string) (RunInfo, error) {
	var resp RunInfo
	err := c.do(ctx, http.MethodGet, "/runs/"+url.PathEscape(runID), nil, http.StatusOK, &resp)
	return resp, err
}

// Leaderboard fetches the top n entries.
func (c *Client) Leaderboard(ctx context.Context, n int) ([]Entry, error) {
	var entries []Entry
	err := c.do(ctx, http.MethodGet, "/leaderboard?limit="+strconv.Itoa(n), nil, http.StatusOK, &entries)
	return entries, err
}

func (c *Client) do(ctx context.Context, method, path string, body any, want int, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != want {
		var e errorResponse
		_ = json.Unmarshal(data, &e)
		return &StatusError{Status: resp.StatusCode, Code: e.Code, Msg: e.Message}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}
