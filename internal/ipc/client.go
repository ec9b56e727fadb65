package ipc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"storyreel/internal/api"
)

const defaultTimeout = 30 * time.Second

// Client talks to a running daemon over its HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customizes the IPC client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a client for the daemon at bind, a host:port pair or
// full URL.
func NewClient(bind string, opts ...Option) *Client {
	base := strings.TrimSpace(bind)
	if base != "" && !strings.Contains(base, "://") {
		base = "http://" + base
	}
	client := &Client{
		baseURL:    strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Status retrieves aggregated daemon health.
func (c *Client) Status(ctx context.Context) (api.SystemStatus, error) {
	var out api.SystemStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &out)
	return out, err
}

// CreateEpisode registers a new episode from a title and script.
func (c *Client) CreateEpisode(ctx context.Context, title, script string) (api.EpisodeView, error) {
	var out api.EpisodeView
	payload := map[string]string{"title": title, "script": script}
	err := c.do(ctx, http.MethodPost, "/api/episodes", payload, &out)
	return out, err
}

// Episode fetches one episode with characters and scenes.
func (c *Client) Episode(ctx context.Context, id int64) (api.EpisodeView, error) {
	var out api.EpisodeView
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/episodes/%d", id), nil, &out)
	return out, err
}

// LatestEpisode fetches the most recent episode.
func (c *Client) LatestEpisode(ctx context.Context) (api.EpisodeView, error) {
	var out api.EpisodeView
	err := c.do(ctx, http.MethodGet, "/api/episodes/latest", nil, &out)
	return out, err
}

// AnalyzeEpisode runs script analysis on the daemon.
func (c *Client) AnalyzeEpisode(ctx context.Context, id int64) (api.EpisodeView, error) {
	var out api.EpisodeView
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/episodes/%d/analyze", id), nil, &out)
	return out, err
}

// GeneratePrompts runs prompt generation for an episode's scenes.
func (c *Client) GeneratePrompts(ctx context.Context, id int64) (api.EpisodeView, error) {
	var out api.EpisodeView
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/episodes/%d/prompts", id), nil, &out)
	return out, err
}

// ExportMetadata fetches (and writes, daemon side) the export manifest.
func (c *Client) ExportMetadata(ctx context.Context, id int64) (api.ExportMetadata, error) {
	var out api.ExportMetadata
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/episodes/%d/export/metadata", id), nil, &out)
	return out, err
}

// SubmitJob asks the daemon to start generation for one scene. The request
// may carry a base64 reference image for image-to-video generation.
func (c *Client) SubmitJob(ctx context.Context, req api.SubmitJobRequest) (api.JobView, error) {
	var out api.JobView
	err := c.do(ctx, http.MethodPost, "/api/jobs", req, &out)
	return out, err
}

// Job fetches one tracked job.
func (c *Client) Job(ctx context.Context, jobID string) (api.JobView, error) {
	var out api.JobView
	err := c.do(ctx, http.MethodGet, "/api/jobs/"+jobID, nil, &out)
	return out, err
}

// Jobs lists tracked jobs, optionally filtered by episode (0 = all).
func (c *Client) Jobs(ctx context.Context, episodeID int64) ([]api.JobView, error) {
	path := "/api/jobs"
	if episodeID > 0 {
		path = fmt.Sprintf("/api/jobs?episode=%d", episodeID)
	}
	var out api.JobListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Jobs, nil
}

// CancelJob requests cancellation of an active job.
func (c *Client) CancelJob(ctx context.Context, jobID string) (api.JobView, error) {
	var out api.JobView
	err := c.do(ctx, http.MethodPost, "/api/jobs/"+jobID+"/cancel", nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	if c.baseURL == "" {
		return fmt.Errorf("daemon address not configured")
	}
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("daemon unreachable: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		var remote struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &remote) == nil && remote.Error != "" {
			return fmt.Errorf("daemon: %s", remote.Error)
		}
		return fmt.Errorf("daemon: http %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
