package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"storyreel/internal/config"
	"storyreel/internal/services"
)

const defaultHTTPTimeout = 30 * time.Second

// SubmitRequest carries one scene generation request.
type SubmitRequest struct {
	EpisodeID      int64  `json:"episode_id"`
	SceneIndex     int64  `json:"scene_id"`
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
	ImageBase64    string `json:"image_base64,omitempty"`
}

// SubmitResponse is the generator's acknowledgement of a new job.
type SubmitResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Version int64  `json:"version"`
}

// JobState is one status snapshot for a tracked job.
type JobState struct {
	Status     string `json:"status"`
	Progress   int    `json:"progress"`
	OutputPath string `json:"output_path"`
	Version    int64  `json:"version"`
	Error      string `json:"error"`
}

// Health reports the generator service's self-diagnostics.
type Health struct {
	Status        string `json:"status"`
	Mode          string `json:"mode"`
	CUDAAvailable bool   `json:"cuda_available"`
	DiskFree      string `json:"disk_free"`
	ActiveJobs    int    `json:"active_jobs"`
}

// Service defines the generator operations the rest of the system depends on.
type Service interface {
	Submit(ctx context.Context, req SubmitRequest) (SubmitResponse, error)
	JobStatus(ctx context.Context, jobID string) (JobState, error)
	Cancel(ctx context.Context, jobID string) error
	Health(ctx context.Context) (Health, error)
}

// HTTPDoer describes the HTTP client used by the generator service client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is the HTTP implementation of Service.
type Client struct {
	baseURL    string
	httpClient HTTPDoer
}

// Option customizes the generator client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client HTTPDoer) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a generator service client.
func NewClient(baseURL string, opts ...Option) *Client {
	client := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// NewConfiguredClient builds a client from application config.
func NewConfiguredClient(cfg *config.Config) *Client {
	if cfg == nil {
		return NewClient("")
	}
	timeout := time.Duration(cfg.Generator.RequestTimeout) * time.Second
	return NewClient(cfg.Generator.URL, WithHTTPClient(&http.Client{Timeout: timeout}))
}

// Submit asks the generator to begin asynchronous work for one scene. The
// returned id is the job's identity everywhere downstream; completion order
// relative to other submissions is not guaranteed.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (SubmitResponse, error) {
	var out SubmitResponse
	if strings.TrimSpace(req.Prompt) == "" {
		return out, services.Wrap(services.ErrValidation, "generator", "submit", "prompt is required", nil)
	}

	body, err := c.postJSON(ctx, "/generate", req)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return out, services.Wrap(services.ErrRemote, "generator", "submit", "decode response", err)
	}
	if strings.TrimSpace(out.ID) == "" {
		return out, services.Wrap(services.ErrRemote, "generator", "submit", "response missing job id", nil)
	}
	return out, nil
}

// JobStatus fetches the current state of a job. Safe to call any number of
// times. A 404 marks the job as unknown to the generator.
func (c *Client) JobStatus(ctx context.Context, jobID string) (JobState, error) {
	var state JobState
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/jobs/"+jobID, nil)
	if err != nil {
		return state, services.Wrap(services.ErrTransient, "generator", "status", "build request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return state, services.Wrap(services.ErrTransient, "generator", "status", "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return state, services.Wrap(services.ErrTransient, "generator", "status", "read body", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return state, services.Wrap(services.ErrNotFound, "generator", "status", fmt.Sprintf("job %s unknown", jobID), nil)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return state, services.Wrap(services.ErrRemote, "generator", "status", httpDetail(resp.StatusCode, body), nil)
	}
	if err := json.Unmarshal(body, &state); err != nil {
		return state, services.Wrap(services.ErrRemote, "generator", "status", "decode response", err)
	}
	return state, nil
}

// Cancel requests job cancellation. Best effort: the generator may still
// finish the job after acknowledging.
func (c *Client) Cancel(ctx context.Context, jobID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/jobs/"+jobID+"/cancel", nil)
	if err != nil {
		return services.Wrap(services.ErrTransient, "generator", "cancel", "build request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "generator", "cancel", "request failed", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusNotFound {
		return services.Wrap(services.ErrNotFound, "generator", "cancel", fmt.Sprintf("job %s unknown", jobID), nil)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return services.Wrap(services.ErrRemote, "generator", "cancel", httpDetail(resp.StatusCode, body), nil)
	}
	return nil
}

// Health fetches the generator's self-reported health.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var health Health
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return health, services.Wrap(services.ErrTransient, "generator", "health", "build request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return health, services.Wrap(services.ErrTransient, "generator", "health", "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return health, services.Wrap(services.ErrTransient, "generator", "health", "read body", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return health, services.Wrap(services.ErrRemote, "generator", "health", httpDetail(resp.StatusCode, body), nil)
	}
	if err := json.Unmarshal(body, &health); err != nil {
		return health, services.Wrap(services.ErrRemote, "generator", "health", "decode response", err)
	}
	return health, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) ([]byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "generator", "submit", "encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "generator", "submit", "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "generator", "submit", "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "generator", "submit", "read body", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, services.Wrap(services.ErrRemote, "generator", "submit", httpDetail(resp.StatusCode, body), nil)
	}
	return body, nil
}

func httpDetail(status int, body []byte) string {
	detail := struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}{}
	if err := json.Unmarshal(body, &detail); err == nil {
		if msg := strings.TrimSpace(detail.Detail); msg != "" {
			return fmt.Sprintf("http %d: %s", status, msg)
		}
		if msg := strings.TrimSpace(detail.Error); msg != "" {
			return fmt.Sprintf("http %d: %s", status, msg)
		}
	}
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return fmt.Sprintf("http %d", status)
	}
	return fmt.Sprintf("http %d: %s", status, trimmed)
}
