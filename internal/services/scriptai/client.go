package scriptai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"storyreel/internal/config"
	"storyreel/internal/logging"
	"storyreel/internal/services"
	"storyreel/internal/studio"
)

const (
	defaultBaseURL     = "https://openrouter.ai/api/v1"
	defaultModel       = "google/gemini-3-flash-preview"
	jsonResponseType   = "json_object"
	defaultHTTPTimeout = 60 * time.Second
	defaultMaxAttempts = 3
	defaultBackoff     = time.Second
	maxBackoff         = 30 * time.Second
)

// Analysis is the structured breakdown of one script.
type Analysis struct {
	Characters []studio.Character
	Scenes     []studio.Scene
}

// Service defines the script analysis operations the pipeline depends on.
type Service interface {
	AnalyzeScript(ctx context.Context, script string) (Analysis, error)
	ScenePrompts(ctx context.Context, scenes []studio.Scene) ([]studio.ScenePrompt, error)
}

// Client wraps an OpenAI-compatible chat completions API.
type Client struct {
	apiKey      string
	baseURL     string
	model       string
	referer     string
	title       string
	maxAttempts int
	backoff     time.Duration
	httpClient  *http.Client
	logger      *slog.Logger
	sleep       func(context.Context, time.Duration) error
}

// Option customizes the script analysis client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the default API base (useful for tests/mocks).
func WithBaseURL(base string) Option {
	return func(c *Client) {
		base = strings.TrimSpace(base)
		if base != "" {
			c.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// WithModel overrides the default model identifier.
func WithModel(model string) Option {
	return func(c *Client) {
		model = strings.TrimSpace(model)
		if model != "" {
			c.model = model
		}
	}
}

// WithRetry overrides attempt count and initial backoff.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.maxAttempts = attempts
		}
		if backoff > 0 {
			c.backoff = backoff
		}
	}
}

// WithAttribution sets the optional HTTP-Referer and X-Title headers some
// gateways use to attribute traffic.
func WithAttribution(referer, title string) Option {
	return func(c *Client) {
		c.referer = strings.TrimSpace(referer)
		c.title = strings.TrimSpace(title)
	}
}

// WithLogger attaches a logger for retry diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient constructs a script analysis client.
func NewClient(apiKey string, opts ...Option) *Client {
	client := &Client{
		apiKey:      strings.TrimSpace(apiKey),
		baseURL:     defaultBaseURL,
		model:       defaultModel,
		maxAttempts: defaultMaxAttempts,
		backoff:     defaultBackoff,
		httpClient:  &http.Client{Timeout: defaultHTTPTimeout},
		logger:      logging.NewNop(),
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// NewConfiguredClient builds a client from application config.
func NewConfiguredClient(cfg *config.Config, logger *slog.Logger) *Client {
	if cfg == nil {
		return NewClient("", WithLogger(logger))
	}
	opts := []Option{
		WithBaseURL(cfg.LLM.BaseURL),
		WithModel(cfg.LLM.Model),
		WithAttribution(cfg.LLM.Referer, cfg.LLM.Title),
		WithRetry(cfg.LLM.MaxAttempts, time.Duration(cfg.LLM.RetryBackoffMS)*time.Millisecond),
		WithLogger(logger),
	}
	if cfg.LLM.TimeoutSeconds > 0 {
		opts = append(opts, WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.LLM.TimeoutSeconds) * time.Second}))
	}
	return NewClient(cfg.LLM.APIKey, opts...)
}

// AnalyzeScript extracts characters and an ordered scene list from a script.
// When every attempt fails the pipeline should keep moving, so exhaustion
// returns an empty Analysis rather than an error.
func (c *Client) AnalyzeScript(ctx context.Context, script string) (Analysis, error) {
	var empty Analysis
	script = strings.TrimSpace(script)
	if script == "" {
		return empty, services.Wrap(services.ErrValidation, "scriptai", "analyze", "script required", nil)
	}
	if c.apiKey == "" {
		return empty, services.Wrap(services.ErrConfiguration, "scriptai", "analyze", "api key required (set llm.api_key)", nil)
	}

	content, err := c.completeWithRetry(ctx, "analyze", analysisSystemPrompt, "SCRIPT:\n"+script)
	if err != nil {
		if ctx.Err() != nil {
			return empty, ctx.Err()
		}
		c.logger.Warn("script analysis exhausted retries, returning empty analysis", logging.Error(err))
		return empty, nil
	}

	var payload analysisPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		c.logger.Warn("script analysis payload unreadable, returning empty analysis", logging.Error(err))
		return empty, nil
	}
	return payload.toAnalysis(), nil
}

// ScenePrompts writes generation prompts for the given scenes. Exhaustion
// returns an empty slice, matching AnalyzeScript.
func (c *Client) ScenePrompts(ctx context.Context, scenes []studio.Scene) ([]studio.ScenePrompt, error) {
	if len(scenes) == 0 {
		return nil, nil
	}
	if c.apiKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "scriptai", "prompts", "api key required (set llm.api_key)", nil)
	}

	input := make([]sceneInput, 0, len(scenes))
	for _, scene := range scenes {
		input = append(input, sceneInput{
			ID:          scene.SceneIndex,
			Description: scene.Description,
			Characters:  scene.Characters,
		})
	}
	encoded, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("scriptai prompts: encode scenes: %w", err)
	}

	content, err := c.completeWithRetry(ctx, "prompts", promptsSystemPrompt, "SCENES:\n"+string(encoded))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Warn("prompt generation exhausted retries, returning no prompts", logging.Error(err))
		return nil, nil
	}

	var payload promptsPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		c.logger.Warn("prompt payload unreadable, returning no prompts", logging.Error(err))
		return nil, nil
	}
	return payload.toPrompts(), nil
}

// completeWithRetry runs one chat completion with capped exponential backoff
// between attempts. Invalid JSON content counts as a failed attempt.
func (c *Client) completeWithRetry(ctx context.Context, op, system, user string) (string, error) {
	var lastErr error
	delay := c.backoff
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			if err := c.sleep(ctx, delay); err != nil {
				return "", err
			}
			delay *= 2
			if delay > maxBackoff {
				delay = maxBackoff
			}
		}
		content, err := c.complete(ctx, op, system, user)
		if err == nil {
			return content, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		c.logger.Warn("chat completion attempt failed",
			logging.String("operation", op),
			logging.Int("attempt", attempt),
			logging.Error(err))
	}
	return "", lastErr
}

func (c *Client) complete(ctx context.Context, op, system, user string) (string, error) {
	request := chatCompletionRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature:    0.7,
		ResponseFormat: map[string]string{"type": jsonResponseType},
	}
	encoded, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("scriptai %s: encode request: %w", op, err)
	}
	endpoint, err := url.JoinPath(c.baseURL, "/chat/completions")
	if err != nil {
		return "", fmt.Errorf("scriptai %s: build url: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("scriptai %s: request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if c.referer != "" {
		req.Header.Set("HTTP-Referer", c.referer)
	}
	if c.title != "" {
		req.Header.Set("X-Title", c.title)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("scriptai %s: request failed: %w", op, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("scriptai %s: read body: %w", op, err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("scriptai %s: http %d: %s", op, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", fmt.Errorf("scriptai %s: decode response: %w", op, err)
	}
	if completion.Error != nil {
		return "", fmt.Errorf("scriptai %s: api error: %s", op, strings.TrimSpace(completion.Error.Message))
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("scriptai %s: empty choices", op)
	}
	content := strings.TrimSpace(completion.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("scriptai %s: empty content", op)
	}
	if !json.Valid([]byte(content)) {
		return "", fmt.Errorf("scriptai %s: content is not valid JSON", op)
	}
	return content, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type chatCompletionRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type analysisPayload struct {
	Characters []struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	} `json:"characters"`
	Scenes []struct {
		ID          int64    `json:"id"`
		Description string   `json:"description"`
		Characters  []string `json:"characters"`
	} `json:"scenes"`
}

var nameCaser = cases.Title(language.English)

func normalizeName(name string) string {
	return nameCaser.String(strings.ToLower(strings.TrimSpace(name)))
}

func (p analysisPayload) toAnalysis() Analysis {
	var out Analysis
	for _, character := range p.Characters {
		name := normalizeName(character.Name)
		if name == "" {
			continue
		}
		out.Characters = append(out.Characters, studio.Character{
			Name:        name,
			Description: strings.TrimSpace(character.Description),
		})
	}
	for _, scene := range p.Scenes {
		names := make([]string, 0, len(scene.Characters))
		for _, name := range scene.Characters {
			if normalized := normalizeName(name); normalized != "" {
				names = append(names, normalized)
			}
		}
		out.Scenes = append(out.Scenes, studio.Scene{
			SceneIndex:  scene.ID,
			Description: strings.TrimSpace(scene.Description),
			Characters:  names,
		})
	}
	return out
}

type sceneInput struct {
	ID          int64    `json:"id"`
	Description string   `json:"description"`
	Characters  []string `json:"characters"`
}

type promptsPayload struct {
	Prompts []struct {
		ID             int64  `json:"id"`
		Prompt         string `json:"prompt"`
		NegativePrompt string `json:"negative_prompt"`
	} `json:"prompts"`
}

func (p promptsPayload) toPrompts() []studio.ScenePrompt {
	out := make([]studio.ScenePrompt, 0, len(p.Prompts))
	for _, item := range p.Prompts {
		prompt := strings.TrimSpace(item.Prompt)
		if prompt == "" {
			continue
		}
		negative := strings.TrimSpace(item.NegativePrompt)
		if negative == "" {
			negative = defaultNegativePrompt
		}
		out = append(out, studio.ScenePrompt{
			SceneIndex:     item.ID,
			Prompt:         prompt,
			NegativePrompt: negative,
		})
	}
	return out
}
