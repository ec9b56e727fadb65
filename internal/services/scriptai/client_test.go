package scriptai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"storyreel/internal/services"
	"storyreel/internal/studio"
)

func completionBody(t *testing.T, content string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"content": content}},
		},
	})
	if err != nil {
		t.Fatalf("encode completion: %v", err)
	}
	return body
}

func newTestClient(baseURL string, attempts int) *Client {
	client := NewClient("test-key", WithBaseURL(baseURL), WithRetry(attempts, time.Millisecond))
	client.sleep = func(context.Context, time.Duration) error { return nil }
	return client
}

func TestAnalyzeScript(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Fatalf("unexpected auth header %q", got)
		}
		content := `{"characters":[{"name":"ALICE cooper","description":"tall, red coat"}],"scenes":[{"id":0,"description":"Alley at night","characters":["alice COOPER"]}]}`
		w.Write(completionBody(t, content))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 1)
	analysis, err := client.AnalyzeScript(context.Background(), "INT. ALLEY - NIGHT")
	if err != nil {
		t.Fatalf("AnalyzeScript returned error: %v", err)
	}
	if len(analysis.Characters) != 1 || len(analysis.Scenes) != 1 {
		t.Fatalf("unexpected analysis %+v", analysis)
	}
	if analysis.Characters[0].Name != "Alice Cooper" {
		t.Fatalf("expected normalized name, got %q", analysis.Characters[0].Name)
	}
	if analysis.Scenes[0].Characters[0] != "Alice Cooper" {
		t.Fatalf("expected normalized scene character, got %q", analysis.Scenes[0].Characters[0])
	}
	if analysis.Scenes[0].SceneIndex != 0 {
		t.Fatalf("unexpected scene index %d", analysis.Scenes[0].SceneIndex)
	}
}

func TestAnalyzeScriptRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write(completionBody(t, `{"characters":[],"scenes":[{"id":1,"description":"dawn","characters":[]}]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 3)
	analysis, err := client.AnalyzeScript(context.Background(), "script")
	if err != nil {
		t.Fatalf("AnalyzeScript returned error: %v", err)
	}
	if len(analysis.Scenes) != 1 {
		t.Fatalf("expected one scene after retry, got %+v", analysis)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestAnalyzeScriptEmptyOnExhaustion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(server.URL, 2)
	analysis, err := client.AnalyzeScript(context.Background(), "script")
	if err != nil {
		t.Fatalf("expected no error on exhaustion, got %v", err)
	}
	if len(analysis.Characters) != 0 || len(analysis.Scenes) != 0 {
		t.Fatalf("expected empty analysis, got %+v", analysis)
	}
}

func TestAnalyzeScriptInvalidJSONRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Write(completionBody(t, "not json at all"))
			return
		}
		w.Write(completionBody(t, `{"characters":[],"scenes":[]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 3)
	if _, err := client.AnalyzeScript(context.Background(), "script"); err != nil {
		t.Fatalf("AnalyzeScript returned error: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected retry after invalid JSON, got %d attempts", got)
	}
}

func TestAnalyzeScriptRequiresInput(t *testing.T) {
	client := NewClient("key")
	_, err := client.AnalyzeScript(context.Background(), "  ")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for empty script, got %v", err)
	}
	client = NewClient("")
	_, err = client.AnalyzeScript(context.Background(), "script")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for missing api key, got %v", err)
	}
	if _, err := client.ScenePrompts(context.Background(), []studio.Scene{{SceneIndex: 0}}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for missing api key, got %v", err)
	}
}

func TestScenePrompts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		content := `{"prompts":[{"id":0,"prompt":"wide shot, rain","negative_prompt":""},{"id":1,"prompt":"close up","negative_prompt":"blurry"}]}`
		w.Write(completionBody(t, content))
	}))
	defer server.Close()

	scenes := []studio.Scene{
		{SceneIndex: 0, Description: "alley"},
		{SceneIndex: 1, Description: "rooftop"},
	}
	client := newTestClient(server.URL, 1)
	prompts, err := client.ScenePrompts(context.Background(), scenes)
	if err != nil {
		t.Fatalf("ScenePrompts returned error: %v", err)
	}
	if len(prompts) != 2 {
		t.Fatalf("expected 2 prompts, got %d", len(prompts))
	}
	if prompts[0].NegativePrompt != defaultNegativePrompt {
		t.Fatalf("expected default negative prompt, got %q", prompts[0].NegativePrompt)
	}
	if prompts[1].NegativePrompt != "blurry" {
		t.Fatalf("unexpected negative prompt %q", prompts[1].NegativePrompt)
	}
}

func TestScenePromptsEmptyOnExhaustion(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, `{"error":{"message":"upstream overloaded"}}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL, 3)
	prompts, err := client.ScenePrompts(context.Background(), []studio.Scene{{SceneIndex: 0, Description: "x"}})
	if err != nil {
		t.Fatalf("expected no error on exhaustion, got %v", err)
	}
	if len(prompts) != 0 {
		t.Fatalf("expected no prompts, got %+v", prompts)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestScenePromptsNoScenes(t *testing.T) {
	client := NewClient("key")
	prompts, err := client.ScenePrompts(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prompts != nil {
		t.Fatalf("expected nil prompts, got %+v", prompts)
	}
}
