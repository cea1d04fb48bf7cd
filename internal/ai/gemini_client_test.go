package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"
)

func geminiOK(text string) map[string]any {
	return map[string]any{
		"candidates": []any{map[string]any{
			"content": map[string]any{"role": "model", "parts": []any{map[string]any{"text": text}}},
		}},
		"usageMetadata": map[string]any{"promptTokenCount": 10, "candidatesTokenCount": 5, "totalTokenCount": 15},
		"modelVersion":  "gemini-1.5-flash-002",
		"responseId":    "resp_1",
	}
}

func TestGeminiGenerateSendsConfigAndKey(t *testing.T) {
	var got geminiRequest
	var gotKey, gotPath string
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(geminiOK("[]"))
	}))
	defer srv.Close()

	c := NewGeminiClientWithBaseURL("k-123", 2*time.Second, 1, 0, 0, srv.URL)
	resp, err := c.Generate(context.Background(), GenerateRequest{
		Model: "gemini-1.5-flash",
		Messages: []Message{
			{Role: "system", Content: "be brief"},
			{Role: "user", Content: "hi"},
		},
		MaxTokens:   8192,
		Temperature: 0.7,
		TopK:        40,
		TopP:        0.95,
	})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if gotPath != "/models/gemini-1.5-flash:generateContent" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotKey != "k-123" {
		t.Fatalf("api key not sent as query param, got %q", gotKey)
	}
	cfg := got.GenerationConfig
	if cfg.Temperature != 0.7 || cfg.TopK != 40 || cfg.TopP != 0.95 || cfg.MaxOutputTokens != 8192 {
		t.Fatalf("unexpected generation config: %+v", cfg)
	}
	if got.SystemInstruction == nil || got.SystemInstruction.Parts[0].Text != "be brief" {
		t.Fatalf("system message not mapped to systemInstruction: %+v", got.SystemInstruction)
	}
	if len(got.Contents) != 1 || got.Contents[0].Role != "user" {
		t.Fatalf("unexpected contents: %+v", got.Contents)
	}
	if resp.Text() != "[]" || resp.Usage.TotalTokens != 15 || resp.RequestID != "resp_1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestGeminiConcatenatesParts(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{"parts": []any{
					map[string]any{"text": "[{\"title\":"},
					map[string]any{"text": "\"x\"}]"},
				}},
			}},
		})
	}))
	defer srv.Close()

	c := NewGeminiClientWithBaseURL("k", 2*time.Second, 1, 0, 0, srv.URL)
	resp, err := c.Generate(context.Background(), GenerateRequest{Model: "m", Messages: []Message{{Role: "user", Content: "hi"}}})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if resp.Text() != `[{"title":"x"}]` {
		t.Fatalf("unexpected text %q", resp.Text())
	}
}

func TestGeminiBlockedPrompt(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"promptFeedback": map[string]any{"blockReason": "SAFETY"}})
	}))
	defer srv.Close()

	c := NewGeminiClientWithBaseURL("k", 2*time.Second, 1, 0, 0, srv.URL)
	_, err := c.Generate(context.Background(), GenerateRequest{Model: "m", Messages: []Message{{Role: "user", Content: "hi"}}})
	if !errors.Is(err, ErrNoCandidates) {
		t.Fatalf("expected ErrNoCandidates, got %v", err)
	}
}

func TestGeminiInvalidKeyIsAuthFailure(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{
			"code":    400,
			"message": "API key not valid. Please pass a valid API key.",
			"status":  "INVALID_ARGUMENT",
		}})
	}))
	defer srv.Close()

	c := NewGeminiClientWithBaseURL("bad", 2*time.Second, 2, 0, 0, srv.URL)
	_, err := c.Generate(context.Background(), GenerateRequest{Model: "m", Messages: []Message{{Role: "user", Content: "hi"}}})
	if !IsAuthFailure(err) {
		t.Fatalf("expected auth failure, got %T: %v", err, err)
	}
	var apiErr *AuthError
	if errors.As(err, &apiErr) && apiErr.Code != "INVALID_ARGUMENT" {
		t.Fatalf("expected status captured as code, got %q", apiErr.Code)
	}
}

func TestGeminiRetriesServerErrors(t *testing.T) {
	var hits int32
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "overloaded", "status": "UNAVAILABLE"}})
			return
		}
		_ = json.NewEncoder(w).Encode(geminiOK("ok"))
	}))
	defer srv.Close()

	c := NewGeminiClientWithBaseURL("k", 2*time.Second, 3, 5*time.Millisecond, 20*time.Millisecond, srv.URL)
	resp, err := c.Generate(context.Background(), GenerateRequest{Model: "m", Messages: []Message{{Role: "user", Content: "hi"}}})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if resp.Text() != "ok" || atomic.LoadInt32(&hits) != 2 {
		t.Fatalf("unexpected result %q after %d hits", resp.Text(), hits)
	}
}

func TestGeminiMissingKey(t *testing.T) {
	c := NewGeminiClient("", time.Second, 1, 0, 0)
	_, err := c.Generate(context.Background(), GenerateRequest{Model: "m", Messages: []Message{{Role: "user", Content: "hi"}}})
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestRegistryProviders(t *testing.T) {
	for _, name := range []string{ProviderGemini, ProviderOpenRouter, ProviderOllama, ProviderLocal} {
		if _, ok := GetRuntime(name, RuntimeConfig{}); !ok {
			t.Fatalf("provider %q not registered", name)
		}
	}
	if _, ok := GetRuntime("nope", RuntimeConfig{}); ok {
		t.Fatalf("unexpected runtime for unknown provider")
	}
}
