package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAnthropicComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("expected x-api-key=test-key, got %s", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") != anthropicAPIVersion {
			t.Errorf("expected anthropic-version header, got %s", r.Header.Get("anthropic-version"))
		}

		var req anthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
			t.Fatalf("expected one user message, got %+v", req.Messages)
		}
		// Whitespace-only stop sequences must be filtered out.
		if len(req.StopSequences) != 0 {
			t.Errorf("expected no stop sequences, got %v", req.StopSequences)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(anthropicResponse{
			ID: "msg-1",
			Content: []anthropicRespItem{
				{Type: "text", Text: `[{"action":"delete",`},
				{Type: "text", Text: `"title":"all tasks"}]`},
			},
		})
	}))
	defer server.Close()

	c := NewAnthropicClient(AnthropicConfig{APIKey: "test-key", BaseURL: server.URL})

	text, err := c.Complete(context.Background(), Request{
		Prompt: "delete everything",
		Stop:   []string{"\n"},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if text != `[{"action":"delete","title":"all tasks"}]` {
		t.Errorf("unexpected text %q", text)
	}
}

func TestAnthropicComplete_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewAnthropicClient(AnthropicConfig{APIKey: "k", BaseURL: server.URL})
	_, err := c.Complete(context.Background(), Request{Prompt: "hi"})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}
