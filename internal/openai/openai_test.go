package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lehigh-university-libraries/collager/internal/providers"
)

func TestChatRequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := New().Chat(context.Background(), providers.Request{Model: "gpt-4o"}); err == nil {
		t.Error("Expected an error without OPENAI_API_KEY")
	}
}

func TestChatTextResponse(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Unexpected authorization header: %q", got)
		}
		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("Bad request body: %v", err)
		}
		if body.Messages[0].Role != "system" {
			t.Errorf("Expected system message first, got %q", body.Messages[0].Role)
		}
		if _, err := w.Write([]byte(`{"choices":[{"message":{"content":"hello"},"finish_reason":"stop"}]}`)); err != nil {
			t.Fatal(err)
		}
	}))
	defer server.Close()

	provider := New()
	provider.url = server.URL

	resp, err := provider.Chat(context.Background(), providers.Request{
		Model:    "gpt-4o",
		System:   "be brief",
		Messages: []providers.Message{{Role: providers.RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if resp.Content != "hello" {
		t.Errorf("Unexpected content: %q", resp.Content)
	}
	if resp.StopReason != providers.StopReasonStop {
		t.Errorf("Unexpected stop reason: %q", resp.StopReason)
	}
}

func TestChatToolCallResponse(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")

	body := `{"choices":[{"message":{"content":"","tool_calls":[{"id":"call_1","type":"function","function":{"name":"register_search","arguments":"{\"keywords\":\"boats\"}"}}]},"finish_reason":"tool_calls"}]}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}))
	defer server.Close()

	provider := New()
	provider.url = server.URL

	resp, err := provider.Chat(context.Background(), providers.Request{Model: "gpt-4o"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if resp.StopReason != providers.StopReasonToolCalls {
		t.Errorf("Unexpected stop reason: %q", resp.StopReason)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].Name != "register_search" {
		t.Errorf("Unexpected tool calls: %+v", resp.ToolCalls)
	}
	if string(resp.ToolCalls[0].Arguments) != `{"keywords":"boats"}` {
		t.Errorf("Unexpected arguments: %s", resp.ToolCalls[0].Arguments)
	}
}

func TestChatServerError(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	provider := New()
	provider.url = server.URL

	if _, err := provider.Chat(context.Background(), providers.Request{Model: "gpt-4o"}); err == nil {
		t.Error("Expected an error for a non-200 response")
	}
}
