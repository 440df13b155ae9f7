package curator

import (
	"context"
	"strings"
	"testing"

	"github.com/lehigh-university-libraries/collager/internal/providers"
)

type fakeProvider struct {
	response string
	requests []providers.Request
}

func (f *fakeProvider) Chat(ctx context.Context, req providers.Request) (providers.Response, error) {
	f.requests = append(f.requests, req)
	return providers.Response{Content: f.response, StopReason: providers.StopReasonStop}, nil
}

func TestSelectEmptyCandidatesSkipsProvider(t *testing.T) {
	provider := &fakeProvider{}
	selected, err := New(provider, "test-model").Select(context.Background(), "boats", nil, 5)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(selected) != 0 {
		t.Errorf("Expected empty selection, got %v", selected)
	}
	if len(provider.requests) != 0 {
		t.Errorf("Expected no provider calls, got %d", len(provider.requests))
	}
}

func TestSelectSendsCandidatesAndParsesResponse(t *testing.T) {
	provider := &fakeProvider{response: "```json\n[\"b\",\"a\"]\n```"}
	candidates := []Candidate{
		{ID: "a", Title: "Steamship at dock"},
		{ID: "b", Title: "Harbor at dusk"},
	}

	selected, err := New(provider, "test-model").Select(context.Background(), "boats", candidates, 2)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(selected) != 2 || selected[0] != "b" || selected[1] != "a" {
		t.Errorf("Unexpected selection: %v", selected)
	}

	if len(provider.requests) != 1 {
		t.Fatalf("Expected 1 provider call, got %d", len(provider.requests))
	}
	req := provider.requests[0]
	if req.Model != "test-model" {
		t.Errorf("Unexpected model: %q", req.Model)
	}
	if len(req.Messages) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(req.Messages))
	}
	content := req.Messages[0].Content
	if !strings.Contains(content, "boats") || !strings.Contains(content, "Harbor at dusk") {
		t.Errorf("Prompt or candidates missing from message: %s", content)
	}
}
