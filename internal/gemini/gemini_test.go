package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/lehigh-university-libraries/collager/internal/providers"
)

func TestChatRejectsTools(t *testing.T) {
	req := providers.Request{
		Model: "gemini-2.0-flash",
		Tools: []providers.Tool{{Name: "register_search"}},
	}
	_, err := New().Chat(context.Background(), req)
	if !errors.Is(err, providers.ErrToolsUnsupported) {
		t.Errorf("Expected ErrToolsUnsupported, got %v", err)
	}
}

func TestChatRequiresAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	_, err := New().Chat(context.Background(), providers.Request{Model: "gemini-2.0-flash"})
	if err == nil {
		t.Fatal("Expected an error when GEMINI_API_KEY is unset")
	}
}
