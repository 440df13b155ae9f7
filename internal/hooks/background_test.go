package hooks

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/lehigh-university-libraries/collager/internal/models"
	"github.com/lehigh-university-libraries/collager/internal/providers"
)

type backgroundProvider struct {
	content string
	err     error
}

func (b *backgroundProvider) Chat(ctx context.Context, req providers.Request) (providers.Response, error) {
	if b.err != nil {
		return providers.Response{}, b.err
	}
	return providers.Response{Content: b.content, StopReason: providers.StopReasonStop}, nil
}

func backgroundState() *State {
	return &State{
		Prompt:       "harbor at dawn",
		CanvasWidth:  100,
		CanvasHeight: 100,
		Sources: []models.SourceImage{
			{ExternalID: "sky-1", Title: "Morning Sky"},
			{ExternalID: "boat-1", Title: "Fishing Boat"},
		},
		Fragments: []models.Fragment{
			{SourceID: "sky-1", BoundingBox: image.Rect(0, 0, 200, 100), Label: "sky"},
			{SourceID: "boat-1", BoundingBox: image.Rect(0, 0, 20, 10), Label: "boat"},
		},
	}
}

func TestSelectBackgroundSetsKnownSource(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"plain identifier", "sky-1"},
		{"quoted identifier", `"sky-1"`},
		{"surrounding whitespace", "  sky-1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := backgroundState()
			hook := SelectBackground(&backgroundProvider{content: tt.content}, "test-model")

			if err := hook(context.Background(), state); err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if state.BackgroundSourceID != "sky-1" {
				t.Errorf("Expected sky-1, got %q", state.BackgroundSourceID)
			}
		})
	}
}

func TestSelectBackgroundIgnoresUnknownSource(t *testing.T) {
	state := backgroundState()
	hook := SelectBackground(&backgroundProvider{content: "made-up-id"}, "test-model")

	if err := hook(context.Background(), state); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if state.BackgroundSourceID != "" {
		t.Errorf("Expected no background for an unknown id, got %q", state.BackgroundSourceID)
	}
}

func TestSelectBackgroundTransportError(t *testing.T) {
	state := backgroundState()
	hook := SelectBackground(&backgroundProvider{err: errors.New("connection refused")}, "test-model")

	if err := hook(context.Background(), state); err == nil {
		t.Error("Expected the transport error to surface to the invoking stage")
	}
}

func TestSelectBackgroundNoSources(t *testing.T) {
	state := &State{}
	hook := SelectBackground(&backgroundProvider{content: "anything"}, "test-model")

	if err := hook(context.Background(), state); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if state.BackgroundSourceID != "" {
		t.Errorf("Expected no background, got %q", state.BackgroundSourceID)
	}
}
