package compose

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"math/rand"
	"testing"

	"github.com/lehigh-university-libraries/collager/internal/hooks"
	"github.com/lehigh-university-libraries/collager/internal/models"
	"github.com/lehigh-university-libraries/collager/internal/providers"
)

type scriptedProvider struct {
	content string
	err     error
}

func (s *scriptedProvider) Chat(ctx context.Context, req providers.Request) (providers.Response, error) {
	if s.err != nil {
		return providers.Response{}, s.err
	}
	return providers.Response{Content: s.content, StopReason: providers.StopReasonStop}, nil
}

func TestAgenticPlacesPerModelReply(t *testing.T) {
	frag := solidFragment("a", 10, 10, color.NRGBA{255, 0, 0, 255})
	reply := fmt.Sprintf(`{"%s": {"x": 20, "y": 30, "scale": 1.0, "reason": "anchors the scene"}}`, frag.FragmentID())

	strategy := Agentic(&scriptedProvider{content: reply}, "test-model", rand.New(rand.NewSource(1)))
	state := &hooks.State{
		CanvasWidth:  100,
		CanvasHeight: 100,
		Fragments:    []models.Fragment{frag},
	}

	out, err := strategy(context.Background(), state)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(out.Provenance) != 1 {
		t.Fatalf("Expected 1 provenance record, got %d", len(out.Provenance))
	}
	rec := out.Provenance[0]
	if rec.Position != [2]int{20, 30} {
		t.Errorf("Expected placement (20,30), got %v", rec.Position)
	}
	if rec.Scale != 1.0 {
		t.Errorf("Expected scale 1.0, got %v", rec.Scale)
	}
	if rec.Reason != "anchors the scene" {
		t.Errorf("Expected model reason to be recorded, got %q", rec.Reason)
	}
	if got := out.Image.NRGBAAt(25, 35); got != (color.NRGBA{255, 0, 0, 255}) {
		t.Errorf("Expected fragment painted at placement, got %+v", got)
	}
}

func TestAgenticFencedReply(t *testing.T) {
	frag := solidFragment("a", 10, 10, color.NRGBA{255, 0, 0, 255})
	reply := fmt.Sprintf("```json\n{\"%s\": {\"x\": 5, \"y\": 5, \"scale\": 1.0}}\n```", frag.FragmentID())

	strategy := Agentic(&scriptedProvider{content: reply}, "test-model", rand.New(rand.NewSource(1)))
	state := &hooks.State{
		CanvasWidth:  100,
		CanvasHeight: 100,
		Fragments:    []models.Fragment{frag},
	}

	out, err := strategy(context.Background(), state)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if out.Provenance[0].Position != [2]int{5, 5} {
		t.Errorf("Expected fenced reply to parse, got %v", out.Provenance[0].Position)
	}
}

func TestAgenticClampsPlacement(t *testing.T) {
	frag := solidFragment("a", 10, 10, color.NRGBA{255, 0, 0, 255})
	reply := fmt.Sprintf(`{"%s": {"x": 500, "y": -40, "scale": 0.0001}}`, frag.FragmentID())

	strategy := Agentic(&scriptedProvider{content: reply}, "test-model", rand.New(rand.NewSource(1)))
	state := &hooks.State{
		CanvasWidth:  100,
		CanvasHeight: 100,
		Fragments:    []models.Fragment{frag},
	}

	out, err := strategy(context.Background(), state)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	rec := out.Provenance[0]
	if rec.Scale != 0.1 {
		t.Errorf("Expected scale clamped to 0.1, got %v", rec.Scale)
	}
	x, y := rec.Position[0], rec.Position[1]
	if x < 0 || y < 0 || x > 99 || y > 99 {
		t.Errorf("Expected placement clamped to canvas, got (%d,%d)", x, y)
	}
}

func TestAgenticMissingFragmentFallsBackRandomly(t *testing.T) {
	placed := solidFragment("a", 10, 10, color.NRGBA{255, 0, 0, 255})
	skipped := solidFragment("b", 10, 10, color.NRGBA{0, 255, 0, 255})
	reply := fmt.Sprintf(`{"%s": {"x": 0, "y": 0, "scale": 1.0}}`, placed.FragmentID())

	strategy := Agentic(&scriptedProvider{content: reply}, "test-model", rand.New(rand.NewSource(1)))
	state := &hooks.State{
		CanvasWidth:  100,
		CanvasHeight: 100,
		Fragments:    []models.Fragment{placed, skipped},
	}

	out, err := strategy(context.Background(), state)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(out.Provenance) != 2 {
		t.Fatalf("Expected both fragments placed, got %d records", len(out.Provenance))
	}
	if out.Provenance[1].Reason != "random fallback" {
		t.Errorf("Expected random fallback for the skipped fragment, got %q", out.Provenance[1].Reason)
	}
}

func TestAgenticWholeCallFailureFallsBack(t *testing.T) {
	tests := []struct {
		name     string
		provider providers.Provider
	}{
		{"transport error", &scriptedProvider{err: errors.New("connection refused")}},
		{"garbage reply", &scriptedProvider{content: "I cannot help with that"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frag := solidFragment("a", 10, 10, color.NRGBA{255, 0, 0, 255})
			strategy := Agentic(tt.provider, "test-model", rand.New(rand.NewSource(1)))
			state := &hooks.State{
				CanvasWidth:  100,
				CanvasHeight: 100,
				Fragments:    []models.Fragment{frag},
			}

			out, err := strategy(context.Background(), state)
			if err != nil {
				t.Fatalf("Expected fallback, got error: %v", err)
			}
			if len(out.Provenance) != 1 {
				t.Errorf("Expected 1 provenance record from fallback, got %d", len(out.Provenance))
			}
		})
	}
}
