package compose

import (
	"context"
	"image"
	"image/color"
	"math/rand"
	"testing"

	"github.com/lehigh-university-libraries/collager/internal/hooks"
	"github.com/lehigh-university-libraries/collager/internal/models"
)

func solidFragment(sourceID string, w, h int, c color.NRGBA) models.Fragment {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return models.Fragment{
		SourceID:    sourceID,
		Image:       img,
		BoundingBox: image.Rect(0, 0, w, h),
		Label:       "unknown",
	}
}

func TestComposeZeroFragments(t *testing.T) {
	state := &hooks.State{CanvasWidth: 100, CanvasHeight: 80}

	out, err := NewDefault(nil).Compose(context.Background(), state)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if out.Width != 100 || out.Height != 80 {
		t.Errorf("Expected 100x80 canvas, got %dx%d", out.Width, out.Height)
	}
	if len(out.Provenance) != 0 {
		t.Errorf("Expected empty provenance, got %d records", len(out.Provenance))
	}
	// An empty collage is a white canvas.
	if got := out.Image.NRGBAAt(50, 40); got != (color.NRGBA{255, 255, 255, 255}) {
		t.Errorf("Expected white canvas pixel, got %+v", got)
	}
}

func TestComposeOversizeFragmentPinnedToOrigin(t *testing.T) {
	frag := solidFragment("big", 200, 50, color.NRGBA{255, 0, 0, 255})
	state := &hooks.State{
		CanvasWidth:  100,
		CanvasHeight: 80,
		Fragments:    []models.Fragment{frag},
	}

	out, err := NewDefault(rand.New(rand.NewSource(1))).Compose(context.Background(), state)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(out.Provenance) != 1 {
		t.Fatalf("Expected 1 provenance record, got %d", len(out.Provenance))
	}
	if out.Provenance[0].Position != [2]int{0, 0} {
		t.Errorf("Expected oversize fragment at origin, got %v", out.Provenance[0].Position)
	}
	if got := out.Image.NRGBAAt(0, 0); got != (color.NRGBA{255, 0, 0, 255}) {
		t.Errorf("Expected fragment pixel at origin, got %+v", got)
	}
}

func TestComposePlacementStaysInBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	compositor := NewDefault(rng)

	state := &hooks.State{CanvasWidth: 100, CanvasHeight: 100}
	for i := 0; i < 20; i++ {
		state.Fragments = append(state.Fragments, solidFragment("s", 30, 40, color.NRGBA{0, 255, 0, 255}))
	}

	out, err := compositor.Compose(context.Background(), state)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	for _, rec := range out.Provenance {
		x, y := rec.Position[0], rec.Position[1]
		if x < 0 || y < 0 || x > 70 || y > 60 {
			t.Errorf("Placement (%d,%d) leaves a 30x40 fragment out of a 100x100 canvas", x, y)
		}
	}
}

func TestComposeZeroAlphaLeavesBackgroundUnchanged(t *testing.T) {
	// A fully transparent fragment with loud color channels must not
	// bleed onto the canvas.
	frag := solidFragment("ghost", 100, 80, color.NRGBA{255, 0, 255, 0})
	state := &hooks.State{
		CanvasWidth:  100,
		CanvasHeight: 80,
		Fragments:    []models.Fragment{frag},
	}

	out, err := NewDefault(rand.New(rand.NewSource(1))).Compose(context.Background(), state)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(out.Provenance) != 1 {
		t.Fatalf("Expected the transparent fragment to still be recorded, got %d records", len(out.Provenance))
	}
	for _, pt := range []image.Point{{0, 0}, {50, 40}, {99, 79}} {
		if got := out.Image.NRGBAAt(pt.X, pt.Y); got != (color.NRGBA{255, 255, 255, 255}) {
			t.Errorf("Expected background pixel at %v, got %+v", pt, got)
		}
	}
}

func TestComposeProvenanceCountsPaintedFragments(t *testing.T) {
	state := &hooks.State{
		CanvasWidth:  100,
		CanvasHeight: 100,
		Fragments: []models.Fragment{
			solidFragment("a", 10, 10, color.NRGBA{1, 2, 3, 255}),
			{SourceID: "nil-image", Label: "unknown"},
			solidFragment("b", 10, 10, color.NRGBA{4, 5, 6, 255}),
		},
	}

	out, err := NewDefault(rand.New(rand.NewSource(7))).Compose(context.Background(), state)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(out.Provenance) != 2 {
		t.Errorf("Expected provenance only for painted fragments, got %d records", len(out.Provenance))
	}
}

func TestComposeUsesResizedBackground(t *testing.T) {
	bg := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			bg.SetNRGBA(x, y, color.NRGBA{0, 0, 255, 255})
		}
	}
	state := &hooks.State{
		CanvasWidth:  50,
		CanvasHeight: 50,
		Background:   bg,
	}

	out, err := NewDefault(nil).Compose(context.Background(), state)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got := out.Image.NRGBAAt(25, 25); got != (color.NRGBA{0, 0, 255, 255}) {
		t.Errorf("Expected background stretched over canvas, got %+v", got)
	}
}

func TestClampScale(t *testing.T) {
	tests := []struct {
		name     string
		input    float64
		expected float64
	}{
		{"zero defaults to unity", 0, 1.0},
		{"negative defaults to unity", -2, 1.0},
		{"below minimum", 0.01, 0.1},
		{"above maximum", 10, 4.0},
		{"in range", 1.5, 1.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := clampScale(tt.input); got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestClampPos(t *testing.T) {
	tests := []struct {
		name               string
		pos, size, canvas  int
		expected           int
	}{
		{"negative clamps to zero", -5, 10, 100, 0},
		{"past edge clamps to fit", 95, 10, 100, 90},
		{"oversize pins to origin", 5, 200, 100, 0},
		{"in bounds unchanged", 30, 10, 100, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := clampPos(tt.pos, tt.size, tt.canvas); got != tt.expected {
				t.Errorf("Expected %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestScaleFragment(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			src.SetNRGBA(x, y, color.NRGBA{10, 20, 30, 200})
		}
	}

	scaled := scaleFragment(src, 2.0)
	if scaled.Bounds().Dx() != 20 || scaled.Bounds().Dy() != 20 {
		t.Fatalf("Expected 20x20, got %dx%d", scaled.Bounds().Dx(), scaled.Bounds().Dy())
	}
	if got := scaled.NRGBAAt(10, 10); got != (color.NRGBA{10, 20, 30, 200}) {
		t.Errorf("Expected alpha preserved through scaling, got %+v", got)
	}

	tiny := scaleFragment(src, 0.01)
	if tiny.Bounds().Dx() < 1 || tiny.Bounds().Dy() < 1 {
		t.Errorf("Expected at least 1x1 after downscaling, got %dx%d", tiny.Bounds().Dx(), tiny.Bounds().Dy())
	}
}
