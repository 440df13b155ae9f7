package compose

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"log/slog"
	"math/rand"
	"strings"

	"github.com/lehigh-university-libraries/collager/internal/curator"
	"github.com/lehigh-university-libraries/collager/internal/hooks"
	"github.com/lehigh-university-libraries/collager/internal/models"
	"github.com/lehigh-university-libraries/collager/internal/providers"
)

const (
	minScale = 0.1
	maxScale = 4.0
)

const agenticSystemPrompt = `You are a collage composition artist. Given a creative prompt, canvas dimensions, and a list of image fragments, decide where each fragment should be placed.

Respond with ONLY a JSON object mapping fragment id to placement:

{"<fragment_id>": {"x": 0, "y": 0, "scale": 1.0, "reason": "why it goes here"}}

x and y are the top-left corner in canvas pixels. scale multiplies the fragment's size; values between 0.3 and 2.5 work best. Place every fragment.`

type placement struct {
	X      int     `json:"x"`
	Y      int     `json:"y"`
	Scale  float64 `json:"scale"`
	Reason string  `json:"reason"`
}

type placementFragment struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
	WidthPx     int    `json:"width_px"`
	HeightPx    int    `json:"height_px"`
}

// Agentic returns a composition strategy that asks the model for a
// placement per fragment. Fragments the model skips, and the whole call
// when it fails, fall back to random placement so a collage is always
// produced.
func Agentic(provider providers.Provider, model string, rng *rand.Rand) hooks.Strategy {
	fallback := NewDefault(rng)
	return func(ctx context.Context, state *hooks.State) (*models.CollageOutput, error) {
		placements, err := requestPlacements(ctx, provider, model, state)
		if err != nil {
			slog.Warn("Agentic composition failed, falling back to random placement", "error", err)
			return fallback.Compose(ctx, state)
		}

		canvas := newCanvas(state)
		out := &models.CollageOutput{
			Image:  canvas,
			Width:  state.CanvasWidth,
			Height: state.CanvasHeight,
		}

		for i := range state.Fragments {
			frag := &state.Fragments[i]
			if frag.Image == nil {
				slog.Warn("Skipping fragment with no pixel data", "fragment", frag.FragmentID())
				continue
			}
			p, ok := placements[frag.FragmentID()]
			if !ok {
				x, y := fallback.place(frag, state.CanvasWidth, state.CanvasHeight)
				slog.Warn("Model omitted fragment placement, placing randomly",
					"fragment", frag.FragmentID(),
					"label", frag.Label)
				paste(canvas, frag.Image, x, y)
				out.Provenance = append(out.Provenance, provenance(frag, x, y, 1.0, "random fallback"))
				continue
			}

			scale := clampScale(p.Scale)
			img := frag.Image
			if scale != 1.0 {
				img = scaleFragment(img, scale)
			}
			x := clampPos(p.X, img.Bounds().Dx(), state.CanvasWidth)
			y := clampPos(p.Y, img.Bounds().Dy(), state.CanvasHeight)
			paste(canvas, img, x, y)
			out.Provenance = append(out.Provenance, provenance(frag, x, y, scale, p.Reason))
		}

		slog.Info("Composed collage agentically",
			"fragments", len(out.Provenance),
			"width", out.Width,
			"height", out.Height)

		return out, nil
	}
}

func requestPlacements(ctx context.Context, provider providers.Provider, model string, state *hooks.State) (map[string]placement, error) {
	frags := make([]placementFragment, 0, len(state.Fragments))
	for i := range state.Fragments {
		frag := &state.Fragments[i]
		if frag.Image == nil {
			continue
		}
		frags = append(frags, placementFragment{
			ID:          frag.FragmentID(),
			Label:       frag.Label,
			Description: frag.Description,
			WidthPx:     frag.Image.Bounds().Dx(),
			HeightPx:    frag.Image.Bounds().Dy(),
		})
	}
	if len(frags) == 0 {
		return map[string]placement{}, nil
	}

	listing, err := json.MarshalIndent(frags, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("unable to marshal fragment listing: %w", err)
	}

	user := fmt.Sprintf("Creative prompt: %s\n\nCanvas: %dx%d pixels\n\nFragments:\n%s",
		state.Prompt, state.CanvasWidth, state.CanvasHeight, listing)

	resp, err := provider.Chat(ctx, providers.Request{
		Model:       model,
		System:      agenticSystemPrompt,
		Messages:    []providers.Message{{Role: providers.RoleUser, Content: user}},
		Temperature: 0.7,
		MaxTokens:   2048,
	})
	if err != nil {
		return nil, fmt.Errorf("placement request failed: %w", err)
	}

	text := strings.TrimSpace(curator.StripFences(resp.Content))
	var placements map[string]placement
	if err := json.Unmarshal([]byte(text), &placements); err != nil {
		return nil, fmt.Errorf("unable to parse placements: %w", err)
	}
	return placements, nil
}

// clampPos keeps a placement inside the canvas where the fragment fits,
// otherwise pins it to the origin edge.
func clampPos(pos, size, canvas int) int {
	max := canvas - size
	if max < 0 {
		return 0
	}
	if pos < 0 {
		return 0
	}
	if pos > max {
		return max
	}
	return pos
}

func clampScale(s float64) float64 {
	if s <= 0 {
		return 1.0
	}
	if s < minScale {
		return minScale
	}
	if s > maxScale {
		return maxScale
	}
	return s
}

// scaleFragment resizes a fragment with nearest-neighbour sampling,
// preserving the alpha channel.
func scaleFragment(src *image.NRGBA, scale float64) *image.NRGBA {
	sb := src.Bounds()
	w := int(float64(sb.Dx()) * scale)
	h := int(float64(sb.Dy()) * scale)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		sy := sb.Min.Y + y*sb.Dy()/h
		for x := 0; x < w; x++ {
			sx := sb.Min.X + x*sb.Dx()/w
			dst.SetNRGBA(x, y, src.NRGBAAt(sx, sy))
		}
	}
	return dst
}
