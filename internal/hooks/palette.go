package hooks

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"log/slog"
)

// PaletteMode names a color-grade transformation.
type PaletteMode string

const (
	PalettePastel  PaletteMode = "pastel"  // desaturated, blended toward white
	PaletteVivid   PaletteMode = "vivid"   // boosted saturation and contrast
	PaletteVintage PaletteMode = "vintage" // sepia-toned grayscale
	PaletteFaded   PaletteMode = "faded"   // reduced contrast, light grey wash
)

// ParsePaletteMode validates a palette mode name
func ParsePaletteMode(name string) (PaletteMode, error) {
	switch PaletteMode(name) {
	case PalettePastel, PaletteVivid, PaletteVintage, PaletteFaded:
		return PaletteMode(name), nil
	default:
		return "", fmt.Errorf("unsupported palette mode: %s", name)
	}
}

// ColorGrade returns a PreComposition hook that applies a unified color
// palette to the background and to every fragment, so all collage
// elements share a coherent look. Fragment alpha channels are preserved.
func ColorGrade(mode PaletteMode) Hook {
	return func(ctx context.Context, state *State) error {
		if state.Background != nil {
			bg := toNRGBA(state.Background)
			gradeNRGBA(bg, mode)
			state.Background = bg
			slog.Debug("Applied palette to background", "mode", mode)
		}

		for i := range state.Fragments {
			if state.Fragments[i].Image == nil {
				continue
			}
			gradeNRGBA(state.Fragments[i].Image, mode)
		}
		if len(state.Fragments) > 0 {
			slog.Debug("Applied palette to fragments", "mode", mode, "count", len(state.Fragments))
		}
		return nil
	}
}

func toNRGBA(img image.Image) *image.NRGBA {
	if rgba, ok := img.(*image.NRGBA); ok {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}

// gradeNRGBA transforms the color channels of img in place, leaving alpha
// untouched.
func gradeNRGBA(img *image.NRGBA, mode PaletteMode) {
	pix := img.Pix
	for i := 0; i < len(pix); i += 4 {
		r, g, b := float64(pix[i]), float64(pix[i+1]), float64(pix[i+2])

		switch mode {
		case PalettePastel:
			r, g, b = saturate(r, g, b, 0.5)
			r, g, b = blend(r, g, b, 255, 255, 255, 0.3)
		case PaletteVivid:
			r, g, b = saturate(r, g, b, 1.8)
			r, g, b = contrast(r, g, b, 1.3)
		case PaletteVintage:
			gray := luminance(r, g, b)
			r, g, b = gray*1.08, gray*0.85, gray*0.66
		case PaletteFaded:
			r, g, b = contrast(r, g, b, 0.7)
			r, g, b = blend(r, g, b, 200, 200, 200, 0.2)
		}

		pix[i], pix[i+1], pix[i+2] = clamp8(r), clamp8(g), clamp8(b)
	}
}

func luminance(r, g, b float64) float64 {
	return 0.299*r + 0.587*g + 0.114*b
}

// saturate scales the distance of each channel from the pixel's luminance.
func saturate(r, g, b, factor float64) (float64, float64, float64) {
	l := luminance(r, g, b)
	return l + (r-l)*factor, l + (g-l)*factor, l + (b-l)*factor
}

// contrast scales the distance of each channel from mid-grey.
func contrast(r, g, b, factor float64) (float64, float64, float64) {
	return 128 + (r-128)*factor, 128 + (g-128)*factor, 128 + (b-128)*factor
}

// blend mixes toward the target color by t (0..1).
func blend(r, g, b, tr, tg, tb, t float64) (float64, float64, float64) {
	return r + (tr-r)*t, g + (tg-g)*t, b + (tb-b)*t
}

func clamp8(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}
