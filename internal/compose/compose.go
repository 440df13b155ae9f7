package compose

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"log/slog"
	"math/rand"

	"github.com/lehigh-university-libraries/collager/internal/hooks"
	"github.com/lehigh-university-libraries/collager/internal/models"
)

// Default places every fragment at a uniformly random in-bounds position on
// the canvas. Fragments larger than the canvas in either dimension are
// pinned to the origin. A nil rng falls back to the global source.
type Default struct {
	rng *rand.Rand
}

// NewDefault creates the default compositor. Pass a seeded rand for
// reproducible placements; nil uses the shared global source.
func NewDefault(rng *rand.Rand) *Default {
	return &Default{rng: rng}
}

// Compose renders the shared state onto a fresh canvas and records one
// provenance entry per painted fragment.
func (d *Default) Compose(ctx context.Context, state *hooks.State) (*models.CollageOutput, error) {
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
		x, y := d.place(frag, state.CanvasWidth, state.CanvasHeight)
		paste(canvas, frag.Image, x, y)
		out.Provenance = append(out.Provenance, provenance(frag, x, y, 0, ""))
	}

	slog.Info("Composed collage",
		"fragments", len(out.Provenance),
		"width", out.Width,
		"height", out.Height)

	return out, nil
}

func (d *Default) place(frag *models.Fragment, canvasW, canvasH int) (int, int) {
	w := frag.Image.Bounds().Dx()
	h := frag.Image.Bounds().Dy()
	if w > canvasW || h > canvasH {
		return 0, 0
	}
	return d.intn(canvasW-w+1), d.intn(canvasH-h+1)
}

func (d *Default) intn(n int) int {
	if n <= 1 {
		return 0
	}
	if d.rng != nil {
		return d.rng.Intn(n)
	}
	return rand.Intn(n)
}

// newCanvas builds the base canvas: the resolved background resized to the
// canvas dimensions when one is set, otherwise solid white.
func newCanvas(state *hooks.State) *image.NRGBA {
	canvas := image.NewNRGBA(image.Rect(0, 0, state.CanvasWidth, state.CanvasHeight))
	if state.Background != nil {
		resizeInto(canvas, state.Background)
		return canvas
	}
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	return canvas
}

// resizeInto stretches src over the whole of dst with nearest-neighbour
// sampling. Quality matters less than never failing here.
func resizeInto(dst *image.NRGBA, src image.Image) {
	sb := src.Bounds()
	db := dst.Bounds()
	if sb.Dx() == 0 || sb.Dy() == 0 {
		return
	}
	for y := 0; y < db.Dy(); y++ {
		sy := sb.Min.Y + y*sb.Dy()/db.Dy()
		for x := 0; x < db.Dx(); x++ {
			sx := sb.Min.X + x*sb.Dx()/db.Dx()
			dst.Set(db.Min.X+x, db.Min.Y+y, src.At(sx, sy))
		}
	}
}

// paste alpha-composites frag onto canvas with its top-left corner at
// (x, y). The fragment's alpha channel is the paste mask, so fully
// transparent fragment pixels leave the canvas untouched.
func paste(canvas *image.NRGBA, frag *image.NRGBA, x, y int) {
	r := frag.Bounds().Sub(frag.Bounds().Min).Add(image.Pt(x, y))
	draw.Draw(canvas, r, frag, frag.Bounds().Min, draw.Over)
}

// provenance records one painted fragment. Scale stays zero for default
// placements, which never resize; agentic placements always record it.
func provenance(frag *models.Fragment, x, y int, scale float64, reason string) models.ProvenanceRecord {
	b := frag.BoundingBox
	return models.ProvenanceRecord{
		FragmentID:  frag.FragmentID(),
		SourceID:    frag.SourceID,
		Label:       frag.Label,
		Description: frag.Description,
		BoundingBox: [4]int{b.Min.X, b.Min.Y, b.Max.X, b.Max.Y},
		Position:    [2]int{x, y},
		Scale:       scale,
		Reason:      reason,
	}
}
