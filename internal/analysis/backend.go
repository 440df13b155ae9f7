package analysis

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"log/slog"
	"sync"

	"github.com/lehigh-university-libraries/collager/internal/images"
	"github.com/lehigh-university-libraries/collager/internal/models"
)

// Backend extracts visual fragments from downloaded source images.
// Sources without a local image are silently skipped.
type Backend interface {
	Analyze(ctx context.Context, sources []models.SourceImage) ([]models.Fragment, error)
}

// NewBackend creates an analysis backend by name
func NewBackend(name string) (Backend, error) {
	switch name {
	case "placeholder":
		return &PlaceholderBackend{}, nil
	case "detector":
		return NewDetectorBackend(), nil
	case "masker":
		return NewMaskerBackend(), nil
	default:
		return nil, fmt.Errorf("unsupported analysis backend: %s", name)
	}
}

// PlaceholderBackend returns each downloaded image as a single opaque
// fragment labelled "unknown". Useful for exercising the pipeline
// end-to-end before a real detection backend is available.
type PlaceholderBackend struct{}

// Analyze wraps each source's full image as one fragment
func (p *PlaceholderBackend) Analyze(ctx context.Context, sources []models.SourceImage) ([]models.Fragment, error) {
	var fragments []models.Fragment
	for _, src := range sources {
		if src.LocalPath == "" {
			continue
		}
		img, err := images.Load(src.LocalPath)
		if err != nil {
			slog.Warn("Skipping unreadable source image", "identifier", src.ExternalID, "error", err)
			continue
		}
		rgba := toNRGBA(img)
		fragments = append(fragments, models.Fragment{
			SourceID:    src.ExternalID,
			Image:       rgba,
			BoundingBox: rgba.Bounds(),
			Label:       "unknown",
		})
	}
	return fragments, nil
}

// analyzeEach runs fn for every source with a local image through a
// bounded worker pool. Results land in per-source slots and are merged in
// source order after the pool joins, so the output is deterministic even
// though the calls are concurrent.
func analyzeEach(ctx context.Context, sources []models.SourceImage, concurrency int, fn func(ctx context.Context, src models.SourceImage) []models.Fragment) []models.Fragment {
	if concurrency < 1 {
		concurrency = 1
	}

	slots := make([][]models.Fragment, len(sources))
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, concurrency)

	for i, src := range sources {
		if src.LocalPath == "" {
			continue
		}
		wg.Add(1)
		go func(idx int, src models.SourceImage) {
			defer wg.Done()
			semaphore <- struct{}{}        // Acquire
			defer func() { <-semaphore }() // Release
			slots[idx] = fn(ctx, src)
		}(i, src)
	}
	wg.Wait()

	var fragments []models.Fragment
	for _, slot := range slots {
		fragments = append(fragments, slot...)
	}
	return fragments
}

// toNRGBA copies any decoded image into an NRGBA buffer anchored at the
// origin.
func toNRGBA(img image.Image) *image.NRGBA {
	b := img.Bounds()
	rgba := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}

// cropOpaque copies the box region of src into a new fully-opaque NRGBA
// fragment image. The box is clamped to the source bounds.
func cropOpaque(src *image.NRGBA, box image.Rectangle) *image.NRGBA {
	box = box.Intersect(src.Bounds())
	out := image.NewNRGBA(image.Rect(0, 0, box.Dx(), box.Dy()))
	draw.Draw(out, out.Bounds(), src, box.Min, draw.Src)
	return out
}
