package analysis

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/lehigh-university-libraries/collager/internal/images"
	"github.com/lehigh-university-libraries/collager/internal/models"
)

// Masks covering fewer pixels than this are noise at thumbnail scale.
const minMaskArea = 500

// MaskerBackend calls an HTTP segmentation service that returns per-region
// masks, and builds fragments whose alpha channel is the mask cutout.
type MaskerBackend struct {
	HTTPClient  *http.Client
	MinMaskArea int
	Concurrency int
}

// NewMaskerBackend creates a masker backend using MASKER_URL
func NewMaskerBackend() *MaskerBackend {
	return &MaskerBackend{
		HTTPClient:  &http.Client{Timeout: 300 * time.Second},
		MinMaskArea: minMaskArea,
		Concurrency: 2,
	}
}

type segment struct {
	Label string `json:"label"`
	Box   [4]int `json:"box"`  // x1, y1, x2, y2 in source pixels
	Mask  string `json:"mask"` // base64 PNG, grayscale, box-sized
}

// Analyze segments every downloaded source image. A source that fails
// segmentation or yields no masks contributes no fragments but never
// fails the batch.
func (m *MaskerBackend) Analyze(ctx context.Context, sources []models.SourceImage) ([]models.Fragment, error) {
	maskerURL := os.Getenv("MASKER_URL")
	if maskerURL == "" {
		return nil, fmt.Errorf("MASKER_URL environment variable not set")
	}

	return analyzeEach(ctx, sources, m.Concurrency, func(ctx context.Context, src models.SourceImage) []models.Fragment {
		fragments, err := m.segmentOne(ctx, maskerURL, src)
		if err != nil {
			slog.Warn("Segmentation failed for source", "identifier", src.ExternalID, "error", err)
			return nil
		}
		return fragments
	}), nil
}

func (m *MaskerBackend) segmentOne(ctx context.Context, maskerURL string, src models.SourceImage) ([]models.Fragment, error) {
	imageData, err := os.ReadFile(src.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	requestBody, err := json.Marshal(map[string]interface{}{
		"image": base64.StdEncoding.EncodeToString(imageData),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", maskerURL+"/segment", bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call masker: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("masker returned status %d: %s", resp.StatusCode, string(body))
	}

	var segments []segment
	if err := json.NewDecoder(resp.Body).Decode(&segments); err != nil {
		return nil, fmt.Errorf("failed to decode masker response: %w", err)
	}

	img, err := images.Load(src.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load image for cropping: %w", err)
	}
	rgba := toNRGBA(img)

	var fragments []models.Fragment
	for i, seg := range segments {
		frag, err := m.segmentToFragment(seg, rgba, src.ExternalID)
		if err != nil {
			slog.Debug("Skipping unusable segment", "identifier", src.ExternalID, "segment", i, "error", err)
			continue
		}
		if frag != nil {
			fragments = append(fragments, *frag)
		}
	}
	return fragments, nil
}

// segmentToFragment crops the box region and applies the mask as the
// fragment's alpha channel. Segments below the minimum mask area return
// (nil, nil).
func (m *MaskerBackend) segmentToFragment(seg segment, rgba *image.NRGBA, sourceID string) (*models.Fragment, error) {
	maskData, err := base64.StdEncoding.DecodeString(seg.Mask)
	if err != nil {
		return nil, fmt.Errorf("failed to decode mask base64: %w", err)
	}
	maskImg, _, err := image.Decode(bytes.NewReader(maskData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode mask image: %w", err)
	}

	box := image.Rect(seg.Box[0], seg.Box[1], seg.Box[2], seg.Box[3]).Intersect(rgba.Bounds())
	if box.Empty() {
		return nil, fmt.Errorf("segment box outside image bounds")
	}

	crop := cropOpaque(rgba, box)
	maskBounds := maskImg.Bounds()

	area := 0
	for y := 0; y < box.Dy(); y++ {
		for x := 0; x < box.Dx(); x++ {
			alpha := uint8(0)
			if x < maskBounds.Dx() && y < maskBounds.Dy() {
				g := color.GrayModel.Convert(maskImg.At(maskBounds.Min.X+x, maskBounds.Min.Y+y)).(color.Gray)
				if g.Y >= 128 {
					alpha = 255
					area++
				}
			}
			crop.Pix[crop.PixOffset(x, y)+3] = alpha
		}
	}

	if area < m.MinMaskArea {
		return nil, nil
	}

	label := seg.Label
	if label == "" {
		label = "unknown"
	}
	return &models.Fragment{
		SourceID:    sourceID,
		Image:       crop,
		BoundingBox: box,
		Label:       label,
	}, nil
}
