package analysis

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/lehigh-university-libraries/collager/internal/images"
	"github.com/lehigh-university-libraries/collager/internal/models"
)

const defaultConfidence = 0.25

// DetectorBackend calls an HTTP object-detection service for each source
// image and crops one opaque fragment per detected box.
type DetectorBackend struct {
	HTTPClient  *http.Client
	Confidence  float64
	Concurrency int
}

// NewDetectorBackend creates a detector backend using DETECTOR_URL
func NewDetectorBackend() *DetectorBackend {
	return &DetectorBackend{
		HTTPClient:  &http.Client{Timeout: 120 * time.Second},
		Confidence:  defaultConfidence,
		Concurrency: 4,
	}
}

type detection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        [4]int  `json:"box"` // x1, y1, x2, y2
}

// Analyze detects objects in every downloaded source image. A source that
// fails detection or yields no boxes contributes no fragments but never
// fails the batch.
func (d *DetectorBackend) Analyze(ctx context.Context, sources []models.SourceImage) ([]models.Fragment, error) {
	detectorURL := os.Getenv("DETECTOR_URL")
	if detectorURL == "" {
		return nil, fmt.Errorf("DETECTOR_URL environment variable not set")
	}

	return analyzeEach(ctx, sources, d.Concurrency, func(ctx context.Context, src models.SourceImage) []models.Fragment {
		fragments, err := d.detectOne(ctx, detectorURL, src)
		if err != nil {
			slog.Warn("Detection failed for source", "identifier", src.ExternalID, "error", err)
			return nil
		}
		return fragments
	}), nil
}

func (d *DetectorBackend) detectOne(ctx context.Context, detectorURL string, src models.SourceImage) ([]models.Fragment, error) {
	imageData, err := os.ReadFile(src.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	requestBody, err := json.Marshal(map[string]interface{}{
		"image":      base64.StdEncoding.EncodeToString(imageData),
		"confidence": d.Confidence,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", detectorURL+"/detect", bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call detector: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("detector returned status %d: %s", resp.StatusCode, string(body))
	}

	var detections []detection
	if err := json.NewDecoder(resp.Body).Decode(&detections); err != nil {
		return nil, fmt.Errorf("failed to decode detector response: %w", err)
	}

	img, err := images.Load(src.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load image for cropping: %w", err)
	}
	rgba := toNRGBA(img)

	fragments := make([]models.Fragment, 0, len(detections))
	for _, det := range detections {
		if det.Confidence < d.Confidence {
			continue
		}
		box := image.Rect(det.Box[0], det.Box[1], det.Box[2], det.Box[3])
		crop := cropOpaque(rgba, box)
		if crop.Bounds().Empty() {
			continue
		}
		label := det.Label
		if label == "" {
			label = "unknown"
		}
		fragments = append(fragments, models.Fragment{
			SourceID:    src.ExternalID,
			Image:       crop,
			BoundingBox: box,
			Label:       label,
		})
	}
	return fragments, nil
}
