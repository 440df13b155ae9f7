package output

import (
	"encoding/json"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lehigh-university-libraries/collager/internal/models"
)

// Metadata is the JSON sidecar written next to the collage image. It is
// the only artifact inspect and export read back.
type Metadata struct {
	Timestamp  string                    `json:"timestamp"`
	Prompt     string                    `json:"prompt"`
	CanvasSize [2]int                    `json:"canvas_size"`
	Sources    []SourceRecord            `json:"sources"`
	Fragments  []models.ProvenanceRecord `json:"fragments"`
}

// SourceRecord is the subset of a source image worth persisting.
type SourceRecord struct {
	Identifier   string `json:"identifier"`
	Title        string `json:"title"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	DetailsURL   string `json:"details_url,omitempty"`
}

// SaveRun writes the collage and its metadata sidecar into a fresh
// timestamped directory under outputDir and returns the directory path.
// Directory creation failure is fatal; everything else in the pipeline
// assumes a writable run directory.
func SaveRun(collage *models.CollageOutput, sources []models.SourceImage, prompt string, outputDir string) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("unable to create output directory %s: %w", outputDir, err)
	}

	// Runs landing in the same second get a numeric suffix so no two runs
	// ever share a directory.
	now := time.Now()
	base := now.Format("2006-01-02_15-04-05")
	runDir := filepath.Join(outputDir, base)
	for n := 2; ; n++ {
		err := os.Mkdir(runDir, 0755)
		if err == nil {
			break
		}
		if !os.IsExist(err) {
			return "", fmt.Errorf("unable to create run directory %s: %w", runDir, err)
		}
		runDir = filepath.Join(outputDir, fmt.Sprintf("%s_%d", base, n))
	}

	imagePath := filepath.Join(runDir, "collage.png")
	f, err := os.Create(imagePath)
	if err != nil {
		return "", fmt.Errorf("unable to create %s: %w", imagePath, err)
	}
	defer f.Close()
	if err := png.Encode(f, collage.Image); err != nil {
		return "", fmt.Errorf("unable to encode collage: %w", err)
	}

	fragments := collage.Provenance
	if fragments == nil {
		fragments = []models.ProvenanceRecord{}
	}
	meta := Metadata{
		Timestamp:  now.Format("2006-01-02T15:04:05"),
		Prompt:     prompt,
		CanvasSize: [2]int{collage.Width, collage.Height},
		Sources:    make([]SourceRecord, 0, len(sources)),
		Fragments:  fragments,
	}
	for i := range sources {
		src := &sources[i]
		meta.Sources = append(meta.Sources, SourceRecord{
			Identifier:   src.ExternalID,
			Title:        src.Title,
			ThumbnailURL: src.ThumbnailURL(),
			DetailsURL:   src.DetailsURL(),
		})
	}

	metaPath := filepath.Join(runDir, "metadata.json")
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", fmt.Errorf("unable to marshal run metadata: %w", err)
	}
	if err := os.WriteFile(metaPath, data, 0644); err != nil {
		return "", fmt.Errorf("unable to write %s: %w", metaPath, err)
	}

	slog.Info("Saved run",
		"dir", runDir,
		"sources", len(meta.Sources),
		"fragments", len(meta.Fragments))

	return runDir, nil
}

// LoadMetadata reads the sidecar document back from a run directory.
func LoadMetadata(runDir string) (*Metadata, error) {
	data, err := os.ReadFile(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return nil, fmt.Errorf("unable to read run metadata: %w", err)
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("unable to parse run metadata: %w", err)
	}
	return &meta, nil
}
