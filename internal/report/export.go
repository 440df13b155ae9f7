package report

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/lehigh-university-libraries/collager/internal/output"
	"github.com/parquet-go/parquet-go"
)

// ProvenanceRow is one placed fragment flattened for columnar export.
// One row per fragment per run.
type ProvenanceRow struct {
	RunDir      string  `parquet:"run_dir"`
	Timestamp   string  `parquet:"timestamp"`
	Prompt      string  `parquet:"prompt"`
	FragmentID  string  `parquet:"fragment_id"`
	SourceID    string  `parquet:"source_id"`
	Label       string  `parquet:"label"`
	Description string  `parquet:"description"`
	BoxMinX     int32   `parquet:"box_min_x"`
	BoxMinY     int32   `parquet:"box_min_y"`
	BoxMaxX     int32   `parquet:"box_max_x"`
	BoxMaxY     int32   `parquet:"box_max_y"`
	PosX        int32   `parquet:"pos_x"`
	PosY        int32   `parquet:"pos_y"`
	Scale       float64 `parquet:"scale"`
	Reason      string  `parquet:"reason"`
}

// ExportParquet flattens the provenance of every run under outputDir into
// a single parquet file. Runs whose sidecar cannot be parsed are logged
// and skipped.
func ExportParquet(outputDir, destPath string) (int, error) {
	dirs, err := ListRunDirs(outputDir)
	if err != nil {
		return 0, err
	}

	var rows []ProvenanceRow
	for _, dir := range dirs {
		meta, err := output.LoadMetadata(dir)
		if err != nil {
			slog.Warn("Skipping unreadable run", "dir", dir, "error", err)
			continue
		}
		for _, frag := range meta.Fragments {
			rows = append(rows, ProvenanceRow{
				RunDir:      dir,
				Timestamp:   meta.Timestamp,
				Prompt:      meta.Prompt,
				FragmentID:  frag.FragmentID,
				SourceID:    frag.SourceID,
				Label:       frag.Label,
				Description: frag.Description,
				BoxMinX:     int32(frag.BoundingBox[0]),
				BoxMinY:     int32(frag.BoundingBox[1]),
				BoxMaxX:     int32(frag.BoundingBox[2]),
				BoxMaxY:     int32(frag.BoundingBox[3]),
				PosX:        int32(frag.Position[0]),
				PosY:        int32(frag.Position[1]),
				Scale:       frag.Scale,
				Reason:      frag.Reason,
			})
		}
	}

	f, err := os.Create(destPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", destPath, err)
	}
	defer f.Close()

	writer := parquet.NewGenericWriter[ProvenanceRow](f)
	if len(rows) > 0 {
		if _, err := writer.Write(rows); err != nil {
			return 0, fmt.Errorf("failed to write provenance rows: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return 0, fmt.Errorf("failed to finalize parquet file: %w", err)
	}

	slog.Info("Exported provenance", "runs", len(dirs), "rows", len(rows), "dest", destPath)
	return len(rows), nil
}
