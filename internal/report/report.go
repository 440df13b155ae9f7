package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/lehigh-university-libraries/collager/internal/output"
	"gopkg.in/yaml.v3"
)

// RunConfig represents the configuration section of the run report
type RunConfig struct {
	RunDir    string `yaml:"rundir"`
	Timestamp string `yaml:"timestamp"`
	Prompt    string `yaml:"prompt"`
	Width     int    `yaml:"width"`
	Height    int    `yaml:"height"`
}

// RunSummary aggregates the provenance list of one run
type RunSummary struct {
	FragmentCount    int            `yaml:"fragmentcount"`
	SourceCount      int            `yaml:"sourcecount"`
	DistinctSources  int            `yaml:"distinctsources"`
	LabelCounts      map[string]int `yaml:"labelcounts"`
	MeanFragmentArea float64        `yaml:"meanfragmentarea"`
}

// FragmentEntry represents a single placed fragment in the report
type FragmentEntry struct {
	FragmentID string  `yaml:"fragmentid"`
	SourceID   string  `yaml:"sourceid"`
	Label      string  `yaml:"label"`
	X          int     `yaml:"x"`
	Y          int     `yaml:"y"`
	Scale      float64 `yaml:"scale,omitempty"`
	Reason     string  `yaml:"reason,omitempty"`
}

// RunReport represents the complete report for one saved run
type RunReport struct {
	Config    RunConfig       `yaml:"config"`
	Summary   RunSummary      `yaml:"summary"`
	Fragments []FragmentEntry `yaml:"fragments"`
}

// BuildReport loads the metadata sidecar from runDir and aggregates it
// into a report.
func BuildReport(runDir string) (*RunReport, error) {
	meta, err := output.LoadMetadata(runDir)
	if err != nil {
		return nil, err
	}

	report := &RunReport{
		Config: RunConfig{
			RunDir:    runDir,
			Timestamp: meta.Timestamp,
			Prompt:    meta.Prompt,
			Width:     meta.CanvasSize[0],
			Height:    meta.CanvasSize[1],
		},
		Summary: RunSummary{
			FragmentCount: len(meta.Fragments),
			SourceCount:   len(meta.Sources),
			LabelCounts:   make(map[string]int),
		},
		Fragments: make([]FragmentEntry, 0, len(meta.Fragments)),
	}

	distinct := make(map[string]struct{})
	var totalArea int
	for _, frag := range meta.Fragments {
		distinct[frag.SourceID] = struct{}{}
		report.Summary.LabelCounts[frag.Label]++
		w := frag.BoundingBox[2] - frag.BoundingBox[0]
		h := frag.BoundingBox[3] - frag.BoundingBox[1]
		totalArea += w * h
		report.Fragments = append(report.Fragments, FragmentEntry{
			FragmentID: frag.FragmentID,
			SourceID:   frag.SourceID,
			Label:      frag.Label,
			X:          frag.Position[0],
			Y:          frag.Position[1],
			Scale:      frag.Scale,
			Reason:     frag.Reason,
		})
	}
	report.Summary.DistinctSources = len(distinct)
	if len(meta.Fragments) > 0 {
		report.Summary.MeanFragmentArea = float64(totalArea) / float64(len(meta.Fragments))
	}

	return report, nil
}

// WriteYAML marshals the report and writes it to path, or to stdout when
// path is empty.
func (r *RunReport) WriteYAML(path string) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	return nil
}

// ListRunDirs returns the run directories under outputDir, oldest first.
// Directories without a metadata sidecar are skipped.
func ListRunDirs(outputDir string) ([]string, error) {
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read output directory %s: %w", outputDir, err)
	}
	var dirs []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(outputDir, entry.Name())
		if _, err := os.Stat(filepath.Join(dir, "metadata.json")); err != nil {
			continue
		}
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	return dirs, nil
}
