package planner

import (
	"context"
	"log/slog"

	"github.com/lehigh-university-libraries/collager/internal/archive"
	"github.com/lehigh-university-libraries/collager/internal/models"
)

// Executor runs a recorded search plan against the real search backend.
type Executor struct {
	searcher archive.Searcher
}

// NewExecutor creates a new plan executor
func NewExecutor(searcher archive.Searcher) *Executor {
	return &Executor{searcher: searcher}
}

// Execute runs each plan item in order and merges all results into one
// candidate pool deduplicated by identifier. First occurrence wins: an
// identifier seen in an earlier plan item keeps its metadata even when a
// later item returns a different variant. Result order is first-seen
// order across items. Per-item backend failures are logged and skipped.
func (e *Executor) Execute(ctx context.Context, plan []models.PlanItem) []models.SourceImage {
	seen := make(map[string]bool)
	var pool []models.SourceImage

	for i, item := range plan {
		results, err := e.searcher.SearchImages(ctx, archive.SearchQuery{
			Keywords:   item.Keywords,
			Collection: item.Collection,
			DateFilter: item.DateFilter,
			MaxResults: item.MaxResults,
		})
		if err != nil {
			slog.Warn("Plan item search failed", "item", i+1, "keywords", item.Keywords, "error", err)
			continue
		}

		added := 0
		for _, r := range results {
			if r.ExternalID == "" || seen[r.ExternalID] {
				continue
			}
			seen[r.ExternalID] = true
			pool = append(pool, r)
			added++
		}
		slog.Debug("Executed plan item", "item", i+1, "keywords", item.Keywords, "results", len(results), "new", added)
	}

	slog.Info("Plan execution complete", "items", len(plan), "candidates", len(pool))
	return pool
}
