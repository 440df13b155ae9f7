package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/lehigh-university-libraries/collager/internal/analysis"
	"github.com/lehigh-university-libraries/collager/internal/compose"
	"github.com/lehigh-university-libraries/collager/internal/curator"
	"github.com/lehigh-university-libraries/collager/internal/hooks"
	"github.com/lehigh-university-libraries/collager/internal/images"
	"github.com/lehigh-university-libraries/collager/internal/models"
	"github.com/lehigh-university-libraries/collager/internal/output"
	"github.com/lehigh-university-libraries/collager/internal/planner"
)

// Pipeline sequences one collage run from prompt to saved artifact. All
// collaborators are injected; the zero value is not usable.
type Pipeline struct {
	Planner   *planner.Agent
	Executor  *planner.Executor
	Fetcher   *images.Fetcher
	Analysis  analysis.Backend
	Curator   *curator.Curator
	Annotator analysis.Annotator
	Hooks     *hooks.Registry
	Compose   hooks.Strategy

	OutputDir   string
	MaxItems    int
	MaxSources  int
	Concurrency int
}

// RunResult reports where a finished run landed and what it contains.
type RunResult struct {
	RunDir    string
	Output    *models.CollageOutput
	Sources   []models.SourceImage
	Fragments int
}

// New creates a pipeline with the default compositor and sensible limits.
// Callers adjust fields before Run.
func New() *Pipeline {
	return &Pipeline{
		Hooks:       hooks.NewRegistry(),
		Compose:     compose.NewDefault(nil).Compose,
		OutputDir:   "output",
		MaxItems:    6,
		MaxSources:  12,
		Concurrency: 4,
	}
}

// Run executes the full sequence. Stage failures short of a planning
// transport error or an unwritable run directory degrade the run instead
// of aborting it.
func (p *Pipeline) Run(ctx context.Context, prompt string, width, height int) (*RunResult, error) {
	slog.Info("Starting collage run", "prompt", prompt, "width", width, "height", height)

	// PLAN. Provider transport errors are the one fatal failure here.
	plan, err := p.Planner.PlanSearch(ctx, prompt, p.MaxItems)
	if err != nil {
		return nil, fmt.Errorf("search planning failed: %w", err)
	}
	slog.Info("Planned searches", "items", len(plan))

	// EXECUTE_PLAN. Per-item failures already logged and skipped inside.
	sources := p.Executor.Execute(ctx, plan)
	slog.Info("Executed search plan", "sources", len(sources))

	// DOWNLOAD thumbnails. Sources that fail to download keep an empty
	// LocalPath and are dropped before segmentation.
	sources = p.Fetcher.DownloadAll(ctx, sources, filepath.Join(p.OutputDir, "cache"), p.Concurrency)
	downloaded := sources[:0]
	for _, src := range sources {
		if src.LocalPath != "" {
			downloaded = append(downloaded, src)
		}
	}
	sources = downloaded
	slog.Info("Downloaded thumbnails", "sources", len(sources))

	// SEGMENT.
	fragments, err := p.Analysis.Analyze(ctx, sources)
	if err != nil {
		slog.Warn("Segmentation degraded", "error", err)
	}
	slog.Info("Segmented sources", "fragments", len(fragments))

	// CURATE sources, then fragments from the surviving sources.
	sources = p.curateSources(ctx, prompt, sources)
	fragments = filterFragments(fragments, sources)
	fragments = p.curateFragments(ctx, prompt, fragments)

	state := &hooks.State{
		Prompt:       prompt,
		CanvasWidth:  width,
		CanvasHeight: height,
		Sources:      sources,
		Fragments:    fragments,
	}

	if err := p.Hooks.Run(ctx, hooks.AfterCuration, state); err != nil {
		slog.Warn("Post-curation hook failed", "error", err)
	}
	p.loadBackground(state)

	// ANNOTATE. Annotators mutate fragments in place and never fail the
	// run.
	if p.Annotator != nil {
		p.Annotator.Annotate(ctx, state.Sources, state.Fragments)
	}

	if err := p.Hooks.Run(ctx, hooks.PreComposition, state); err != nil {
		slog.Warn("Pre-composition hook failed", "error", err)
	}

	// COMPOSE.
	strategy := p.Compose
	if override, ok := p.Hooks.Override(hooks.CompositionStrategy); ok {
		strategy = override
	}
	collage, err := strategy(ctx, state)
	if err != nil {
		slog.Warn("Composition strategy failed, using default compositor", "error", err)
		collage, err = compose.NewDefault(nil).Compose(ctx, state)
		if err != nil {
			return nil, fmt.Errorf("composition failed: %w", err)
		}
	}

	// PERSIST. Run-directory creation failure is fatal.
	runDir, err := output.SaveRun(collage, state.Sources, prompt, p.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to save run: %w", err)
	}

	return &RunResult{
		RunDir:    runDir,
		Output:    collage,
		Sources:   state.Sources,
		Fragments: len(collage.Provenance),
	}, nil
}

// curateSources narrows the source pool with one LLM call. A transport
// failure keeps the whole pool; an empty or garbage selection empties it.
func (p *Pipeline) curateSources(ctx context.Context, prompt string, sources []models.SourceImage) []models.SourceImage {
	if p.Curator == nil || len(sources) == 0 {
		return sources
	}

	candidates := make([]curator.Candidate, 0, len(sources))
	known := make(map[string]bool, len(sources))
	for i := range sources {
		src := &sources[i]
		candidates = append(candidates, curator.Candidate{
			ID:          src.ExternalID,
			Title:       src.Title,
			Description: src.Description,
			Year:        src.Meta(models.MetaYear),
		})
		known[src.ExternalID] = true
	}

	ids, err := p.Curator.Select(ctx, prompt, candidates, p.MaxSources)
	if err != nil {
		slog.Warn("Source curation failed, keeping all sources", "error", err)
		return sources
	}
	ids = curator.Intersect(ids, known)

	selected := make(map[string]bool, len(ids))
	for _, id := range ids {
		selected[id] = true
	}
	kept := sources[:0]
	for _, src := range sources {
		if selected[src.ExternalID] {
			kept = append(kept, src)
		}
	}
	slog.Info("Curated sources", "kept", len(kept), "pool", len(candidates))
	return kept
}

// curateFragments narrows the fragment pool the same way, keyed by the
// derived fragment id.
func (p *Pipeline) curateFragments(ctx context.Context, prompt string, fragments []models.Fragment) []models.Fragment {
	if p.Curator == nil || len(fragments) == 0 {
		return fragments
	}

	candidates := make([]curator.Candidate, 0, len(fragments))
	known := make(map[string]bool, len(fragments))
	for i := range fragments {
		frag := &fragments[i]
		cand := curator.Candidate{
			ID:    frag.FragmentID(),
			Label: frag.Label,
		}
		if frag.Image != nil {
			cand.WidthPx = frag.Image.Bounds().Dx()
			cand.HeightPx = frag.Image.Bounds().Dy()
		}
		candidates = append(candidates, cand)
		known[cand.ID] = true
	}

	ids, err := p.Curator.Select(ctx, prompt, candidates, p.MaxItems*2)
	if err != nil {
		slog.Warn("Fragment curation failed, keeping all fragments", "error", err)
		return fragments
	}
	ids = curator.Intersect(ids, known)

	selected := make(map[string]bool, len(ids))
	for _, id := range ids {
		selected[id] = true
	}
	kept := fragments[:0]
	for i := range fragments {
		if selected[fragments[i].FragmentID()] {
			kept = append(kept, fragments[i])
		}
	}
	slog.Info("Curated fragments", "kept", len(kept), "pool", len(candidates))
	return kept
}

// filterFragments drops fragments whose source did not survive curation.
func filterFragments(fragments []models.Fragment, sources []models.SourceImage) []models.Fragment {
	keep := make(map[string]bool, len(sources))
	for i := range sources {
		keep[sources[i].ExternalID] = true
	}
	kept := fragments[:0]
	for i := range fragments {
		if keep[fragments[i].SourceID] {
			kept = append(kept, fragments[i])
		}
	}
	return kept
}

// loadBackground resolves a background source flagged by a hook into an
// actual image. Any failure logs, clears the reference, and moves on.
func (p *Pipeline) loadBackground(state *hooks.State) {
	if state.BackgroundSourceID == "" {
		return
	}
	var path string
	for i := range state.Sources {
		if state.Sources[i].ExternalID == state.BackgroundSourceID {
			path = state.Sources[i].LocalPath
			break
		}
	}
	if path == "" {
		slog.Warn("Background source has no local image", "source", state.BackgroundSourceID)
		state.BackgroundSourceID = ""
		return
	}
	img, err := images.Load(path)
	if err != nil {
		slog.Warn("Failed to load background image", "source", state.BackgroundSourceID, "error", err)
		state.BackgroundSourceID = ""
		return
	}
	state.Background = img
}
