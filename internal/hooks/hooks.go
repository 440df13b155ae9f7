package hooks

import (
	"context"
	"image"

	"github.com/lehigh-university-libraries/collager/internal/models"
)

// Point identifies a pipeline extension point.
type Point int

const (
	// AfterCuration runs once curation has settled the selected sources
	// and fragments. Hooks here may flag a background source.
	AfterCuration Point = iota
	// PreComposition runs after annotation, just before the canvas is
	// assembled. Hooks here may transform fragments and the background.
	PreComposition
	// CompositionStrategy is an override-only point that replaces the
	// default compositor.
	CompositionStrategy
)

func (p Point) String() string {
	switch p {
	case AfterCuration:
		return "after_curation"
	case PreComposition:
		return "pre_composition"
	case CompositionStrategy:
		return "composition_strategy"
	default:
		return "unknown"
	}
}

// State is the mutable pipeline state shared with hooks. The pipeline owns
// it for the duration of one run; hooks mutate it in place and never
// replace it wholesale.
type State struct {
	Prompt             string
	CanvasWidth        int
	CanvasHeight       int
	Sources            []models.SourceImage
	Fragments          []models.Fragment
	BackgroundSourceID string
	Background         image.Image // resolved by the pipeline after AfterCuration hooks run
}

// Hook is an additive extension: it mutates State and cannot replace
// pipeline behavior. An error from a hook is a failure of the stage that
// invoked it.
type Hook func(ctx context.Context, state *State) error

// Strategy is an override extension that fully replaces a stage's default
// behavior and must produce a complete collage.
type Strategy func(ctx context.Context, state *State) (*models.CollageOutput, error)

// Registry holds additive hooks and overrides per extension point. The
// registry itself never fails; hook errors surface to the invoking stage.
type Registry struct {
	hooks     map[Point][]Hook
	overrides map[Point]Strategy
}

// NewRegistry creates an empty hook registry
func NewRegistry() *Registry {
	return &Registry{
		hooks:     make(map[Point][]Hook),
		overrides: make(map[Point]Strategy),
	}
}

// Register appends an additive hook for the point. Hooks run in
// registration order.
func (r *Registry) Register(point Point, fn Hook) {
	r.hooks[point] = append(r.hooks[point], fn)
}

// Run executes all additive hooks for the point sequentially, in
// registration order, against the same state. Later hooks may depend on
// earlier mutations, so there is no parallel fan-out. The first hook
// error stops the run and is returned to the caller. A no-op when no
// hooks are registered.
func (r *Registry) Run(ctx context.Context, point Point, state *State) error {
	for _, fn := range r.hooks[point] {
		if err := fn(ctx, state); err != nil {
			return err
		}
	}
	return nil
}

// RegisterOverride stores fn as the implementation for the point. The most
// recent registration replaces any prior one.
func (r *Registry) RegisterOverride(point Point, fn Strategy) {
	r.overrides[point] = fn
}

// Override returns the active override for the point, if any.
func (r *Registry) Override(point Point) (Strategy, bool) {
	fn, ok := r.overrides[point]
	return fn, ok
}

// HasHooks reports whether any additive hook is registered for the point.
func (r *Registry) HasHooks(point Point) bool {
	return len(r.hooks[point]) > 0
}
